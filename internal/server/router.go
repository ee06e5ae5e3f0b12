package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/safedata/safedata-server/internal/handlers"
	"github.com/safedata/safedata-server/internal/middleware"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

type RouterConfig struct {
	UploadToken string

	HealthcheckHandler *handlers.HealthcheckHandler
	IndexHandler       *handlers.IndexHandler
	SearchHandler      *handlers.SearchHandler
	CatalogHandler     *handlers.CatalogHandler
	AdminHandler       *handlers.AdminHandler

	Log *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("safedata-server"))

	// The read API is public metadata; any origin may query it.
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
	}))

	router.GET("/healthcheck", cfg.HealthcheckHandler.Healthcheck)

	api := router.Group("/api")
	{
		// Index and gazetteer sync surface.
		api.GET("/index", cfg.IndexHandler.GetIndex)
		api.GET("/index/hashes", cfg.IndexHandler.GetHashes)
		api.GET("/gazetteer", cfg.IndexHandler.GetGazetteer)
		api.GET("/location_aliases", cfg.IndexHandler.GetLocationAliases)

		// Catalog reads.
		api.GET("/record/:id", cfg.CatalogHandler.GetRecord)
		api.GET("/files", cfg.CatalogHandler.GetFiles)
		api.GET("/taxa", cfg.CatalogHandler.GetTaxa)

		// Dataset search.
		api.GET("/search/:kind", cfg.SearchHandler.Search)

		// Token-gated writes.
		upload := api.Group("/")
		upload.Use(middleware.UploadAuth(cfg.UploadToken, cfg.Log))
		upload.POST("/metadata", cfg.AdminHandler.PostMetadata)
		upload.POST("/gazetteer", cfg.AdminHandler.PostGazetteer)
	}

	return router
}
