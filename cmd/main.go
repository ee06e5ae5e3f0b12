package main

import (
	"context"
	"fmt"
	"os"

	"github.com/safedata/safedata-server/internal/app"
	"github.com/safedata/safedata-server/internal/data/repos"
	"github.com/safedata/safedata-server/internal/db"
	"github.com/safedata/safedata-server/internal/handlers"
	"github.com/safedata/safedata-server/internal/observability"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/server"
	"github.com/safedata/safedata-server/internal/services"
)

func main() {
	cfg := app.LoadConfig()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Printf("failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: "safedata-server",
		Environment: os.Getenv("DEPLOY_ENV"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(ctx) }()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("postgres migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	datasetRepo := repos.NewDatasetRepo(thePG, log)
	gazetteerRepo := repos.NewGazetteerRepo(thePG, log)
	searchRepo := repos.NewSearchRepo(thePG, log, cfg.LocalEPSG)

	// Services
	indexService := services.NewIndexService(datasetRepo, cfg.StaticDir, log)
	ingestService := services.NewIngestService(thePG, datasetRepo, indexService, cfg.LocalEPSG, log)
	gazetteerService := services.NewGazetteerService(thePG, gazetteerRepo, indexService, cfg.StaticDir, cfg.LocalEPSG, log)
	searchService := services.NewSearchService(searchRepo, log)
	catalogService := services.NewCatalogService(datasetRepo, searchRepo, log)

	if cfg.UploadToken == "" {
		log.Warn("no upload token configured; write endpoints are disabled")
	}

	router := server.NewRouter(server.RouterConfig{
		UploadToken:        cfg.UploadToken,
		HealthcheckHandler: handlers.NewHealthcheckHandler(thePG, log),
		IndexHandler:       handlers.NewIndexHandler(indexService, gazetteerService, log),
		SearchHandler:      handlers.NewSearchHandler(searchService, log),
		CatalogHandler:     handlers.NewCatalogHandler(catalogService, log),
		AdminHandler:       handlers.NewAdminHandler(ingestService, gazetteerService, log),
		Log:                log,
	})

	log.Info("starting server", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("server exited", "error", err)
	}
}
