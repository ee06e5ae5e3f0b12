package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/safedata/safedata-server/internal/platform/logger"
)

type HealthcheckHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHealthcheckHandler(db *gorm.DB, baseLog *logger.Logger) *HealthcheckHandler {
	return &HealthcheckHandler{db: db, log: baseLog.With("handler", "HealthcheckHandler")}
}

func (h *HealthcheckHandler) Healthcheck(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Error("healthcheck database ping failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
