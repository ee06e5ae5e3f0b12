package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/services"
)

type CatalogHandler struct {
	catalog services.CatalogService
	log     *logger.Logger
}

func NewCatalogHandler(catalog services.CatalogService, baseLog *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: baseLog.With("handler", "CatalogHandler")}
}

func (h *CatalogHandler) GetRecord(c *gin.Context) {
	recordID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		RespondError(c, h.log, apierr.BadRequest("bad_param", "record id must be an integer"))
		return
	}

	record, err := h.catalog.Record(c.Request.Context(), recordID)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusOK, record)
}

func (h *CatalogHandler) GetFiles(c *gin.Context) {
	opts, err := ParseListOptions(c.Request.URL.Query())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	res, err := h.catalog.Files(c.Request.Context(), opts)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusOK, res)
}

func (h *CatalogHandler) GetTaxa(c *gin.Context) {
	taxa, err := h.catalog.TaxonUsage(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusOK, gin.H{"count": len(taxa), "entries": taxa})
}
