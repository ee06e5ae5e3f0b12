package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/services"
)

// AdminHandler owns the token-gated write endpoints: dataset ingestion and
// gazetteer replacement.
type AdminHandler struct {
	ingest services.IngestService
	gaz    services.GazetteerService
	log    *logger.Logger
}

func NewAdminHandler(ingest services.IngestService, gaz services.GazetteerService, baseLog *logger.Logger) *AdminHandler {
	return &AdminHandler{
		ingest: ingest,
		gaz:    gaz,
		log:    baseLog.With("handler", "AdminHandler"),
	}
}

func (h *AdminHandler) PostMetadata(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, h.log, apierr.BadRequest("bad_payload", "could not read request body"))
		return
	}

	id, err := h.ingest.Ingest(c.Request.Context(), body)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusCreated, gin.H{"id": id})
}

func (h *AdminHandler) PostGazetteer(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, h.log, apierr.BadRequest("bad_payload", "could not read request body"))
		return
	}

	if err := h.gaz.Replace(c.Request.Context(), body); err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusCreated, gin.H{"status": "loaded"})
}
