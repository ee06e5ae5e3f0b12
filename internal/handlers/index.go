package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/services"
)

// IndexHandler serves the cached dataset index, its hashes, and the raw
// gazetteer snapshot files clients sync against.
type IndexHandler struct {
	index services.IndexService
	gaz   services.GazetteerService
	log   *logger.Logger
}

func NewIndexHandler(index services.IndexService, gaz services.GazetteerService, baseLog *logger.Logger) *IndexHandler {
	return &IndexHandler{
		index: index,
		gaz:   gaz,
		log:   baseLog.With("handler", "IndexHandler"),
	}
}

func (h *IndexHandler) GetIndex(c *gin.Context) {
	snap, err := h.index.Get(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	// Serve the cached bytes verbatim so the body always matches the
	// published index hash.
	c.Data(http.StatusOK, "application/json", snap.IndexJSON)
}

func (h *IndexHandler) GetHashes(c *gin.Context) {
	snap, err := h.index.Get(c.Request.Context())
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusOK, snap.Hashes)
}

func (h *IndexHandler) GetGazetteer(c *gin.Context) {
	h.serveSnapshot(c, services.GazetteerFile, "application/geo+json")
}

func (h *IndexHandler) GetLocationAliases(c *gin.Context) {
	h.serveSnapshot(c, services.AliasesFile, "text/csv")
}

func (h *IndexHandler) serveSnapshot(c *gin.Context, name, contentType string) {
	path, err := h.gaz.SnapshotPath(name)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	c.Header("Content-Type", contentType)
	c.File(path)
}
