package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/logger"
	"github.com/safedata/safedata-server/internal/services"
)

type SearchHandler struct {
	search services.SearchService
	log    *logger.Logger
}

func NewSearchHandler(search services.SearchService, baseLog *logger.Logger) *SearchHandler {
	return &SearchHandler{search: search, log: baseLog.With("handler", "SearchHandler")}
}

// Search handles GET /api/search/:kind. The kind picks the query builder;
// everything else rides in the query string.
func (h *SearchHandler) Search(c *gin.Context) {
	params := c.Request.URL.Query()
	opts, err := ParseListOptions(params)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}

	res, err := h.search.Search(c.Request.Context(), c.Param("kind"), params, opts)
	if err != nil {
		RespondError(c, h.log, err)
		return
	}
	RespondOK(c, http.StatusOK, res)
}
