package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/apierr"
	"github.com/safedata/safedata-server/internal/platform/logger"
)

// RespondOK writes a success body as JSON.
func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// RespondError maps an error onto the uniform error envelope. Client
// errors carry their own message; anything unexpected is logged and
// reported as a bare 500 so internals never leak.
func RespondError(c *gin.Context, log *logger.Logger, err error) {
	status := apierr.StatusOf(err)
	if status >= 500 {
		log.Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{
			"error":   status,
			"code":    "internal",
			"message": "internal server error",
		})
		return
	}
	c.JSON(status, gin.H{
		"error":   status,
		"code":    apierr.CodeOf(err),
		"message": err.Error(),
	})
}
