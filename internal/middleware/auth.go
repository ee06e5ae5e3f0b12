package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/safedata/safedata-server/internal/platform/logger"
)

// UploadAuth gates the write endpoints behind the shared upload token. The
// token rides in the query string or as a bearer header, never in the body,
// so the check runs before any payload parsing. An unset server token
// rejects everything rather than leaving the endpoints open.
func UploadAuth(token string, baseLog *logger.Logger) gin.HandlerFunc {
	log := baseLog.With("middleware", "UploadAuth")
	return func(c *gin.Context) {
		candidate := c.Query("token")
		if candidate == "" {
			header := c.GetHeader("Authorization")
			candidate = strings.TrimPrefix(header, "Bearer ")
			if candidate == header {
				candidate = ""
			}
		}

		if token == "" || subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) != 1 {
			log.Warn("rejected upload request",
				"path", c.FullPath(), "client", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   http.StatusForbidden,
				"code":    "forbidden",
				"message": "invalid or missing upload token",
			})
			return
		}
		c.Next()
	}
}
