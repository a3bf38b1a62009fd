package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"huijin-agent/internal/logger"
)

const CorrelationHeader = "X-Correlation-Id"

// Correlation reuses the caller's X-Correlation-Id or generates one, echoes
// it on the response and stores it in the request context for logging.
func Correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(CorrelationHeader, id)
		c.Request = c.Request.WithContext(logger.WithCorrelationID(c.Request.Context(), id))
		c.Next()
	}
}
