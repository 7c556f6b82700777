package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	header = "X-Request-ID"
	ctxKey = "request_id"
)

// Middleware tags each request with an ID so engine log lines, alert
// entries and upstream calls triggered by the same session action can be
// correlated. An ID supplied by the caller is kept.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(ctxKey, id)
		c.Writer.Header().Set(header, id)

		c.Next()
	}
}

// Value returns the request ID for the current request, or "".
func Value(c *gin.Context) string {
	if v, ok := c.Get(ctxKey); ok {
		if id, isStr := v.(string); isStr {
			return id
		}
	}
	return ""
}
