package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-backoffice/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// WithResponseMeta seeds per-request response metadata with the request id.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{"started_at": time.Now()})
		c.Next()
	}
}

// ResponseMeta returns the metadata for the envelope, stamped with the request
// id and elapsed processing time. Nil when WithResponseMeta is not installed.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	stored, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	meta := make(map[string]interface{}, len(stored)+2)
	for k, v := range stored {
		if k == "started_at" {
			if start, ok := v.(time.Time); ok {
				meta["processing_time_ms"] = time.Since(start).Milliseconds()
			}
			continue
		}
		meta[k] = v
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

// SetMeta adds a key to the response metadata.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	if stored, exists := c.Get(responseMetaKey); exists {
		if typed, ok := stored.(map[string]interface{}); ok {
			typed[key] = value
		}
	}
}
