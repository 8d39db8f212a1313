package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ryde/internal/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
)

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	ContentType string          `json:"content_type"`
	Body        json.RawMessage `json:"body"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response when a POST, PUT or PATCH
// repeats an Idempotency-Key. Keys are scoped to the caller and route, so two
// actors reusing a key never see each other's responses. 5xx responses are
// not stored and may be retried.
func IdempotencyMiddleware(store redis.IdempotencyStoreInterface, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := scopeKey(c, key)

		data, found, err := store.Load(ctx, scoped)
		if err != nil {
			log.Warn("idempotency lookup failed", zap.Error(err))
			c.Next()
			return
		}
		if found {
			var cached cachedResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				c.Header("Idempotent-Replayed", "true")
				c.Data(cached.StatusCode, cached.ContentType, cached.Body)
				c.Abort()
				return
			}
		}

		w := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 500 {
			return
		}
		payload, err := json.Marshal(cachedResponse{
			StatusCode:  status,
			ContentType: c.Writer.Header().Get("Content-Type"),
			Body:        w.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := store.Save(ctx, scoped, payload, idempotencyTTL); err != nil {
			log.Warn("idempotency store failed", zap.Error(err))
		}
	}
}

func scopeKey(c *gin.Context, key string) string {
	caller := "anonymous"
	if actor, ok := ActorFromContext(c); ok {
		caller = actor.ID
	}
	return caller + ":" + c.Request.Method + ":" + c.FullPath() + ":" + c.Param("id") + ":" + key
}
