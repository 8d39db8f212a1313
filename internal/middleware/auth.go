package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/realtime"
	"ryde/internal/repository"
)

const actorKey = "ryde.actor"

// authError mirrors handler.ErrorResponse so 401s look like every other error.
type authError struct {
	Error string `json:"error"`
}

// RequireActor authenticates the bearer token and stores the actor in the
// gin context. Requests without a valid token are rejected with 401.
func RequireActor(verifier realtime.TokenVerifier, directory realtime.ActorDirectory, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authError{Error: "missing bearer token"})
			return
		}

		actor, status, err := resolveActor(c, verifier, directory, token)
		if err != nil {
			if status == http.StatusInternalServerError {
				log.Error("actor lookup failed", zap.Error(err))
			}
			c.AbortWithStatusJSON(status, authError{Error: err.Error()})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// OptionalActor authenticates a bearer token when one is present. Invalid or
// missing tokens pass through without an actor; the websocket handshake
// decides what to do with an anonymous upgrade.
func OptionalActor(verifier realtime.TokenVerifier, directory realtime.ActorDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			if actor, _, err := resolveActor(c, verifier, directory, token); err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

// ActorFromContext returns the actor set by RequireActor or OptionalActor.
func ActorFromContext(c *gin.Context) (*domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil, false
	}
	actor, ok := v.(*domain.Actor)
	return actor, ok && actor != nil
}

func resolveActor(c *gin.Context, verifier realtime.TokenVerifier, directory realtime.ActorDirectory, token string) (*domain.Actor, int, error) {
	subject, err := verifier.Verify(token)
	if err != nil {
		return nil, http.StatusUnauthorized, errors.New("invalid token")
	}

	actor, err := directory.GetActor(c.Request.Context(), subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, http.StatusUnauthorized, errors.New("unknown actor")
		}
		return nil, http.StatusInternalServerError, errors.New("internal error")
	}
	if !actor.IsActive {
		return nil, http.StatusUnauthorized, errors.New("account disabled")
	}
	return actor, http.StatusOK, nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
