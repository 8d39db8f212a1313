package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ryde/internal/middleware"
	"ryde/internal/realtime"
)

// SessionRegistry is the part of realtime.Registry the gateway uses.
type SessionRegistry interface {
	Enroll(group string, h realtime.Handle)
	Remove(group string, h realtime.Handle)
}

// WSHandler upgrades connections, runs the handshake and owns each session
// for its lifetime.
type WSHandler struct {
	auth     *realtime.Authenticator
	registry SessionRegistry
	inbound  realtime.InboundHandler
	cfg      realtime.SessionConfig
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewWSHandler creates a new WSHandler. allowedOrigins follows the CORS
// setting: "*" accepts any origin and requests without Origin are accepted.
func NewWSHandler(
	auth *realtime.Authenticator,
	registry SessionRegistry,
	inbound realtime.InboundHandler,
	cfg realtime.SessionConfig,
	allowedOrigins []string,
	log *zap.Logger,
) *WSHandler {
	return &WSHandler{
		auth:     auth,
		registry: registry,
		inbound:  inbound,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log,
	}
}

// Driver handles GET /ws/driver/:id and GET /ws/boda_rider/:id
func (h *WSHandler) Driver(c *gin.Context) {
	h.serve(c, realtime.ChannelDriver)
}

// Customer handles GET /ws/customer/:id
func (h *WSHandler) Customer(c *gin.Context) {
	h.serve(c, realtime.ChannelCustomer)
}

func (h *WSHandler) serve(c *gin.Context, class realtime.ChannelClass) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	req := realtime.HandshakeRequest{
		Token:    c.Query("token"),
		Class:    class,
		TargetID: c.Param("id"),
	}
	if actor, ok := middleware.ActorFromContext(c); ok {
		req.TransportActorID = actor.ID
	}

	ctx := c.Request.Context()
	actor, err := h.auth.Authenticate(ctx, req)
	if err != nil {
		code := realtime.CloseInternalError
		var herr *realtime.HandshakeError
		if errors.As(err, &herr) {
			code = herr.Code
		}
		h.log.Info("handshake rejected",
			zap.String("channel", string(class)),
			zap.String("target_id", req.TargetID),
			zap.Int("code", code),
			zap.Error(err),
		)
		realtime.CloseWithCode(conn, code, closeReason(code), h.cfg.WriteWait)
		return
	}

	session := realtime.NewSession(conn, actor, h.cfg, h.log)
	h.registry.Enroll(session.Group(), session)
	defer h.registry.Remove(session.Group(), session)

	session.SendEvent(realtime.ConnectionEstablished{
		Message:   "connected",
		SessionID: session.ID(),
		ActorID:   actor.ID,
		ActorType: actor.Type,
	})
	h.log.Info("session started",
		zap.String("session_id", session.ID()),
		zap.String("actor_id", actor.ID),
		zap.String("actor_type", string(actor.Type)),
	)

	if err := session.Run(ctx, h.inbound); err != nil {
		h.log.Debug("session ended with error", zap.String("session_id", session.ID()), zap.Error(err))
	}
	h.log.Info("session closed", zap.String("session_id", session.ID()))
}

func closeReason(code int) string {
	switch code {
	case realtime.CloseNoCredential:
		return "credential required"
	case realtime.CloseInvalidCredential:
		return "invalid credential"
	case realtime.CloseWrongActorType:
		return "wrong actor type for channel"
	case realtime.CloseActorMismatch:
		return "actor id mismatch"
	case realtime.CloseHandshakeTimeout:
		return "handshake timeout"
	default:
		return "internal error"
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	_, allowAll := set["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}
