package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/observability"
)

// Conn is the part of *websocket.Conn a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// SessionConfig tunes buffering and keepalive.
type SessionConfig struct {
	SendBuffer   int
	WriteWait    time.Duration
	PongWait     time.Duration
	PingInterval time.Duration
	MaxMessage   int64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongWait {
		c.PingInterval = c.PongWait * 9 / 10
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 64 * 1024
	}
	return c
}

// InboundHandler processes parsed client messages. It is called from the
// session's read loop, so messages of one session are handled in arrival order.
type InboundHandler interface {
	HandleInbound(ctx context.Context, s *Session, msg Inbound)
}

// Session is one live connection bound to an authenticated actor.
type Session struct {
	id    string
	actor *domain.Actor
	group string
	conn  Conn
	cfg   SessionConfig
	log   *zap.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	writerWG  sync.WaitGroup
}

// NewSession wraps conn for actor. Nothing is read or written until Run.
func NewSession(conn Conn, actor *domain.Actor, cfg SessionConfig, log *zap.Logger) *Session {
	cfg = cfg.withDefaults()
	id := uuid.NewString()
	group := GroupFor(actor.Type, actor.ID)
	return &Session{
		id:    id,
		actor: actor,
		group: group,
		conn:  conn,
		cfg:   cfg,
		log:   log.With(zap.String("session_id", id), zap.String("group", group)),
		send:  make(chan []byte, cfg.SendBuffer),
		done:  make(chan struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Actor returns the authenticated actor.
func (s *Session) Actor() *domain.Actor { return s.actor }

// Group returns the registry group the session belongs to.
func (s *Session) Group() string { return s.group }

// Send queues a frame. It never blocks: a closed session or a full buffer drops the frame.
func (s *Session) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}

// SendEvent encodes and queues an event for this session only.
func (s *Session) SendEvent(e Event) bool {
	frame, err := Encode(e)
	if err != nil {
		s.log.Error("encode event", zap.String("kind", string(e.Kind())), zap.Error(err))
		return false
	}
	if !s.Send(frame) {
		observability.EventsDropped.WithLabelValues(string(e.Kind())).Inc()
		return false
	}
	observability.EventsDelivered.WithLabelValues(string(e.Kind())).Inc()
	return true
}

// Run pumps frames until the connection drops or ctx ends. It returns nil on
// a normal close.
func (s *Session) Run(ctx context.Context, handler InboundHandler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.writerWG.Add(1)
	go s.writePump()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	err := s.readLoop(ctx, handler)
	s.Close()

	if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	if errors.Is(err, errSessionClosed) {
		return nil
	}
	return err
}

// Close stops both pumps and closes the connection. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writerWG.Wait()
		_ = s.conn.Close()
	})
}

var errSessionClosed = errors.New("session closed")

func (s *Session) readLoop(ctx context.Context, handler InboundHandler) error {
	s.conn.SetReadLimit(s.cfg.MaxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return errSessionClosed
			default:
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))

		msg, err := ParseInbound(raw)
		if err != nil {
			observability.InboundMessages.WithLabelValues("invalid", "rejected").Inc()
			s.log.Warn("inbound message ignored", zap.Error(err))
			continue
		}

		if _, ok := msg.(PingMessage); ok {
			s.SendEvent(Pong{Timestamp: "pong"})
			observability.InboundMessages.WithLabelValues(InboundPing, "handled").Inc()
			continue
		}

		handler.HandleInbound(ctx, s, msg)
		observability.InboundMessages.WithLabelValues(msg.InboundType(), "handled").Inc()
	}
}

func (s *Session) writePump() {
	defer s.writerWG.Done()

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.log.Debug("write failed", zap.Error(err))
				// Unblocks the read loop so the session tears down.
				_ = s.conn.Close()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}

		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(s.cfg.WriteWait))
			return
		}
	}
}

// CloseWithCode sends a close frame carrying code and closes conn. Used for
// connections rejected before a session exists.
func CloseWithCode(conn Conn, code int, reason string, wait time.Duration) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(wait))
	_ = conn.Close()
}
