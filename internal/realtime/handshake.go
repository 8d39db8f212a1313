package realtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/observability"
	"ryde/internal/repository"
)

// Close codes sent when a handshake is rejected.
const (
	CloseInternalError     = 4000 // retryable
	CloseNoCredential      = 4001
	CloseInvalidCredential = 4002
	CloseWrongActorType    = 4003
	CloseActorMismatch     = 4004
	CloseHandshakeTimeout  = 4008 // retryable
)

var (
	// ErrAuthentication covers missing, malformed, expired or unknown credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrAuthorization covers a valid identity on the wrong channel or id.
	ErrAuthorization = errors.New("authorization failed")
)

// HandshakeError carries the close code for a rejected connection.
type HandshakeError struct {
	Code int
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake rejected (%d): %v", e.Code, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Retryable reports whether the client may reconnect with the same credential.
func (e *HandshakeError) Retryable() bool {
	return e.Code == CloseInternalError || e.Code == CloseHandshakeTimeout
}

func reject(code int, err error) *HandshakeError {
	observability.HandshakeRejections.WithLabelValues(fmt.Sprint(code)).Inc()
	return &HandshakeError{Code: code, Err: err}
}

// ChannelClass is the kind of endpoint a connection was opened on.
type ChannelClass string

const (
	ChannelDriver   ChannelClass = "driver"
	ChannelCustomer ChannelClass = "customer"
)

// Admits reports whether actors of type t may use the channel.
func (c ChannelClass) Admits(t domain.ActorType) bool {
	switch c {
	case ChannelDriver:
		return t.IsDriver()
	case ChannelCustomer:
		return t == domain.ActorTypeCustomer
	}
	return false
}

// TokenVerifier checks a bearer token and returns its subject actor id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// ActorDirectory resolves actor ids.
type ActorDirectory interface {
	GetActor(ctx context.Context, id string) (*domain.Actor, error)
}

// HandshakeRequest is what the transport knows about a new connection.
type HandshakeRequest struct {
	// Token is the credential presented at connect time, if any.
	Token string
	// TransportActorID is an identity the transport already authenticated, if any.
	TransportActorID string
	Class            ChannelClass
	// TargetID is the actor id taken from the connection path.
	TargetID string
}

// Authenticator resolves the actor behind a new connection.
type Authenticator struct {
	verifier  TokenVerifier
	directory ActorDirectory
	timeout   time.Duration
	log       *zap.Logger
}

// NewAuthenticator creates an Authenticator. timeout bounds the whole handshake.
func NewAuthenticator(verifier TokenVerifier, directory ActorDirectory, timeout time.Duration, log *zap.Logger) *Authenticator {
	return &Authenticator{
		verifier:  verifier,
		directory: directory,
		timeout:   timeout,
		log:       log,
	}
}

// Authenticate applies the handshake rules in order and returns the actor, or
// a *HandshakeError naming the close code.
func (a *Authenticator) Authenticate(ctx context.Context, req HandshakeRequest) (*domain.Actor, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	subject := ""
	if req.Token != "" {
		id, err := a.verifier.Verify(req.Token)
		switch {
		case err == nil:
			subject = id
		case req.TransportActorID != "":
			a.log.Debug("token rejected, using transport identity", zap.Error(err))
		default:
			return nil, reject(CloseInvalidCredential, fmt.Errorf("%w: %v", ErrAuthentication, err))
		}
	}
	if subject == "" {
		subject = req.TransportActorID
	}
	if subject == "" {
		return nil, reject(CloseNoCredential, fmt.Errorf("%w: no credential", ErrAuthentication))
	}

	actor, err := a.lookup(ctx, subject)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, reject(CloseInvalidCredential, fmt.Errorf("%w: unknown actor", ErrAuthentication))
		case errors.Is(err, context.DeadlineExceeded):
			return nil, reject(CloseHandshakeTimeout, fmt.Errorf("actor lookup: %w", err))
		default:
			return nil, reject(CloseInternalError, fmt.Errorf("actor lookup: %w", err))
		}
	}

	if !req.Class.Admits(actor.Type) {
		return nil, reject(CloseWrongActorType,
			fmt.Errorf("%w: %s cannot use the %s channel", ErrAuthorization, actor.Type, req.Class))
	}
	if actor.ID != req.TargetID {
		return nil, reject(CloseActorMismatch, fmt.Errorf("%w: actor id mismatch", ErrAuthorization))
	}

	return actor, nil
}

// lookup returns when ctx ends even if the directory ignores cancellation.
func (a *Authenticator) lookup(ctx context.Context, id string) (*domain.Actor, error) {
	type result struct {
		actor *domain.Actor
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		actor, err := a.directory.GetActor(ctx, id)
		ch <- result{actor: actor, err: err}
	}()

	select {
	case r := <-ch:
		return r.actor, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
