package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/repository"
)

type stubVerifier map[string]string

func (v stubVerifier) Verify(token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("bad signature")
}

type stubDirectory struct {
	actors map[string]*domain.Actor
	delay  time.Duration
	err    error
}

func (d *stubDirectory) GetActor(ctx context.Context, id string) (*domain.Actor, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	if d.err != nil {
		return nil, d.err
	}
	a, ok := d.actors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func newTestAuthenticator(dir *stubDirectory) *Authenticator {
	verifier := stubVerifier{"tok-d1": "d1", "tok-c1": "c1", "tok-b1": "b1", "tok-ghost": "ghost"}
	return NewAuthenticator(verifier, dir, 100*time.Millisecond, zap.NewNop())
}

func testDirectory() *stubDirectory {
	return &stubDirectory{actors: map[string]*domain.Actor{
		"d1": {ID: "d1", Type: domain.ActorTypeDriver, IsApproved: true, IsActive: true},
		"b1": {ID: "b1", Type: domain.ActorTypeBodaRider, IsApproved: true, IsActive: true},
		"c1": {ID: "c1", Type: domain.ActorTypeCustomer, IsActive: true},
	}}
}

func TestAuthenticate_Accepts(t *testing.T) {
	tests := []struct {
		name string
		req  HandshakeRequest
		want string
	}{
		{"driver token", HandshakeRequest{Token: "tok-d1", Class: ChannelDriver, TargetID: "d1"}, "d1"},
		{"boda rider on driver channel", HandshakeRequest{Token: "tok-b1", Class: ChannelDriver, TargetID: "b1"}, "b1"},
		{"customer token", HandshakeRequest{Token: "tok-c1", Class: ChannelCustomer, TargetID: "c1"}, "c1"},
		{"transport identity only", HandshakeRequest{TransportActorID: "c1", Class: ChannelCustomer, TargetID: "c1"}, "c1"},
		{"bad token falls back to transport identity", HandshakeRequest{Token: "forged", TransportActorID: "d1", Class: ChannelDriver, TargetID: "d1"}, "d1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := newTestAuthenticator(testDirectory()).Authenticate(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, actor.ID)
		})
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		req       HandshakeRequest
		code      int
		class     error
		retryable bool
	}{
		{"no credential", HandshakeRequest{Class: ChannelDriver, TargetID: "d1"}, CloseNoCredential, ErrAuthentication, false},
		{"bad token", HandshakeRequest{Token: "forged", Class: ChannelDriver, TargetID: "d1"}, CloseInvalidCredential, ErrAuthentication, false},
		{"unknown subject", HandshakeRequest{Token: "tok-ghost", Class: ChannelDriver, TargetID: "ghost"}, CloseInvalidCredential, ErrAuthentication, false},
		{"customer on driver channel", HandshakeRequest{Token: "tok-c1", Class: ChannelDriver, TargetID: "c1"}, CloseWrongActorType, ErrAuthorization, false},
		{"driver on customer channel", HandshakeRequest{Token: "tok-d1", Class: ChannelCustomer, TargetID: "d1"}, CloseWrongActorType, ErrAuthorization, false},
		{"id mismatch", HandshakeRequest{Token: "tok-d1", Class: ChannelDriver, TargetID: "b1"}, CloseActorMismatch, ErrAuthorization, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestAuthenticator(testDirectory()).Authenticate(context.Background(), tt.req)

			var hsErr *HandshakeError
			require.ErrorAs(t, err, &hsErr)
			assert.Equal(t, tt.code, hsErr.Code)
			assert.ErrorIs(t, err, tt.class)
			assert.Equal(t, tt.retryable, hsErr.Retryable())
		})
	}
}

func TestAuthenticate_StalledLookupTimesOut(t *testing.T) {
	dir := testDirectory()
	dir.delay = time.Second
	start := time.Now()

	_, err := newTestAuthenticator(dir).Authenticate(context.Background(),
		HandshakeRequest{Token: "tok-d1", Class: ChannelDriver, TargetID: "d1"})

	var hsErr *HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, CloseHandshakeTimeout, hsErr.Code)
	assert.True(t, hsErr.Retryable())
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestAuthenticate_DirectoryFailureIsInternal(t *testing.T) {
	dir := testDirectory()
	dir.err = errors.New("connection refused")

	_, err := newTestAuthenticator(dir).Authenticate(context.Background(),
		HandshakeRequest{Token: "tok-d1", Class: ChannelDriver, TargetID: "d1"})

	var hsErr *HandshakeError
	require.ErrorAs(t, err, &hsErr)
	assert.Equal(t, CloseInternalError, hsErr.Code)
	assert.True(t, hsErr.Retryable())
}

func TestCloseWithCode(t *testing.T) {
	conn := newFakeConn()
	CloseWithCode(conn, CloseActorMismatch, "actor id mismatch", time.Second)

	assert.True(t, conn.IsClosed())
	require.Len(t, conn.controls, 1)
	// Close frame payload starts with the big-endian code.
	assert.Equal(t, byte(CloseActorMismatch>>8), conn.controls[0][0])
	assert.Equal(t, byte(CloseActorMismatch&0xff), conn.controls[0][1])
}
