package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ryde/internal/domain"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("write without deadline")
	}
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaSink_PublishKeysByRide(t *testing.T) {
	w := &captureWriter{}
	sink := &KafkaSink{writer: w}
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	err := sink.Publish(context.Background(), Record{
		Type:      "ride_accepted",
		RideID:    "r1",
		ActorID:   "d1",
		Message:   "driver accepted",
		CreatedAt: at,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("r1"), w.msgs[0].Key)
	assert.Equal(t, at, w.msgs[0].Time)

	var rec Record
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &rec))
	assert.Equal(t, "ride_accepted", rec.Type)
	assert.Equal(t, "d1", rec.ActorID)

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestKafkaSink_PropagatesWriteErrors(t *testing.T) {
	sink := &KafkaSink{writer: &captureWriter{err: errors.New("broker unavailable")}}
	err := sink.Publish(context.Background(), Record{Type: "ride_created"})
	assert.EqualError(t, err, "broker unavailable")
}

func TestLocationStream_PublishLocation(t *testing.T) {
	w := &captureWriter{}
	stream := &LocationStream{writer: w}

	err := stream.PublishLocation(context.Background(),
		domain.DriverLocation{DriverID: "d1", Lat: -1.28, Lng: 36.82, IsOnline: true}, "r1")
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("d1"), w.msgs[0].Key)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &msg))
	assert.Equal(t, "r1", msg["ride_id"])
	assert.Equal(t, -1.28, msg["lat"])
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(zap.NewNop())
	assert.NoError(t, sink.Publish(context.Background(), Record{Type: "ride_created"}))
	assert.NoError(t, sink.Close())
}
