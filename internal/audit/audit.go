// Package audit publishes ride audit records and the driver location stream.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"ryde/internal/domain"
)

// Record is one audit entry for administrators.
type Record struct {
	Type      string         `json:"type"`
	RideID    string         `json:"ride_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Sink receives audit records.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const writeTimeout = 2 * time.Second

// KafkaSink writes audit records to a Kafka topic keyed by ride id.
type KafkaSink struct {
	writer messageWriter
}

// NewKafkaSink creates a KafkaSink.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaSink{writer: w}
}

// Publish writes rec. Records of one ride land on one partition.
func (k *KafkaSink) Publish(ctx context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.RideID),
		Value: value,
		Time:  rec.CreatedAt,
	})
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

// LogSink writes audit records to the logger when no brokers are configured.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Publish logs rec.
func (s *LogSink) Publish(_ context.Context, rec Record) error {
	s.log.Info("audit",
		zap.String("type", rec.Type),
		zap.String("ride_id", rec.RideID),
		zap.String("actor_id", rec.ActorID),
		zap.String("message", rec.Message),
		zap.Any("data", rec.Data),
	)
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }

// LocationStream publishes driver positions keyed by driver id.
type LocationStream struct {
	writer messageWriter
}

// NewLocationStream creates a LocationStream.
func NewLocationStream(brokers []string, topic string) *LocationStream {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &LocationStream{writer: w}
}

type locationMessage struct {
	DriverID  string    `json:"driver_id"`
	RideID    string    `json:"ride_id,omitempty"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PublishLocation writes one position sample. rideID is empty outside a ride.
func (s *LocationStream) PublishLocation(ctx context.Context, loc domain.DriverLocation, rideID string) error {
	b, err := json.Marshal(locationMessage{
		DriverID:  loc.DriverID,
		RideID:    rideID,
		Lat:       loc.Lat,
		Lng:       loc.Lng,
		Online:    loc.IsOnline,
		UpdatedAt: loc.UpdatedAt,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.writer.WriteMessages(ctx, kafka.Message{Key: []byte(loc.DriverID), Value: b})
}

// Close flushes and closes the writer.
func (s *LocationStream) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

var (
	_ Sink = (*KafkaSink)(nil)
	_ Sink = (*LogSink)(nil)
)
