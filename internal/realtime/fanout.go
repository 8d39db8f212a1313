package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Bus moves encoded broadcasts between replicas.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handle func([]byte)) error
}

type busFrame struct {
	Group string          `json:"group"`
	Kind  EventKind       `json:"kind"`
	Frame json.RawMessage `json:"frame"`
}

// ClusterBroadcaster publishes every broadcast on a Bus; each replica's Run
// loop delivers it to the sessions that replica holds.
type ClusterBroadcaster struct {
	bus   Bus
	local *Registry
	log   *zap.Logger
}

// NewClusterBroadcaster creates a ClusterBroadcaster over local.
func NewClusterBroadcaster(bus Bus, local *Registry, log *zap.Logger) *ClusterBroadcaster {
	return &ClusterBroadcaster{bus: bus, local: local, log: log}
}

// Broadcast publishes event for group. If the bus is unavailable the event is
// delivered to local sessions only.
func (c *ClusterBroadcaster) Broadcast(ctx context.Context, group string, event Event) {
	frame, err := Encode(event)
	if err != nil {
		c.log.Error("encode event", zap.String("kind", string(event.Kind())), zap.Error(err))
		return
	}

	payload, err := json.Marshal(busFrame{Group: group, Kind: event.Kind(), Frame: frame})
	if err == nil {
		err = c.bus.Publish(ctx, payload)
	}
	if err != nil {
		c.log.Warn("cluster publish failed, delivering locally",
			zap.String("group", group), zap.String("kind", string(event.Kind())), zap.Error(err))
		c.local.Deliver(group, event.Kind(), frame)
	}
}

// Run delivers frames published by any replica until ctx ends.
func (c *ClusterBroadcaster) Run(ctx context.Context) error {
	return c.bus.Subscribe(ctx, func(payload []byte) {
		var f busFrame
		if err := json.Unmarshal(payload, &f); err != nil {
			c.log.Warn("bad cluster frame", zap.Error(err))
			return
		}
		c.local.Deliver(f.Group, f.Kind, f.Frame)
	})
}

var _ Broadcaster = (*ClusterBroadcaster)(nil)
