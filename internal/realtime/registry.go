package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ryde/internal/domain"
	"ryde/internal/observability"
)

// Handle is one live connection as seen by the registry.
type Handle interface {
	ID() string
	// Send queues a frame without blocking and reports whether it was accepted.
	Send(frame []byte) bool
}

// Broadcaster delivers an event to every session in a group.
// A group with no sessions means the recipient is offline and the event is dropped.
type Broadcaster interface {
	Broadcast(ctx context.Context, group string, event Event)
}

// DriverGroup is the group of a driver or boda rider.
func DriverGroup(actorID string) string { return "driver:" + actorID }

// CustomerGroup is the group of a customer.
func CustomerGroup(actorID string) string { return "customer:" + actorID }

// GroupFor returns the group an actor's sessions are enrolled in.
func GroupFor(actorType domain.ActorType, actorID string) string {
	if actorType.IsDriver() {
		return DriverGroup(actorID)
	}
	return CustomerGroup(actorID)
}

// Registry maps group names to the handles enrolled in them.
// Create one per process and share it.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[Handle]struct{}
	log    *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		groups: make(map[string]map[Handle]struct{}),
		log:    log,
	}
}

// Enroll adds h to group. Enrolling the same handle twice is a no-op.
func (r *Registry) Enroll(group string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		members = make(map[Handle]struct{})
		r.groups[group] = members
	}
	if _, dup := members[h]; dup {
		return
	}
	members[h] = struct{}{}
	observability.SessionsActive.Inc()
	r.log.Debug("session enrolled", zap.String("group", group), zap.String("session_id", h.ID()))
}

// Remove drops h from group and prunes the group once empty. Absent handles are ignored.
func (r *Registry) Remove(group string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[group]
	if !ok {
		return
	}
	if _, ok := members[h]; !ok {
		return
	}
	delete(members, h)
	if len(members) == 0 {
		delete(r.groups, group)
	}
	observability.SessionsActive.Dec()
	r.log.Debug("session removed", zap.String("group", group), zap.String("session_id", h.ID()))
}

// Count returns the number of handles in group.
func (r *Registry) Count(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[group])
}

// Broadcast encodes event once and delivers it to the local members of group.
func (r *Registry) Broadcast(_ context.Context, group string, event Event) {
	frame, err := Encode(event)
	if err != nil {
		r.log.Error("encode event", zap.String("kind", string(event.Kind())), zap.Error(err))
		return
	}
	r.Deliver(group, event.Kind(), frame)
}

// Deliver sends an encoded frame to every member of group and returns how many
// accepted it. Members are snapshotted first so sends run without the lock, and
// one full or closed member never affects the others.
func (r *Registry) Deliver(group string, kind EventKind, frame []byte) int {
	r.mu.RLock()
	members := make([]Handle, 0, len(r.groups[group]))
	for h := range r.groups[group] {
		members = append(members, h)
	}
	r.mu.RUnlock()

	if len(members) == 0 {
		r.log.Debug("recipient offline", zap.String("group", group), zap.String("kind", string(kind)))
		return 0
	}

	delivered := 0
	for _, h := range members {
		if h.Send(frame) {
			delivered++
			observability.EventsDelivered.WithLabelValues(string(kind)).Inc()
			continue
		}
		observability.EventsDropped.WithLabelValues(string(kind)).Inc()
		r.log.Warn("event dropped",
			zap.String("group", group),
			zap.String("kind", string(kind)),
			zap.String("session_id", h.ID()),
		)
	}
	return delivered
}

var _ Broadcaster = (*Registry)(nil)
