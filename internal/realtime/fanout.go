package realtime

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one domain event to deliver. It may target rooms, users, or both;
// a connection matched by several targets receives the frame once.
type Event struct {
	Channel     Channel
	Kind        string
	TargetRooms []string
	TargetUsers []uuid.UUID
	// SkipConn, when set, excludes the originating connection (e.g. the
	// typer does not receive their own typing indicator).
	SkipConn uuid.UUID
	Payload  interface{}
}

// Fanout resolves event targets to live connections and delivers frames.
// Delivery is at-most-once per currently registered connection: a recipient
// that is offline at publish time simply misses the event, and re-fetches
// state from the store on reconnect.
type Fanout struct {
	registry *Registry
	rooms    *Rooms
	logger   *zap.Logger
}

// NewFanout creates an event fanout over the given registry and rooms.
func NewFanout(registry *Registry, rooms *Rooms, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{registry: registry, rooms: rooms, logger: logger}
}

// Publish delivers ev to every connection of its target rooms and users.
// Per-connection delivery order follows publish order because each
// connection's send queue is FIFO and Publish runs synchronously.
func (f *Fanout) Publish(ev Event) {
	frame := NewFrame(ev.Kind, ev.Payload)
	seen := make(map[uuid.UUID]struct{})

	deliver := func(connID uuid.UUID) {
		if connID == ev.SkipConn {
			return
		}
		if _, dup := seen[connID]; dup {
			return
		}
		seen[connID] = struct{}{}
		f.registry.Send(connID, frame)
	}

	for _, roomID := range ev.TargetRooms {
		for _, connID := range f.rooms.MembersOf(roomID) {
			deliver(connID)
		}
	}
	for _, userID := range ev.TargetUsers {
		for _, connID := range f.registry.ConnectionsFor(userID, ev.Channel) {
			deliver(connID)
		}
	}

	f.logger.Debug("event published",
		zap.String("channel", string(ev.Channel)),
		zap.String("kind", ev.Kind),
		zap.Int("recipients", len(seen)))
}
