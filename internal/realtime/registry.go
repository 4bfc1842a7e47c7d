package realtime

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brightlearn/backend/pkg/metrics"
)

const shardCount = 32

// Pusher is one live transport connection as seen by the registry. Push must
// never block; it reports false when the frame was dropped.
type Pusher interface {
	ID() uuid.UUID
	UserID() uuid.UUID
	Channel() Channel
	Push(f Frame) bool
}

type userKey struct {
	userID  uuid.UUID
	channel Channel
}

type userShard struct {
	mu      sync.RWMutex
	entries map[userKey]map[uuid.UUID]Pusher
}

type connShard struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Pusher
}

// Registry maps (userID, channel) to the set of live connections that user
// holds. Multiple connections per pair are valid (multi-device). State is
// in-memory only; it rebuilds as clients reconnect. Locking is sharded so
// unrelated users never contend on one lock.
type Registry struct {
	users  [shardCount]*userShard
	conns  [shardCount]*connShard
	logger *zap.Logger

	cascadeMu sync.RWMutex
	cascades  []func(connID uuid.UUID)
}

// NewRegistry creates a connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	for i := range r.users {
		r.users[i] = &userShard{entries: make(map[userKey]map[uuid.UUID]Pusher)}
	}
	for i := range r.conns {
		r.conns[i] = &connShard{conns: make(map[uuid.UUID]Pusher)}
	}
	return r
}

// OnUnregister adds fn to the disconnect cascade. The room membership table
// hooks in here so a dropped connection leaves every room through a single
// code path.
func (r *Registry) OnUnregister(fn func(connID uuid.UUID)) {
	r.cascadeMu.Lock()
	r.cascades = append(r.cascades, fn)
	r.cascadeMu.Unlock()
}

// Register adds a connection. Registering the same connection twice is a no-op.
func (r *Registry) Register(p Pusher) {
	key := userKey{userID: p.UserID(), channel: p.Channel()}

	cs := r.conns[shardOf(p.ID())]
	cs.mu.Lock()
	_, existed := cs.conns[p.ID()]
	cs.conns[p.ID()] = p
	cs.mu.Unlock()

	us := r.users[shardOfKey(key)]
	us.mu.Lock()
	if us.entries[key] == nil {
		us.entries[key] = make(map[uuid.UUID]Pusher)
	}
	us.entries[key][p.ID()] = p
	us.mu.Unlock()

	if !existed {
		metrics.Connections.WithLabelValues(string(p.Channel())).Inc()
	}
	r.logger.Debug("connection registered",
		zap.String("conn_id", p.ID().String()),
		zap.String("user_id", p.UserID().String()),
		zap.String("channel", string(p.Channel())))
}

// Unregister removes a connection and runs the disconnect cascade. Unknown
// connection IDs are a silent no-op.
func (r *Registry) Unregister(connID uuid.UUID) {
	cs := r.conns[shardOf(connID)]
	cs.mu.Lock()
	p, ok := cs.conns[connID]
	delete(cs.conns, connID)
	cs.mu.Unlock()
	if !ok {
		return
	}

	key := userKey{userID: p.UserID(), channel: p.Channel()}
	us := r.users[shardOfKey(key)]
	us.mu.Lock()
	if set := us.entries[key]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(us.entries, key)
		}
	}
	us.mu.Unlock()

	r.cascadeMu.RLock()
	cascades := r.cascades
	r.cascadeMu.RUnlock()
	for _, fn := range cascades {
		fn(connID)
	}

	metrics.Connections.WithLabelValues(string(p.Channel())).Dec()
	r.logger.Debug("connection unregistered",
		zap.String("conn_id", connID.String()),
		zap.String("user_id", p.UserID().String()),
		zap.String("channel", string(p.Channel())))
}

// ConnectionsFor returns the IDs of all live connections for (userID, channel).
// An empty result just means the user is offline on that channel.
func (r *Registry) ConnectionsFor(userID uuid.UUID, channel Channel) []uuid.UUID {
	key := userKey{userID: userID, channel: channel}
	us := r.users[shardOfKey(key)]
	us.mu.RLock()
	defer us.mu.RUnlock()
	set := us.entries[key]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// Send delivers a frame to one connection, best effort. A missing connection
// or a full send buffer is a silent no-op; the caller never blocks.
func (r *Registry) Send(connID uuid.UUID, f Frame) {
	cs := r.conns[shardOf(connID)]
	cs.mu.RLock()
	p, ok := cs.conns[connID]
	cs.mu.RUnlock()
	if !ok {
		return
	}
	if p.Push(f) {
		metrics.EventsDelivered.WithLabelValues(string(p.Channel()), f.Event).Inc()
	} else {
		metrics.FramesDropped.WithLabelValues(string(p.Channel())).Inc()
	}
}

func shardOf(id uuid.UUID) int {
	h := fnv.New32a()
	h.Write(id[:])
	return int(h.Sum32() % shardCount)
}

func shardOfKey(k userKey) int {
	h := fnv.New32a()
	h.Write(k.userID[:])
	h.Write([]byte(k.channel))
	return int(h.Sum32() % shardCount)
}
