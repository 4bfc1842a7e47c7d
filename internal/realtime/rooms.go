package realtime

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

type roomShard struct {
	mu      sync.RWMutex
	members map[string]map[uuid.UUID]struct{}
}

type memberShard struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[string]struct{}
}

// Rooms is the membership table mapping rooms to subscribed connections. It
// is a pure bookkeeping structure: authorization happens in the gateway that
// calls Join. Locking is sharded by room and by connection.
type Rooms struct {
	byRoom [shardCount]*roomShard
	byConn [shardCount]*memberShard
}

// NewRooms creates a room membership table.
func NewRooms() *Rooms {
	r := &Rooms{}
	for i := range r.byRoom {
		r.byRoom[i] = &roomShard{members: make(map[string]map[uuid.UUID]struct{})}
	}
	for i := range r.byConn {
		r.byConn[i] = &memberShard{rooms: make(map[uuid.UUID]map[string]struct{})}
	}
	return r
}

// Join subscribes a connection to a room. Joining twice is a no-op.
func (r *Rooms) Join(connID uuid.UUID, roomID string) {
	rs := r.byRoom[shardOfRoom(roomID)]
	rs.mu.Lock()
	if rs.members[roomID] == nil {
		rs.members[roomID] = make(map[uuid.UUID]struct{})
	}
	rs.members[roomID][connID] = struct{}{}
	rs.mu.Unlock()

	ms := r.byConn[shardOf(connID)]
	ms.mu.Lock()
	if ms.rooms[connID] == nil {
		ms.rooms[connID] = make(map[string]struct{})
	}
	ms.rooms[connID][roomID] = struct{}{}
	ms.mu.Unlock()
}

// Leave unsubscribes a connection from a room.
func (r *Rooms) Leave(connID uuid.UUID, roomID string) {
	rs := r.byRoom[shardOfRoom(roomID)]
	rs.mu.Lock()
	if set := rs.members[roomID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(rs.members, roomID)
		}
	}
	rs.mu.Unlock()

	ms := r.byConn[shardOf(connID)]
	ms.mu.Lock()
	if set := ms.rooms[connID]; set != nil {
		delete(set, roomID)
		if len(set) == 0 {
			delete(ms.rooms, connID)
		}
	}
	ms.mu.Unlock()
}

// MembersOf returns the connections currently subscribed to a room.
func (r *Rooms) MembersOf(roomID string) []uuid.UUID {
	rs := r.byRoom[shardOfRoom(roomID)]
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	set := rs.members[roomID]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// RoomsOf returns the rooms a connection is subscribed to.
func (r *Rooms) RoomsOf(connID uuid.UUID) []string {
	ms := r.byConn[shardOf(connID)]
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	set := ms.rooms[connID]
	rooms := make([]string, 0, len(set))
	for room := range set {
		rooms = append(rooms, room)
	}
	return rooms
}

// DropConn removes a connection from every room it joined. Hooked into the
// registry's unregister cascade.
func (r *Rooms) DropConn(connID uuid.UUID) {
	ms := r.byConn[shardOf(connID)]
	ms.mu.Lock()
	set := ms.rooms[connID]
	delete(ms.rooms, connID)
	ms.mu.Unlock()

	for roomID := range set {
		rs := r.byRoom[shardOfRoom(roomID)]
		rs.mu.Lock()
		if members := rs.members[roomID]; members != nil {
			delete(members, connID)
			if len(members) == 0 {
				delete(rs.members, roomID)
			}
		}
		rs.mu.Unlock()
	}
}

func shardOfRoom(roomID string) int {
	h := fnv.New32a()
	h.Write([]byte(roomID))
	return int(h.Sum32() % shardCount)
}
