package realtime

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

// fakeConn implements Pusher for tests without a websocket.
type fakeConn struct {
	id      uuid.UUID
	userID  uuid.UUID
	channel Channel

	mu     sync.Mutex
	frames []Frame
	full   bool
}

func newFakeConn(userID uuid.UUID, channel Channel) *fakeConn {
	return &fakeConn{id: uuid.New(), userID: userID, channel: channel}
}

func (f *fakeConn) ID() uuid.UUID     { return f.id }
func (f *fakeConn) UserID() uuid.UUID { return f.userID }
func (f *fakeConn) Channel() Channel  { return f.channel }

func (f *fakeConn) Push(frame Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeConn) received() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()
	conn := newFakeConn(user, ChannelChat)

	r.Register(conn)
	r.Register(conn)

	got := r.ConnectionsFor(user, ChannelChat)
	if len(got) != 1 {
		t.Fatalf("expected 1 connection, got %d", len(got))
	}
	if got[0] != conn.ID() {
		t.Fatalf("expected connection %s, got %s", conn.ID(), got[0])
	}
}

func TestMultiDevice(t *testing.T) {
	r := NewRegistry(nil)
	user := uuid.New()
	phone := newFakeConn(user, ChannelChat)
	laptop := newFakeConn(user, ChannelChat)
	notif := newFakeConn(user, ChannelNotifications)

	r.Register(phone)
	r.Register(laptop)
	r.Register(notif)

	if got := r.ConnectionsFor(user, ChannelChat); len(got) != 2 {
		t.Fatalf("expected 2 chat connections, got %d", len(got))
	}
	if got := r.ConnectionsFor(user, ChannelNotifications); len(got) != 1 {
		t.Fatalf("expected 1 notifications connection, got %d", len(got))
	}
}

func TestUnregisterRunsCascade(t *testing.T) {
	r := NewRegistry(nil)
	var mu sync.Mutex
	var dropped []uuid.UUID
	r.OnUnregister(func(connID uuid.UUID) {
		mu.Lock()
		dropped = append(dropped, connID)
		mu.Unlock()
	})

	conn := newFakeConn(uuid.New(), ChannelChat)
	r.Register(conn)
	r.Unregister(conn.ID())

	if len(dropped) != 1 || dropped[0] != conn.ID() {
		t.Fatalf("cascade not run for %s: %v", conn.ID(), dropped)
	}
	if got := r.ConnectionsFor(conn.UserID(), ChannelChat); len(got) != 0 {
		t.Fatalf("expected no connections after unregister, got %d", len(got))
	}

	// Unknown conn ID must be a silent no-op and must not re-run the cascade.
	r.Unregister(conn.ID())
	r.Unregister(uuid.New())
	if len(dropped) != 1 {
		t.Fatalf("cascade ran for unknown connection: %v", dropped)
	}
}

func TestSendBestEffort(t *testing.T) {
	r := NewRegistry(nil)
	conn := newFakeConn(uuid.New(), ChannelChat)
	conn.full = true
	r.Register(conn)

	// Neither a full buffer nor a missing connection may panic or block.
	r.Send(conn.ID(), NewFrame("new_message", nil))
	r.Send(uuid.New(), NewFrame("new_message", nil))

	if got := conn.received(); len(got) != 0 {
		t.Fatalf("expected dropped frame, got %d delivered", len(got))
	}
}

func TestOfflineUserIsEmptyNotError(t *testing.T) {
	r := NewRegistry(nil)
	got := r.ConnectionsFor(uuid.New(), ChannelChat)
	if len(got) != 0 {
		t.Fatalf("expected empty result for offline user, got %d", len(got))
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry(nil)
	r.OnUnregister(func(uuid.UUID) {})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := uuid.New()
			for j := 0; j < 50; j++ {
				conn := newFakeConn(user, ChannelChat)
				r.Register(conn)
				r.Send(conn.ID(), NewFrame("new_message", nil))
				r.ConnectionsFor(user, ChannelChat)
				r.Unregister(conn.ID())
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 64; i++ {
		if got := r.ConnectionsFor(uuid.New(), ChannelChat); len(got) != 0 {
			t.Fatalf("registry not empty after churn")
		}
	}
}
