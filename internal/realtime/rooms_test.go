package realtime

import (
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestJoinLeave(t *testing.T) {
	rooms := NewRooms()
	a := uuid.New()
	b := uuid.New()

	rooms.Join(a, "conv-1")
	rooms.Join(a, "conv-1") // double join is a no-op
	rooms.Join(b, "conv-1")
	rooms.Join(a, "conv-2")

	if got := rooms.MembersOf("conv-1"); len(got) != 2 {
		t.Fatalf("expected 2 members in conv-1, got %d", len(got))
	}
	got := rooms.RoomsOf(a)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "conv-1" || got[1] != "conv-2" {
		t.Fatalf("unexpected rooms for a: %v", got)
	}

	rooms.Leave(a, "conv-1")
	if got := rooms.MembersOf("conv-1"); len(got) != 1 || got[0] != b {
		t.Fatalf("expected only b in conv-1, got %v", got)
	}

	// Leaving a room one never joined is harmless.
	rooms.Leave(a, "conv-1")
	rooms.Leave(uuid.New(), "conv-9")
}

func TestDropConnLeavesAllRooms(t *testing.T) {
	rooms := NewRooms()
	a := uuid.New()
	b := uuid.New()

	rooms.Join(a, "conv-1")
	rooms.Join(a, "conv-2")
	rooms.Join(a, "support:s1")
	rooms.Join(b, "conv-1")

	rooms.DropConn(a)

	if got := rooms.RoomsOf(a); len(got) != 0 {
		t.Fatalf("expected a in no rooms after drop, got %v", got)
	}
	if got := rooms.MembersOf("conv-1"); len(got) != 1 || got[0] != b {
		t.Fatalf("expected only b left in conv-1, got %v", got)
	}
	if got := rooms.MembersOf("conv-2"); len(got) != 0 {
		t.Fatalf("expected conv-2 empty, got %v", got)
	}
}

func TestRoomsConcurrentAccess(t *testing.T) {
	rooms := NewRooms()
	roomIDs := []string{"r1", "r2", "r3", "r4"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn := uuid.New()
			for j := 0; j < 50; j++ {
				for _, room := range roomIDs {
					rooms.Join(conn, room)
				}
				rooms.MembersOf(roomIDs[j%len(roomIDs)])
				rooms.RoomsOf(conn)
				rooms.DropConn(conn)
			}
		}()
	}
	wg.Wait()

	for _, room := range roomIDs {
		if got := rooms.MembersOf(room); len(got) != 0 {
			t.Fatalf("room %s not empty after churn: %v", room, got)
		}
	}
}
