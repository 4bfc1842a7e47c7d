package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/brightlearn/backend/internal/models"
	"github.com/brightlearn/backend/internal/realtime"
)

type fakeProvider struct {
	reply *Reply
	err   error
	delay time.Duration
	calls int
}

func (p *fakeProvider) Respond(ctx context.Context, userID uuid.UUID, sessionID, message string, rctx map[string]string) (*Reply, error) {
	p.calls++
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.reply, nil
}

type fakeDirectory struct{}

func (fakeDirectory) GetDisplayInfo(ctx context.Context, id uuid.UUID) (*models.DisplayInfo, error) {
	return &models.DisplayInfo{ID: id, FullName: "Support Agent", Role: models.RoleAgent}, nil
}

type gatewayFixture struct {
	gw   *Gateway
	conn *realtime.Conn
}

// newGatewayFixture wires the gateway over a real registry/rooms/fanout with
// one connection already joined to support session "s1".
func newGatewayFixture(t *testing.T, provider Provider, role models.Role, timeout time.Duration) *gatewayFixture {
	t.Helper()
	registry := realtime.NewRegistry(nil)
	rooms := realtime.NewRooms()
	registry.OnUnregister(rooms.DropConn)
	fanout := realtime.NewFanout(registry, rooms, nil)
	gw := NewGateway(provider, rooms, fanout, fakeDirectory{}, timeout, nil)

	conn := realtime.NewConn(uuid.New(), role, realtime.ChannelAssistant)
	registry.Register(conn)
	ack := decodeAck(t, gw.HandleAction(context.Background(), conn, frame(t, ActionJoin, joinReq{SessionID: "s1"})))
	if !ack.Success {
		t.Fatalf("join failed: %+v", ack)
	}
	conn.Drain()
	return &gatewayFixture{gw: gw, conn: conn}
}

func frame(t *testing.T, event string, payload interface{}) realtime.Frame {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", event, err)
	}
	return realtime.Frame{Event: event, Data: data}
}

func decodeAck(t *testing.T, f realtime.Frame) realtime.Ack {
	t.Helper()
	if f.Event != realtime.EventAck {
		t.Fatalf("expected ack frame, got %s", f.Event)
	}
	var ack realtime.Ack
	if err := json.Unmarshal(f.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

// typingStates extracts the is_typing sequence from the bot-typing frames,
// in delivery order.
func typingStates(t *testing.T, frames []realtime.Frame) []bool {
	t.Helper()
	var states []bool
	for _, f := range frames {
		if f.Event != realtime.EventBotTyping {
			continue
		}
		var p realtime.BotTypingPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			t.Fatalf("unmarshal bot-typing: %v", err)
		}
		states = append(states, p.IsTyping)
	}
	return states
}

func (f *gatewayFixture) message(t *testing.T, text string) realtime.Ack {
	t.Helper()
	return decodeAck(t, f.gw.HandleAction(context.Background(), f.conn,
		frame(t, ActionMessage, messageReq{SessionID: "s1", Message: text})))
}

func TestMessageRepliesAndLowersTyping(t *testing.T) {
	provider := &fakeProvider{reply: &Reply{Text: "try restarting", Suggestions: []string{"more help"}}}
	f := newGatewayFixture(t, provider, models.RoleStudent, time.Second)

	ack := f.message(t, "it is broken")
	if !ack.Success {
		t.Fatalf("message failed: %+v", ack)
	}

	frames := f.conn.Drain()
	if states := typingStates(t, frames); len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("typing sequence %v, want [true false]", states)
	}
	var sawReply bool
	for _, fr := range frames {
		if fr.Event == realtime.EventBotMessage {
			sawReply = true
		}
	}
	if !sawReply {
		t.Fatal("bot reply was not broadcast to the room")
	}
}

func TestProviderErrorLowersTyping(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream 500")}
	f := newGatewayFixture(t, provider, models.RoleStudent, time.Second)

	ack := f.message(t, "hello")
	if ack.Success {
		t.Fatal("expected a failure ack")
	}
	if ack.Error != "internal error" {
		t.Fatalf("provider failure leaked to the client: %q", ack.Error)
	}

	states := typingStates(t, f.conn.Drain())
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("typing sequence %v, want [true false]", states)
	}
}

func TestProviderTimeoutLowersTyping(t *testing.T) {
	provider := &fakeProvider{delay: time.Second, reply: &Reply{Text: "late"}}
	f := newGatewayFixture(t, provider, models.RoleStudent, 20*time.Millisecond)

	ack := f.message(t, "hello")
	if ack.Success {
		t.Fatal("expected a failure ack after the provider timed out")
	}

	frames := f.conn.Drain()
	if states := typingStates(t, frames); len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("typing sequence %v, want [true false]", states)
	}
	for _, fr := range frames {
		if fr.Event == realtime.EventBotMessage {
			t.Fatal("bot message broadcast after timeout")
		}
	}
}

func TestAgentMessageSkipsProvider(t *testing.T) {
	provider := &fakeProvider{reply: &Reply{Text: "unused"}}
	f := newGatewayFixture(t, provider, models.RoleAgent, time.Second)

	ack := f.message(t, "an agent will help you now")
	if !ack.Success {
		t.Fatalf("agent message failed: %+v", ack)
	}
	if provider.calls != 0 {
		t.Fatal("agent message reached the provider")
	}

	frames := f.conn.Drain()
	if states := typingStates(t, frames); len(states) != 0 {
		t.Fatalf("agent message raised the bot typing indicator: %v", states)
	}
	var saw bool
	for _, fr := range frames {
		if fr.Event == realtime.EventAgentMessage {
			saw = true
		}
	}
	if !saw {
		t.Fatal("agent-message was not broadcast")
	}
}

func TestMessageValidation(t *testing.T) {
	f := newGatewayFixture(t, &fakeProvider{}, models.RoleStudent, time.Second)

	ack := f.message(t, "")
	if ack.Success || ack.Code != "validation_error" {
		t.Fatalf("empty message ack: %+v", ack)
	}
}
