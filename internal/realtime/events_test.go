package realtime

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/brightlearn/backend/internal/domain"
)

func decodeAck(t *testing.T, f Frame) Ack {
	t.Helper()
	if f.Event != EventAck {
		t.Fatalf("expected ack frame, got %s", f.Event)
	}
	var ack Ack
	if err := json.Unmarshal(f.Data, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestAckOK(t *testing.T) {
	ack := decodeAck(t, AckOK("send_message", map[string]string{"id": "m1"}))
	if !ack.Success || ack.Action != "send_message" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if ack.Error != "" || ack.Code != "" {
		t.Fatalf("success ack carries error fields: %+v", ack)
	}
}

func TestAckErrDomainError(t *testing.T) {
	ack := decodeAck(t, AckErr("join_conversation", domain.AccessDeniedf("not a participant of this conversation")))
	if ack.Success {
		t.Fatalf("failure ack marked success")
	}
	if ack.Code != "access_denied" {
		t.Fatalf("unexpected code %q", ack.Code)
	}
	if ack.Error != "not a participant of this conversation" {
		t.Fatalf("unexpected error %q", ack.Error)
	}
}

func TestAckErrMasksInternalDetails(t *testing.T) {
	ack := decodeAck(t, AckErr("send_message", errors.New(`pq: connection refused host=10.0.0.3`)))
	if ack.Code != "internal_error" {
		t.Fatalf("unexpected code %q", ack.Code)
	}
	if ack.Error != "internal error" {
		t.Fatalf("internal detail leaked: %q", ack.Error)
	}
}
