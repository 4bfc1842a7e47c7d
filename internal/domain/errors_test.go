package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
		code string
	}{
		{Validationf("bad input"), KindValidation, "validation_error"},
		{NotFoundf("missing"), KindNotFound, "not_found"},
		{AccessDeniedf("nope"), KindAccessDenied, "access_denied"},
		{InvalidStatef("ended"), KindInvalidState, "invalid_state"},
		{Fullf("2/2"), KindFull, "full"},
		{TooEarlyf("wait"), KindTooEarly, "too_early"},
		{Authf("bad token"), KindAuth, "auth_error"},
		{errors.New("boom"), KindUnknown, "internal_error"},
		{nil, KindUnknown, "internal_error"},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("KindOf(%v) = %v, want %v", tc.err, got, tc.kind)
		}
		if got := Code(tc.err); got != tc.code {
			t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.code)
		}
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("join session: %w", Fullf("session is full"))
	if KindOf(err) != KindFull {
		t.Fatalf("kind lost through wrapping: %v", KindOf(err))
	}
	if Code(err) != "full" {
		t.Fatalf("code lost through wrapping: %s", Code(err))
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: KindNotFound, Msg: "session not found", Err: errors.New("no rows")}
	if got := err.Error(); got != "session not found: no rows" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("Unwrap broken")
	}
}
