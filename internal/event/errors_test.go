package event

import (
	"errors"
	"testing"
)

func TestHandlerError(t *testing.T) {
	underlying := errors.New("something went wrong")
	err := &HandlerError{SubscriptionID: "sub-123", Topic: "session", Err: underlying}

	if got := err.Error(); got != "session handler: something went wrong" {
		t.Errorf("unexpected error string: %s", got)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should match the underlying error")
	}
}

func TestPanicError(t *testing.T) {
	err := &PanicError{SubscriptionID: "sub-456", Topic: "breakpoint", Value: "panic value", Stack: "stack"}

	if got := err.Error(); got != "breakpoint handler panicked: panic value" {
		t.Errorf("unexpected error string: %s", got)
	}
	if !errors.Is(err, ErrHandlerPanic) {
		t.Error("errors.Is should match ErrHandlerPanic")
	}
	if errors.Is(err, ErrNilHandler) {
		t.Error("errors.Is should not match unrelated errors")
	}
}
