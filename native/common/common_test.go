package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestGuardHonoursPauses(t *testing.T) {
	pauses := NewPauses()
	if err := Guard(pauses, ModuleFinancing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pauses.Toggle(ModuleFinancing) {
		t.Fatalf("expected module to be paused after toggle")
	}
	if err := Guard(pauses, ModuleFinancing); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(pauses, "other"); err != nil {
		t.Fatalf("other modules should be unaffected: %v", err)
	}
	if pauses.Toggle(ModuleFinancing) {
		t.Fatalf("expected module to be resumed")
	}
	if err := Guard(nil, ModuleFinancing); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	err := Validation("financing: invalid principal")
	if err.Error() != "financing: invalid principal" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	wrapped := fmt.Errorf("purchase: %w", err)
	if !errors.Is(wrapped, ErrValidation) {
		t.Fatalf("expected validation kind")
	}
	if KindOf(wrapped) != ErrValidation {
		t.Fatalf("unexpected kind %v", KindOf(wrapped))
	}
	if KindOf(errors.New("boom")) != nil {
		t.Fatalf("plain errors carry no kind")
	}
	if got := NotFound("pool %d", 4).Error(); got != "pool 4" {
		t.Fatalf("unexpected formatted message %q", got)
	}
}
