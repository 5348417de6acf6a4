package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(PhaseAcquire, KindResourceExhausted).
		Class("memories").
		Detail("all slots allocated").
		Build()

	s := err.Error()
	if !strings.Contains(s, "[acquire]") {
		t.Errorf("missing phase: %s", s)
	}
	if !strings.Contains(s, "resource_exhausted") {
		t.Errorf("missing kind: %s", s)
	}
	if !strings.Contains(s, "class=memories") {
		t.Errorf("missing class: %s", s)
	}
}

func TestErrorStringWithSlotAndCause(t *testing.T) {
	cause := fmt.Errorf("mmap: cannot allocate memory")
	err := New(PhaseCommit, KindFatalMapping).
		Class("stacks").
		Index(7).
		Size(1 << 20).
		Cause(cause).
		Detail("commit failed").
		Build()

	s := err.Error()
	for _, want := range []string{"slot=7", "size=1048576", "caused by: mmap"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in %s", want, s)
		}
	}
}

func TestIsMatchesPhaseAndKind(t *testing.T) {
	err := ResourceExhausted(PhaseAcquire, "tables", 8)
	proto := &Error{Phase: PhaseAcquire, Kind: KindResourceExhausted, Index: -1}

	if !stderrors.Is(err, proto) {
		t.Error("expected Is match on same phase/kind")
	}

	other := &Error{Phase: PhaseRelease, Kind: KindResourceExhausted, Index: -1}
	if stderrors.Is(err, other) {
		t.Error("unexpected Is match across phases")
	}
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("boom")
	err := FatalMapping(PhaseReserve, inner, "reserve %d bytes", 4096)

	if !stderrors.Is(err, inner) {
		t.Error("expected unwrap to reach the cause")
	}
}

func TestClassifiers(t *testing.T) {
	wrapped := fmt.Errorf("instantiate: %w", ResourceExhausted(PhaseAcquire, "memories", 4))
	if !IsResourceExhausted(wrapped) {
		t.Error("IsResourceExhausted should see through wrapping")
	}
	if IsFatal(wrapped) {
		t.Error("exhaustion is not fatal")
	}

	if !IsConfiguration(Configuration("max %d pages exceeds slot", 65536)) {
		t.Error("expected configuration classification")
	}

	if !IsFatal(DoubleFree("stacks", 3)) {
		t.Error("double free is a fatal programming error")
	}
	if !IsFatal(FatalMapping(PhaseCommit, nil, "mprotect failed")) {
		t.Error("mapping failure is fatal")
	}
	if IsFatal(nil) {
		t.Error("nil is not fatal")
	}
}

func TestDoubleFreeCarriesIndex(t *testing.T) {
	err := DoubleFree("memories", 12)
	if err.Index != 12 {
		t.Errorf("index = %d, want 12", err.Index)
	}
	if !strings.Contains(err.Error(), "slot=12") {
		t.Errorf("rendered error should carry the slot: %s", err.Error())
	}
}
