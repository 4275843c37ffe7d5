package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestError_Message(t *testing.T) {
	err := New(PhaseDecode, KindBadMagic).
		Detail("magic 0x1 unexpected").
		Build()

	msg := err.Error()
	if !strings.Contains(msg, "[decode]") {
		t.Errorf("missing phase in %q", msg)
	}
	if !strings.Contains(msg, "bad_magic") {
		t.Errorf("missing kind in %q", msg)
	}
	if !strings.Contains(msg, "magic 0x1 unexpected") {
		t.Errorf("missing detail in %q", msg)
	}
}

func TestError_TaskAttribution(t *testing.T) {
	err := New(PhaseEngine, KindEngineFailure).Task(42).Build()
	if !err.HasTask || err.TaskID != 42 {
		t.Fatalf("task attribution lost: %+v", err)
	}
	if !strings.Contains(err.Error(), "task=42") {
		t.Errorf("task id missing from %q", err.Error())
	}

	// Task id 0 is a real task when attributed explicitly.
	err = New(PhaseDispatch, KindShutdown).Task(0).Build()
	if !err.HasTask {
		t.Fatal("task 0 should still count as attributed")
	}
}

func TestError_Is(t *testing.T) {
	a := New(PhaseMemory, KindArenaReleased).Detail("first").Build()
	b := New(PhaseMemory, KindArenaReleased).Detail("second").Build()
	c := New(PhaseMemory, KindAllocation).Build()

	if !stderrors.Is(a, b) {
		t.Error("same phase+kind should match")
	}
	if stderrors.Is(a, c) {
		t.Error("different kind should not match")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("underlying")
	err := New(PhaseSubmit, KindAllocation).Cause(cause).Build()

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !strings.Contains(err.Error(), "underlying") {
		t.Errorf("cause missing from %q", err.Error())
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if err := ShortMessage(10, 32); err.Kind != KindShortMessage || err.Phase != PhaseDecode {
		t.Errorf("ShortMessage: %+v", err)
	}
	if err := BadMagic(0x1234, 0xDABCFE01); !strings.Contains(err.Detail, "0xDABCFE01") {
		t.Errorf("BadMagic detail: %q", err.Detail)
	}
	if err := VersionMismatch(2, 1); err.Kind != KindVersionMismatch {
		t.Errorf("VersionMismatch: %+v", err)
	}
	if err := UnknownDiscriminant(KindUnknownStatus, 0xDEAD); !strings.Contains(err.Detail, "0xDEAD") {
		t.Errorf("UnknownDiscriminant detail: %q", err.Detail)
	}
	if err := EngineFailure(7, "connection refused"); !err.HasTask || err.TaskID != 7 {
		t.Errorf("EngineFailure: %+v", err)
	}
}
