package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	quicbridge "github.com/quiclink/quicbridge"
	"github.com/quiclink/quicbridge/enginetest"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"github.com/quiclink/quicbridge/memory"
	"github.com/quiclink/quicbridge/mempool"
	"github.com/quiclink/quicbridge/wire"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newTestBridge(t *testing.T, handler enginetest.CommandHandler) *Bridge {
	t.Helper()
	ctx := testContext(t)

	b, err := New(enginetest.New(handler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		if err := b.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	if err := b.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	return b
}

func TestSubmitEcho(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	p, err := b.Submit(ctx, enginetest.CmdEcho, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Failed() {
		t.Fatalf("echo failed: %v", res.Err)
	}
	v, ok := res.Bool()
	if !ok || !v {
		t.Fatalf("echo result = (%v, %v), want (true, true)", v, ok)
	}
}

func TestSubmitCompute(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	p, err := b.Submit(ctx, enginetest.CmdCompute, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	v, ok := res.U64()
	if !ok || v != 42 {
		t.Fatalf("compute result = (%d, %v), want (42, true)", v, ok)
	}
}

func TestSubmitNoop(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	p, err := b.Submit(ctx, enginetest.CmdNoop, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Failed() {
		t.Fatalf("noop failed: %v", res.Err)
	}
	if res.Msg.Payload.Type() != wire.TypeNone {
		t.Fatalf("noop payload type = %v, want TypeNone", res.Msg.Payload.Type())
	}
}

func TestSubmitReverseTransfersBuffer(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	input := []byte("engine memory round trip")
	p, err := b.Submit(ctx, enginetest.CmdReverse, input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	addr, length, ok := res.Bytes()
	if !ok {
		t.Fatalf("reverse payload = %T, want BytesRef", res.Msg.Payload)
	}

	view := b.WrapBuffer(addr, uint32(length))
	got, err := view.View()
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	want := make([]byte, len(input))
	for i, c := range input {
		want[len(input)-1-i] = c
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("reversed bytes = %q, want %q", got, want)
	}
	view.Destroy()
	if !view.Destroyed() {
		t.Fatal("view not destroyed")
	}
}

func TestSubmitUnknownCommand(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	p, err := b.Submit(ctx, quicbridge.Command(99), nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	res, err := p.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if !res.Failed() {
		t.Fatal("expected failure for unknown command")
	}

	var be *bridgeerrors.Error
	if !errors.As(res.Err, &be) {
		t.Fatalf("error type = %T, want *errors.Error", res.Err)
	}
	if be.Kind != bridgeerrors.KindEngineFailure {
		t.Fatalf("error kind = %s, want %s", be.Kind, bridgeerrors.KindEngineFailure)
	}
	if !strings.Contains(be.Detail, "unknown command type: 99") {
		t.Fatalf("error detail = %q, want engine message", be.Detail)
	}
}

func TestSubmitConcurrent(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	const n = 32
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			p, err := b.Submit(ctx, enginetest.CmdCompute, nil)
			if err != nil {
				results <- err
				return
			}
			res, err := p.Await(ctx)
			if err != nil {
				results <- err
				return
			}
			if v, ok := res.U64(); !ok || v != 42 {
				results <- fmt.Errorf("result = (%d, %v)", v, ok)
				return
			}
			results <- nil
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-results; err != nil {
			t.Fatalf("submission %d: %v", i, err)
		}
	}
}

func TestCallbackShapes(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	boolCh := make(chan bool, 1)
	if err := b.SubmitBool(ctx, enginetest.CmdEcho, nil, func(v bool, err error) {
		if err != nil {
			t.Errorf("bool callback: %v", err)
		}
		boolCh <- v
	}); err != nil {
		t.Fatalf("SubmitBool: %v", err)
	}
	if v := <-boolCh; !v {
		t.Fatal("bool callback = false, want true")
	}

	u64Ch := make(chan uint64, 1)
	if err := b.SubmitU64(ctx, enginetest.CmdCompute, nil, func(v uint64, err error) {
		if err != nil {
			t.Errorf("u64 callback: %v", err)
		}
		u64Ch <- v
	}); err != nil {
		t.Fatalf("SubmitU64: %v", err)
	}
	if v := <-u64Ch; v != 42 {
		t.Fatalf("u64 callback = %d, want 42", v)
	}

	voidCh := make(chan error, 1)
	if err := b.SubmitVoid(ctx, enginetest.CmdNoop, nil, func(err error) {
		voidCh <- err
	}); err != nil {
		t.Fatalf("SubmitVoid: %v", err)
	}
	if err := <-voidCh; err != nil {
		t.Fatalf("void callback: %v", err)
	}
}

func TestCallbackBytes(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	input := []byte("abc")
	got := make(chan []byte, 1)
	if err := b.SubmitBytes(ctx, enginetest.CmdReverse, input, func(view *memory.BufferView, err error) {
		if err != nil {
			t.Errorf("bytes callback: %v", err)
			got <- nil
			return
		}
		data, verr := view.View()
		if verr != nil {
			t.Errorf("View: %v", verr)
		}
		view.Destroy()
		got <- data
	}); err != nil {
		t.Fatalf("SubmitBytes: %v", err)
	}
	if data := <-got; !bytes.Equal(data, []byte("cba")) {
		t.Fatalf("bytes callback = %q, want %q", data, "cba")
	}
}

func TestCallbackFailure(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	errCh := make(chan error, 1)
	if err := b.SubmitU64(ctx, quicbridge.Command(77), nil, func(v uint64, err error) {
		errCh <- err
	}); err != nil {
		t.Fatalf("SubmitU64: %v", err)
	}
	err := <-errCh
	if err == nil {
		t.Fatal("expected callback failure for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command type: 77") {
		t.Fatalf("callback error = %q, want engine message", err)
	}
}

func TestAllocateFree(t *testing.T) {
	b := newTestBridge(t, nil)
	ctx := testContext(t)

	addr, err := b.Allocate(ctx, 128)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if addr == 0 {
		t.Fatal("Allocate returned null address")
	}
	if err := b.Free(ctx, addr); err != nil {
		t.Fatalf("Free: %v", err)
	}
	// Freeing an unknown address must not fault.
	if err := b.Free(ctx, addr); err != nil {
		t.Fatalf("double Free: %v", err)
	}
}

func TestPendingCount(t *testing.T) {
	blocked := make(chan struct{})
	handler := enginetest.HandlerFunc(func(heap *mempool.Pool, req enginetest.Request) enginetest.Outcome {
		<-blocked
		return enginetest.NoData()
	})
	b := newTestBridge(t, handler)
	ctx := testContext(t)

	p, err := b.Submit(ctx, enginetest.CmdNoop, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	n, err := b.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}

	close(blocked)
	if _, err := p.Await(ctx); err != nil {
		t.Fatalf("Await: %v", err)
	}
	n, err = b.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if n != 0 {
		t.Fatalf("pending after resolve = %d, want 0", n)
	}
}

func TestCloseRejectsLaterSubmissions(t *testing.T) {
	ctx := testContext(t)

	b, err := New(enginetest.New(nil))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}

	if err := b.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err = b.Submit(ctx, enginetest.CmdEcho, nil)
	if !errors.Is(err, errShutdown) {
		t.Fatalf("Submit after close = %v, want shutdown error", err)
	}
}

func TestDecode(t *testing.T) {
	b := newTestBridge(t, nil)

	frame := wire.Encode(wire.NewU64(7, 99))
	msg, err := b.Decode(frame[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if msg.TaskID != 7 {
		t.Fatalf("task id = %d, want 7", msg.TaskID)
	}
}
