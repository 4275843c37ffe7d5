package bridge

import (
	"context"

	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"github.com/quiclink/quicbridge/memory"
	"github.com/quiclink/quicbridge/task"
	"github.com/quiclink/quicbridge/trampoline"
	"github.com/quiclink/quicbridge/wire"
)

// Bridge is the façade over one engine. Create with New, release with
// Close. Methods are safe to call from any goroutine except from inside a
// continuation or trampoline handler, which run on the dispatch goroutine
// and must not call back into the bridge synchronously.
type Bridge struct {
	engine   quicbridge.Engine
	registry *task.Registry
	tramps   *trampoline.Table
	tracked  *memory.TrackedAllocator

	events chan event
	ops    chan func()
	ready  chan struct{}
	done   chan struct{}

	readyOK bool
}

// BytesHandler receives the result of a bytes-shaped callback submission.
// The view owns the engine region; the handler (or whoever it hands the
// view to) must destroy it.
type BytesHandler func(view *memory.BufferView, err error)

var errShutdown = bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindShutdown).
	Detail("bridge is closed").Build()

// New wires a bridge to an engine: both boundary registrations, then the
// dispatch goroutine. A registration failure is a setup error and no bridge
// is returned; proceeding half-configured would strand every later
// submission.
func New(engine quicbridge.Engine) (*Bridge, error) {
	b := &Bridge{
		engine:   engine,
		registry: task.NewRegistry(),
		tramps:   trampoline.NewTable(engine),
		tracked:  memory.NewTracked(engine),
		events:   make(chan event, 1024),
		ops:      make(chan func(), 64),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := engine.RegisterInvoke(b.postInvoke); err != nil {
		return nil, bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Cause(err).Detail("invoke registration failed").Build()
	}
	if err := engine.RegisterPost(b.postFrame); err != nil {
		return nil, bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Cause(err).Detail("post registration failed").Build()
	}

	go b.dispatch()
	return b, nil
}

// WaitReady blocks until the engine's ready handshake arrives. The
// handshake travels on the reserved sentinel task id, once, at startup.
func (b *Bridge) WaitReady(ctx context.Context) error {
	select {
	case <-b.ready:
	case <-b.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
	if !b.readyOK {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindEngineFailure).
			Detail("engine reported failed initialization").Build()
	}
	return nil
}

// Submit queues a command on the channel-multiplexed path. data, if any, is
// copied into an arena-owned engine buffer that is released when the result
// arrives; an engine that never answers leaves both the pending operation
// and the arena allocated, by contract.
func (b *Bridge) Submit(ctx context.Context, cmd quicbridge.Command, data []byte) (*task.Pending, error) {
	var pending *task.Pending
	err := b.runOnLoop(ctx, func() error {
		arena := memory.NewArena(b.engine)

		var dataAddr uint64
		var dataLen uint32
		if len(data) > 0 {
			addr, err := arena.Allocate(uint32(len(data)))
			if err != nil {
				return err
			}
			if err := b.engine.Write(addr, data); err != nil {
				arena.ReleaseAll(false)
				return bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindOutOfBounds).
					Cause(err).Detail("copy of command data into engine heap failed").Build()
			}
			dataAddr, dataLen = addr, uint32(len(data))
		}

		taskID, err := b.engine.Submit(cmd, dataAddr, dataLen, nil)
		if err != nil {
			arena.ReleaseAll(false)
			return bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindEngineFailure).
				Cause(err).Detail("engine rejected submission").Build()
		}

		p := task.NewPending(taskID)
		deliver := p.Continuation()
		cont := func(res task.Result) {
			arena.ReleaseAll(false)
			deliver(res)
		}
		if err := b.registry.Register(taskID, cont); err != nil {
			// Engine reused a live id; the input buffer still belongs to
			// the outstanding call, so only the new arena is abandoned.
			arena.ReleaseAll(false)
			return err
		}
		pending = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// SubmitVoid queues a callback-mode command with a no-result completion.
func (b *Bridge) SubmitVoid(ctx context.Context, cmd quicbridge.Command, data []byte, h trampoline.VoidHandler) error {
	return b.submitCallback(ctx, cmd, data, func(release func()) uint64 {
		return b.tramps.Void(func(err error) {
			release()
			h(err)
		})
	})
}

// SubmitBool queues a callback-mode command with a boolean completion.
func (b *Bridge) SubmitBool(ctx context.Context, cmd quicbridge.Command, data []byte, h trampoline.BoolHandler) error {
	return b.submitCallback(ctx, cmd, data, func(release func()) uint64 {
		return b.tramps.Bool(func(v bool, err error) {
			release()
			h(v, err)
		})
	})
}

// SubmitU64 queues a callback-mode command with a 64-bit completion.
func (b *Bridge) SubmitU64(ctx context.Context, cmd quicbridge.Command, data []byte, h trampoline.U64Handler) error {
	return b.submitCallback(ctx, cmd, data, func(release func()) uint64 {
		return b.tramps.U64(func(v uint64, err error) {
			release()
			h(v, err)
		})
	})
}

// SubmitF64 queues a callback-mode command with a floating-point completion.
func (b *Bridge) SubmitF64(ctx context.Context, cmd quicbridge.Command, data []byte, h trampoline.F64Handler) error {
	return b.submitCallback(ctx, cmd, data, func(release func()) uint64 {
		return b.tramps.F64(func(v float64, err error) {
			release()
			h(v, err)
		})
	})
}

// SubmitBytes queues a callback-mode command whose result is a byte buffer.
// Ownership of the buffer transfers to the handler as a BufferView.
func (b *Bridge) SubmitBytes(ctx context.Context, cmd quicbridge.Command, data []byte, h BytesHandler) error {
	return b.submitCallback(ctx, cmd, data, func(release func()) uint64 {
		return b.tramps.Bytes(func(addr uint64, length uint32, err error) {
			release()
			if err != nil {
				h(nil, err)
				return
			}
			h(memory.Wrap(b.engine, addr, length), nil)
		})
	})
}

// submitCallback shares the trampoline-mode submission shape: create the
// trampoline immediately before the call it guards, then hand its token to
// the engine. register receives a release hook that the wrapped handler
// must call first, returning the input buffer when the completion fires.
func (b *Bridge) submitCallback(ctx context.Context, cmd quicbridge.Command, data []byte, register func(release func()) uint64) error {
	return b.runOnLoop(ctx, func() error {
		arena := memory.NewArena(b.engine)

		var dataAddr uint64
		var dataLen uint32
		if len(data) > 0 {
			addr, err := arena.Allocate(uint32(len(data)))
			if err != nil {
				return err
			}
			if err := b.engine.Write(addr, data); err != nil {
				arena.ReleaseAll(false)
				return bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindOutOfBounds).
					Cause(err).Detail("copy of command data into engine heap failed").Build()
			}
			dataAddr, dataLen = addr, uint32(len(data))
		}

		token := register(func() { arena.ReleaseAll(false) })
		if err := b.engine.SubmitCallback(cmd, dataAddr, dataLen, token); err != nil {
			// Dropping the entry directly would leave its arena allocated;
			// firing the trampoline with a failure runs the release hook
			// and tells the caller through the same path a late engine
			// error would take.
			b.tramps.Invoke(token, false, 0, 0, 0, 0, 0)
			return bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindEngineFailure).
				Cause(err).Detail("engine rejected callback submission").Build()
		}
		return nil
	})
}

// Allocate hands out engine memory tracked for individually-addressable
// release, for resources that outlive any single call.
func (b *Bridge) Allocate(ctx context.Context, size uint32) (uint64, error) {
	var addr uint64
	err := b.runOnLoop(ctx, func() error {
		a, err := b.tracked.Allocate(size)
		if err != nil {
			return err
		}
		addr = a
		return nil
	})
	return addr, err
}

// Free releases memory obtained from Allocate. Untracked addresses are a
// safe no-op.
func (b *Bridge) Free(ctx context.Context, addr uint64) error {
	return b.runOnLoop(ctx, func() error {
		b.tracked.Free(addr)
		return nil
	})
}

// WrapBuffer wraps an engine region, typically from a bytes result, in a
// read-only view owning exactly one destroy.
func (b *Bridge) WrapBuffer(addr uint64, length uint32) *memory.BufferView {
	return memory.Wrap(b.engine, addr, length)
}

// Decode parses one 32-byte wire frame.
func (b *Bridge) Decode(data []byte) (wire.Message, error) {
	return wire.Decode(data)
}

// Pending returns the number of outstanding channel-mode operations.
func (b *Bridge) Pending(ctx context.Context) (int, error) {
	var n int
	err := b.runOnLoop(ctx, func() error {
		n = b.registry.Len()
		return nil
	})
	return n, err
}

// Close shuts the engine down and waits for the worker-shutdown broadcast
// to stop the dispatch goroutine. Operations left pending stay pending;
// their continuations are never invoked with a synthetic result.
func (b *Bridge) Close(ctx context.Context) error {
	if err := b.engine.Close(ctx); err != nil {
		return err
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runOnLoop executes fn on the dispatch goroutine and waits for it.
func (b *Bridge) runOnLoop(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	wrapped := func() { result <- fn() }

	select {
	case b.ops <- wrapped:
	case <-b.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-b.done:
		return errShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}
