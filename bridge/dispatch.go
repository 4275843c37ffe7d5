package bridge

import (
	"go.uber.org/zap"

	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"github.com/quiclink/quicbridge/task"
	"github.com/quiclink/quicbridge/wire"
)

// event is one notification crossing from an engine worker into the
// dispatch domain: a 32-byte frame or a per-call invocation.
type event struct {
	frame    [32]byte
	inv      invocation
	isInvoke bool
}

type invocation struct {
	token    uint64
	value    uint64
	dataAddr uint64
	errAddr  uint64
	dataLen  uint32
	errLen   uint32
	success  bool
}

// postFrame is the registered cross-boundary post function. It runs on
// engine worker goroutines and only enqueues.
func (b *Bridge) postFrame(frame [32]byte) {
	select {
	case b.events <- event{frame: frame}:
	case <-b.done:
	}
}

// postInvoke is the registered per-call delivery function. Same contract as
// postFrame.
func (b *Bridge) postInvoke(token uint64, success bool, value uint64, dataAddr uint64, dataLen uint32, errAddr uint64, errLen uint32) {
	select {
	case b.events <- event{isInvoke: true, inv: invocation{
		token:    token,
		success:  success,
		value:    value,
		dataAddr: dataAddr,
		dataLen:  dataLen,
		errAddr:  errAddr,
		errLen:   errLen,
	}}:
	case <-b.done:
	}
}

// dispatch is the single concurrency domain. Everything that mutates the
// registry, trampoline table, tracked allocator or an arena runs here.
func (b *Bridge) dispatch() {
	defer close(b.done)

	for {
		select {
		case ev := <-b.events:
			if ev.isInvoke {
				b.handleInvoke(ev.inv)
				continue
			}
			if b.handleFrame(ev.frame) {
				return
			}
		case fn := <-b.ops:
			fn()
		}
	}
}

// handleFrame routes one 32-byte frame. It returns true when the frame was
// the worker-shutdown broadcast and the loop should stop.
func (b *Bridge) handleFrame(frame [32]byte) bool {
	msg, err := wire.Decode(frame[:])
	if err != nil {
		// A decode failure is surfaced to the pending operation when the
		// header is trustworthy enough to name one; otherwise the frame
		// cannot be attributed and is dropped.
		if id, ok := wire.PeekTaskID(frame[:]); ok && id != wire.SentinelTaskID {
			if !b.registry.Resolve(id, task.Result{Err: err}) {
				Logger().Debug("decode failure for unknown task", zap.Uint64("task", id), zap.Error(err))
			}
		} else {
			Logger().Debug("unattributable frame dropped", zap.Error(err))
		}
		return false
	}

	// Sentinel frames are special-cased before ordinary dispatch: the
	// one-time ready handshake and the worker-shutdown broadcast.
	if msg.TaskID == wire.SentinelTaskID {
		if msg.Status == wire.StatusWorkerShutdown {
			Logger().Debug("engine worker shut down", zap.Int("pending", b.registry.Len()))
			return true
		}
		if value, isBool := (task.Result{Msg: msg}).Bool(); isBool {
			b.readyOK = value
		}
		select {
		case <-b.ready:
			// Handshake already consumed; a repeat is out-of-band noise.
		default:
			close(b.ready)
		}
		return false
	}

	res := task.Result{Msg: msg}
	if msg.IsError() {
		res.Err = b.decodeFailure(msg)
	}
	if !b.registry.Resolve(msg.TaskID, res) {
		// Already resolved or never tracked; intentional silent drop.
		Logger().Debug("uncorrelated result dropped",
			zap.Uint64("task", msg.TaskID), zap.Stringer("status", msg.Status))
	}
	return false
}

// decodeFailure turns an error frame into a typed failure. The message
// bytes live in engine memory owned by the receiver; they are freed here,
// after decoding, so the raw region never reaches the caller.
func (b *Bridge) decodeFailure(msg wire.Message) error {
	ref, ok := msg.Payload.(wire.StringRef)
	if !ok || ref.Addr == 0 || ref.Len == 0 {
		return bridgeerrors.EngineFailure(msg.TaskID, "engine reported "+msg.Status.String())
	}
	text, err := b.engine.Read(ref.Addr, uint32(ref.Len))
	b.engine.Free(ref.Addr, uint32(ref.Len))
	if err != nil {
		Logger().Debug("error message unreadable", zap.Uint64("task", msg.TaskID), zap.Error(err))
		return bridgeerrors.EngineFailure(msg.TaskID, "engine reported "+msg.Status.String())
	}
	return bridgeerrors.EngineFailure(msg.TaskID, string(text))
}

func (b *Bridge) handleInvoke(inv invocation) {
	handled := b.tramps.Invoke(inv.token, inv.success, inv.value, inv.dataAddr, inv.dataLen, inv.errAddr, inv.errLen)
	if !handled {
		Logger().Debug("invocation for unknown trampoline dropped", zap.Uint64("token", inv.token))
	}
	// The error text was decoded (or the invocation dropped); either way
	// its engine region is released exactly once, here.
	if inv.errAddr != 0 && inv.errLen != 0 {
		b.engine.Free(inv.errAddr, inv.errLen)
	}
}
