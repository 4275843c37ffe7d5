package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"github.com/quiclink/quicbridge/mempool"
	"github.com/quiclink/quicbridge/wire"
)

// Built-in demo commands. Values are engine-defined; these mirror the
// default handler of the original executor, plus a data-consuming command
// so the bytes path gets exercised.
const (
	CmdEcho    quicbridge.Command = 1 // -> bool true
	CmdCompute quicbridge.Command = 2 // -> u64 42
	CmdNoop    quicbridge.Command = 3 // -> no data
	CmdReverse quicbridge.Command = 4 // -> input bytes reversed, ownership to caller

	// cmdShutdown is reserved; Submit rejects it and Close uses it to stop
	// the worker.
	cmdShutdown quicbridge.Command = 255
)

// Request is one submitted command as the handler sees it.
type Request struct {
	Params   []uint64
	TaskID   uint64
	DataAddr uint64
	DataLen  uint32
	Cmd      quicbridge.Command
}

// Outcome is the handler's result, one of five shapes.
type Outcome struct {
	Err   string
	Addr  uint64
	Len   uint64
	U64   uint64
	Bool  bool
	shape wire.DataType
	isErr bool
}

// NoData reports success without a result.
func NoData() Outcome { return Outcome{shape: wire.TypeNone} }

// BoolOutcome reports a boolean result.
func BoolOutcome(v bool) Outcome { return Outcome{shape: wire.TypeBool, Bool: v} }

// U64Outcome reports a 64-bit result.
func U64Outcome(v uint64) Outcome { return Outcome{shape: wire.TypeU64, U64: v} }

// BytesOutcome transfers ownership of an engine heap region to the caller.
func BytesOutcome(addr, length uint64) Outcome {
	return Outcome{shape: wire.TypeBytes, Addr: addr, Len: length}
}

// ErrorOutcome reports failure with a message.
func ErrorOutcome(msg string) Outcome { return Outcome{isErr: true, Err: msg} }

// CommandHandler processes one request on the worker goroutine. The heap is
// the engine's own; handlers allocate result buffers from it.
type CommandHandler interface {
	Handle(heap *mempool.Pool, req Request) Outcome
}

// HandlerFunc adapts a function to CommandHandler.
type HandlerFunc func(heap *mempool.Pool, req Request) Outcome

// Handle implements CommandHandler.
func (f HandlerFunc) Handle(heap *mempool.Pool, req Request) Outcome {
	return f(heap, req)
}

// DefaultHandler implements the built-in demo commands.
func DefaultHandler() CommandHandler {
	return HandlerFunc(func(heap *mempool.Pool, req Request) Outcome {
		switch req.Cmd {
		case CmdEcho:
			return BoolOutcome(true)
		case CmdCompute:
			return U64Outcome(42)
		case CmdNoop:
			return NoData()
		case CmdReverse:
			if req.DataLen == 0 {
				return BytesOutcome(0, 0)
			}
			data, err := heap.Read(req.DataAddr, req.DataLen)
			if err != nil {
				return ErrorOutcome(err.Error())
			}
			for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
				data[i], data[j] = data[j], data[i]
			}
			addr, err := heap.Alloc(req.DataLen)
			if err != nil {
				return ErrorOutcome(err.Error())
			}
			if err := heap.Write(addr, data); err != nil {
				return ErrorOutcome(err.Error())
			}
			return BytesOutcome(addr, uint64(req.DataLen))
		default:
			return ErrorOutcome(fmt.Sprintf("unknown command type: %d", req.Cmd))
		}
	})
}

type workItem struct {
	req      Request
	token    uint64
	callback bool
	shutdown bool
}

// Engine is the in-process loopback engine.
type Engine struct {
	heap    *mempool.Pool
	handler CommandHandler
	cmds    chan workItem
	done    chan struct{}

	mu     sync.Mutex
	post   quicbridge.PostFunc
	invoke quicbridge.InvokeFunc

	nextTask atomic.Uint64
	running  atomic.Bool
	closed   atomic.Bool
}

// New creates an engine. A nil handler gets the default demo commands.
func New(handler CommandHandler) *Engine {
	if handler == nil {
		handler = DefaultHandler()
	}
	return &Engine{
		heap:    mempool.New(mempool.Config{}),
		handler: handler,
		cmds:    make(chan workItem, 64),
		done:    make(chan struct{}),
	}
}

// Heap exposes the engine's allocator for test assertions.
func (e *Engine) Heap() *mempool.Pool { return e.heap }

// Alloc implements quicbridge.Allocator.
func (e *Engine) Alloc(size uint32) (uint64, error) { return e.heap.Alloc(size) }

// Free implements quicbridge.Allocator.
func (e *Engine) Free(addr uint64, size uint32) { e.heap.Free(addr, size) }

// Read implements quicbridge.Memory.
func (e *Engine) Read(addr uint64, length uint32) ([]byte, error) {
	return e.heap.Read(addr, length)
}

// Write implements quicbridge.Memory.
func (e *Engine) Write(addr uint64, data []byte) error {
	return e.heap.Write(addr, data)
}

// RegisterPost installs the post function and starts the worker. The worker
// emits the ready handshake frame before consuming commands.
func (e *Engine) RegisterPost(post quicbridge.PostFunc) error {
	if post == nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("nil post function").Build()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.post != nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindAlreadyUsed).
			Detail("post function already registered").Build()
	}
	e.post = post
	e.running.Store(true)
	go e.worker()
	return nil
}

// RegisterInvoke installs the per-call delivery function.
func (e *Engine) RegisterInvoke(invoke quicbridge.InvokeFunc) error {
	if invoke == nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("nil invoke function").Build()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.invoke != nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindAlreadyUsed).
			Detail("invoke function already registered").Build()
	}
	e.invoke = invoke
	return nil
}

// Submit implements the channel-multiplexed path. The engine assigns the
// task identifier; the frame carrying the result will echo it.
func (e *Engine) Submit(cmd quicbridge.Command, dataAddr uint64, dataLen uint32, params []uint64) (uint64, error) {
	e.mu.Lock()
	post := e.post
	e.mu.Unlock()
	if post == nil {
		return 0, bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("post function must be registered before submit").Build()
	}
	if cmd == cmdShutdown {
		return 0, bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindEngineFailure).
			Detail("command 255 is reserved").Build()
	}

	taskID := e.nextTask.Add(1)
	item := workItem{req: Request{
		TaskID:   taskID,
		Cmd:      cmd,
		DataAddr: dataAddr,
		DataLen:  dataLen,
		Params:   params,
	}}

	if !e.enqueue(item) {
		// Worker gone; report through the normal result path like the
		// original executor does.
		e.postError(taskID, "worker not available")
	}
	return taskID, nil
}

// SubmitCallback implements the per-call path.
func (e *Engine) SubmitCallback(cmd quicbridge.Command, dataAddr uint64, dataLen uint32, token uint64) error {
	e.mu.Lock()
	invoke := e.invoke
	e.mu.Unlock()
	if invoke == nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("invoke function must be registered before callback submit").Build()
	}
	if cmd == cmdShutdown {
		return bridgeerrors.New(bridgeerrors.PhaseSubmit, bridgeerrors.KindEngineFailure).
			Detail("command 255 is reserved").Build()
	}

	item := workItem{
		callback: true,
		token:    token,
		req: Request{
			Cmd:      cmd,
			DataAddr: dataAddr,
			DataLen:  dataLen,
		},
	}
	if !e.enqueue(item) {
		msgAddr, msgLen := e.placeString("worker not available")
		invoke(token, false, 0, 0, 0, msgAddr, msgLen)
	}
	return nil
}

func (e *Engine) enqueue(item workItem) bool {
	if !e.running.Load() {
		return false
	}
	select {
	case e.cmds <- item:
		return true
	case <-e.done:
		return false
	}
}

// Close stops the worker. The worker broadcasts the shutdown frame before
// exiting. Close is idempotent.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.running.Store(false)
	select {
	case e.cmds <- workItem{shutdown: true}:
	case <-e.done:
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker is the engine's single demo worker. A native engine runs many; one
// is enough to reproduce the asynchrony the bridge has to handle.
func (e *Engine) worker() {
	e.postFrame(wire.NewReady(true))

	for item := range e.cmds {
		if item.shutdown {
			break
		}
		outcome := e.handler.Handle(e.heap, item.req)
		if item.callback {
			e.deliverInvoke(item.token, outcome)
		} else {
			e.deliverFrame(item.req.TaskID, outcome)
		}
	}

	e.running.Store(false)
	e.postFrame(wire.NewShutdown())
	close(e.done)
}

func (e *Engine) deliverFrame(taskID uint64, o Outcome) {
	if o.isErr {
		e.postError(taskID, o.Err)
		return
	}
	switch o.shape {
	case wire.TypeNone:
		e.postFrame(wire.NewNoData(taskID))
	case wire.TypeBool:
		e.postFrame(wire.NewBool(taskID, o.Bool))
	case wire.TypeU64:
		e.postFrame(wire.NewU64(taskID, o.U64))
	case wire.TypeBytes:
		e.postFrame(wire.NewBytes(taskID, o.Addr, o.Len))
	}
}

func (e *Engine) deliverInvoke(token uint64, o Outcome) {
	e.mu.Lock()
	invoke := e.invoke
	e.mu.Unlock()
	if invoke == nil {
		return
	}
	if o.isErr {
		msgAddr, msgLen := e.placeString(o.Err)
		invoke(token, false, 0, 0, 0, msgAddr, msgLen)
		return
	}
	switch o.shape {
	case wire.TypeNone:
		invoke(token, true, 0, 0, 0, 0, 0)
	case wire.TypeBool:
		var v uint64
		if o.Bool {
			v = 1
		}
		invoke(token, true, v, 0, 0, 0, 0)
	case wire.TypeU64:
		invoke(token, true, o.U64, 0, 0, 0, 0)
	case wire.TypeBytes:
		invoke(token, true, 0, o.Addr, uint32(o.Len), 0, 0)
	}
}

func (e *Engine) postFrame(msg wire.Message) {
	e.mu.Lock()
	post := e.post
	e.mu.Unlock()
	if post != nil {
		post(wire.Encode(msg))
	}
}

// postError places the message text in the engine heap and posts a failure
// frame referring to it. The receiver owns the region.
func (e *Engine) postError(taskID uint64, msg string) {
	addr, length := e.placeString(msg)
	e.postFrame(wire.NewError(taskID, wire.StatusUnknownError, addr, uint64(length)))
}

func (e *Engine) placeString(s string) (uint64, uint32) {
	if s == "" {
		return 0, 0
	}
	addr, err := e.heap.Alloc(uint32(len(s)))
	if err != nil {
		return 0, 0
	}
	if err := e.heap.Write(addr, []byte(s)); err != nil {
		return 0, 0
	}
	return addr, uint32(len(s))
}
