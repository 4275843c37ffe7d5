package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

// Config holds configuration for engine creation.
type Config struct {
	// ModuleName names the guest instance inside the runtime. Empty uses
	// the module's own declared name.
	ModuleName string

	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32
}

// WazeroEngine hosts one guest executor module and implements
// quicbridge.Engine over it.
type WazeroEngine struct {
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory

	// callMu serializes every call into the guest. wazero modules are not
	// reentrant across goroutines.
	callMu sync.Mutex

	mu     sync.Mutex
	post   quicbridge.PostFunc
	invoke quicbridge.InvokeFunc

	executor uint64
	started  atomic.Bool
	closed   atomic.Bool
}

// New compiles and instantiates the guest executor module. The executor
// itself is not created until RegisterPost installs the frame channel it
// announces itself on.
func New(ctx context.Context, wasmBytes []byte, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	e := &WazeroEngine{runtime: runtime}

	_, err := runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().WithFunc(e.hostPostFrame).Export(hostPostFrame).
		NewFunctionBuilder().WithFunc(e.hostInvokeCallback).Export(hostInvokeCallback).
		Instantiate(ctx)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module: %w", err)
	}

	modCfg := wazero.NewModuleConfig()
	if cfg != nil && cfg.ModuleName != "" {
		modCfg = modCfg.WithName(cfg.ModuleName)
	}
	mod, err := runtime.InstantiateWithConfig(ctx, wasmBytes, modCfg)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate guest: %w", err)
	}

	for _, name := range requiredExports() {
		if mod.ExportedFunction(name) == nil {
			_ = runtime.Close(ctx)
			return nil, fmt.Errorf("guest does not export %q", name)
		}
	}
	mem := mod.Memory()
	if mem == nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("guest exports no memory")
	}

	e.mod = mod
	e.mem = mem
	return e, nil
}

// hostPostFrame is the guest's channel-multiplexed completion path. ptr
// names 32 bytes in guest memory; the frame is copied out before the guest
// regains control of the region.
func (e *WazeroEngine) hostPostFrame(_ context.Context, _ api.Module, ptr uint32) {
	raw, ok := e.mem.Read(ptr, 32)
	if !ok {
		Logger().Warn("guest posted out-of-bounds frame", zap.Uint32("ptr", ptr))
		return
	}
	var frame [32]byte
	copy(frame[:], raw)

	e.mu.Lock()
	post := e.post
	e.mu.Unlock()
	if post != nil {
		post(frame)
	}
}

// hostInvokeCallback is the guest's per-call completion path.
func (e *WazeroEngine) hostInvokeCallback(_ context.Context, _ api.Module, token uint64, success uint32, value uint64, dataPtr, dataLen, errPtr, errLen uint32) {
	e.mu.Lock()
	invoke := e.invoke
	e.mu.Unlock()
	if invoke == nil {
		Logger().Warn("guest invoked callback before registration", zap.Uint64("token", token))
		return
	}
	invoke(token, success != 0, value, uint64(dataPtr), dataLen, uint64(errPtr), errLen)
}

// RegisterPost installs the frame channel and creates the guest executor,
// which announces readiness on it.
func (e *WazeroEngine) RegisterPost(post quicbridge.PostFunc) error {
	if post == nil {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("nil post function").Build()
	}
	e.mu.Lock()
	if e.post != nil {
		e.mu.Unlock()
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindAlreadyUsed).
			Detail("post function already registered").Build()
	}
	e.post = post
	e.mu.Unlock()

	res, err := e.call(exportExecutorNew)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}
	e.executor = res
	e.started.Store(true)
	return nil
}

// RegisterInvoke installs the per-call delivery function.
func (e *WazeroEngine) RegisterInvoke(invoke quicbridge.InvokeFunc) error {
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

// Submit hands one command to the guest executor. Extra parameters travel
// through guest memory as a little-endian u64 array owned for the duration
// of the call.
func (e *WazeroEngine) Submit(cmd quicbridge.Command, dataAddr uint64, dataLen uint32, params []uint64) (uint64, error) {
	if !e.started.Load() {
		return 0, bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("post function must be registered before submit").Build()
	}
	if dataAddr > math.MaxUint32 {
		return 0, fmt.Errorf("data address %#x outside guest memory", dataAddr)
	}

	var paramsAddr uint64
	var paramsLen uint32
	if len(params) > 0 {
		buf := make([]byte, 8*len(params))
		for i, p := range params {
			binary.LittleEndian.PutUint64(buf[8*i:], p)
		}
		addr, err := e.Alloc(uint32(len(buf)))
		if err != nil {
			return 0, err
		}
		if err := e.Write(addr, buf); err != nil {
			e.Free(addr, uint32(len(buf)))
			return 0, err
		}
		paramsAddr = addr
		paramsLen = uint32(len(params))
		defer e.Free(paramsAddr, uint32(len(buf)))
	}

	taskID, err := e.call(exportExecutorSubmit,
		e.executor, uint64(cmd), dataAddr, uint64(dataLen), paramsAddr, uint64(paramsLen))
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}
	return taskID, nil
}

// SubmitCallback hands one command to the guest executor for per-call
// delivery against token.
func (e *WazeroEngine) SubmitCallback(cmd quicbridge.Command, dataAddr uint64, dataLen uint32, token uint64) error {
	if !e.started.Load() {
		return bridgeerrors.New(bridgeerrors.PhaseSetup, bridgeerrors.KindNotRegistered).
			Detail("post function must be registered before callback submit").Build()
	}
	if dataAddr > math.MaxUint32 {
		return fmt.Errorf("data address %#x outside guest memory", dataAddr)
	}
	if _, err := e.call(exportExecutorSubmitCallback,
		e.executor, uint64(cmd), dataAddr, uint64(dataLen), token); err != nil {
		return fmt.Errorf("callback submit: %w", err)
	}
	return nil
}

// Read implements quicbridge.Memory. The returned slice is a copy; guest
// memory can move under a later call.
func (e *WazeroEngine) Read(addr uint64, length uint32) ([]byte, error) {
	if addr > math.MaxUint32 {
		return nil, fmt.Errorf("address %#x outside guest memory", addr)
	}
	view, ok := e.mem.Read(uint32(addr), length)
	if !ok {
		return nil, fmt.Errorf("read of %d bytes at %#x out of bounds", length, addr)
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// Write implements quicbridge.Memory.
func (e *WazeroEngine) Write(addr uint64, data []byte) error {
	if addr > math.MaxUint32 {
		return fmt.Errorf("address %#x outside guest memory", addr)
	}
	if !e.mem.Write(uint32(addr), data) {
		return fmt.Errorf("write of %d bytes at %#x out of bounds", len(data), addr)
	}
	return nil
}

// Alloc implements quicbridge.Allocator via the guest's pool allocator.
func (e *WazeroEngine) Alloc(size uint32) (uint64, error) {
	addr, err := e.call(exportAllocateMemory, uint64(size))
	if err != nil {
		return 0, bridgeerrors.AllocationFailed(size, err)
	}
	if addr == 0 {
		return 0, bridgeerrors.AllocationFailed(size, nil)
	}
	return addr, nil
}

// Free implements quicbridge.Allocator. The size must match the paired
// Alloc; the guest pool indexes regions by it.
func (e *WazeroEngine) Free(addr uint64, size uint32) {
	if _, err := e.call(exportFreeMemory, addr, uint64(size)); err != nil {
		Logger().Warn("guest free failed",
			zap.Uint64("addr", addr), zap.Uint32("size", size), zap.Error(err))
	}
}

// Close destroys the guest executor, which broadcasts worker shutdown on
// the frame channel, then tears down the runtime. Idempotent.
func (e *WazeroEngine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.started.Load() {
		if _, err := e.call(exportExecutorFree, e.executor); err != nil {
			Logger().Warn("executor teardown failed", zap.Error(err))
		}
	}
	return e.runtime.Close(ctx)
}

// call invokes one guest export and returns its first result, or 0 when it
// has none.
func (e *WazeroEngine) call(name string, params ...uint64) (uint64, error) {
	e.callMu.Lock()
	defer e.callMu.Unlock()

	res, err := e.mod.ExportedFunction(name).Call(context.Background(), params...)
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}
