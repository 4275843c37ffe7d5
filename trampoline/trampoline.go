package trampoline

import (
	"math"

	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

// Handler shapes. On failure the handler receives a typed error and the
// zero value; on success err is nil. BytesHandler receives the address and
// length of a result region in engine memory and becomes responsible for
// freeing it.
type (
	VoidHandler  func(err error)
	BoolHandler  func(value bool, err error)
	U64Handler   func(value uint64, err error)
	F64Handler   func(value float64, err error)
	BytesHandler func(addr uint64, length uint32, err error)
)

type shape uint8

const (
	shapeVoid shape = iota
	shapeBool
	shapeU64
	shapeF64
	shapeBytes
)

type entry struct {
	void  VoidHandler
	boolh BoolHandler
	u64h  U64Handler
	f64h  F64Handler
	bytes BytesHandler
	shape shape
}

// Table holds live trampolines keyed by token. Token 0 is never issued.
// Not safe for concurrent use; all mutation happens on the dispatch
// goroutine.
type Table struct {
	mem       quicbridge.Memory
	entries   map[uint64]entry
	nextToken uint64
}

// NewTable creates an empty table. mem is used to decode engine-reported
// error messages.
func NewTable(mem quicbridge.Memory) *Table {
	return &Table{mem: mem, entries: make(map[uint64]entry)}
}

func (t *Table) insert(e entry) uint64 {
	t.nextToken++
	t.entries[t.nextToken] = e
	return t.nextToken
}

// Void registers a no-result trampoline and returns its token.
func (t *Table) Void(h VoidHandler) uint64 {
	return t.insert(entry{shape: shapeVoid, void: h})
}

// Bool registers a boolean-result trampoline and returns its token.
func (t *Table) Bool(h BoolHandler) uint64 {
	return t.insert(entry{shape: shapeBool, boolh: h})
}

// U64 registers a 64-bit-result trampoline and returns its token.
func (t *Table) U64(h U64Handler) uint64 {
	return t.insert(entry{shape: shapeU64, u64h: h})
}

// F64 registers a floating-point-result trampoline and returns its token.
// The engine delivers the value as IEEE-754 bits in the u64 slot.
func (t *Table) F64(h F64Handler) uint64 {
	return t.insert(entry{shape: shapeF64, f64h: h})
}

// Bytes registers a byte-buffer-result trampoline and returns its token.
func (t *Table) Bytes(h BytesHandler) uint64 {
	return t.insert(entry{shape: shapeBytes, bytes: h})
}

// Invoke delivers one completion to the trampoline identified by token and
// removes it; a trampoline fires at most once. The return reports whether a
// trampoline was found; a completion for an unknown token is dropped by the
// caller like any other uncorrelated result.
func (t *Table) Invoke(token uint64, success bool, value uint64, dataAddr uint64, dataLen uint32, errAddr uint64, errLen uint32) bool {
	e, ok := t.entries[token]
	if !ok {
		return false
	}
	delete(t.entries, token)

	var err error
	if !success {
		err = t.decodeError(errAddr, errLen)
	}

	switch e.shape {
	case shapeVoid:
		e.void(err)
	case shapeBool:
		e.boolh(value != 0 && err == nil, err)
	case shapeU64:
		if err != nil {
			e.u64h(0, err)
		} else {
			e.u64h(value, nil)
		}
	case shapeF64:
		if err != nil {
			e.f64h(0, err)
		} else {
			e.f64h(math.Float64frombits(value), nil)
		}
	case shapeBytes:
		if err != nil {
			e.bytes(0, 0, err)
		} else {
			e.bytes(dataAddr, dataLen, nil)
		}
	}
	return true
}

// decodeError reads the UTF-8 message the engine left in its heap. The raw
// bytes never reach the handler.
func (t *Table) decodeError(addr uint64, length uint32) error {
	if addr == 0 || length == 0 {
		return bridgeerrors.New(bridgeerrors.PhaseEngine, bridgeerrors.KindEngineFailure).
			Detail("engine reported failure without a message").Build()
	}
	msg, err := t.mem.Read(addr, length)
	if err != nil {
		return bridgeerrors.New(bridgeerrors.PhaseEngine, bridgeerrors.KindEngineFailure).
			Cause(err).Detail("engine error message unreadable").Build()
	}
	return bridgeerrors.New(bridgeerrors.PhaseEngine, bridgeerrors.KindEngineFailure).
		Detail("%s", string(msg)).Build()
}

// Len returns the number of live trampolines.
func (t *Table) Len() int {
	return len(t.entries)
}
