package wire

import (
	"encoding/binary"
	stderrors "errors"
	"testing"

	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{"no_data", NewNoData(1)},
		{"bool_true", NewBool(2, true)},
		{"bool_false", NewBool(3, false)},
		{"u64_zero", NewU64(4, 0x0000000000000000)},
		{"u64_all_bits", NewU64(5, 0xFFFFFFFFFFFFFFFF)},
		{"u64_top_bit", NewU64(6, 0x8000000000000000)},
		{"bytes", NewBytes(7, 0x1000, 4096)},
		{"string", NewError(8, StatusUnknownError, 0x2000, 27)},
		{"shutdown", NewShutdown()},
		{"ready", NewReady(true)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf := Encode(tc.msg)
			got, err := Decode(buf[:])
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.TaskID != tc.msg.TaskID {
				t.Errorf("task id %d, want %d", got.TaskID, tc.msg.TaskID)
			}
			if got.Status != tc.msg.Status {
				t.Errorf("status %v, want %v", got.Status, tc.msg.Status)
			}
			if got.Payload != tc.msg.Payload {
				t.Errorf("payload %#v, want %#v", got.Payload, tc.msg.Payload)
			}
			if !got.Valid() {
				t.Error("decoded message reports invalid")
			}
		})
	}
}

func TestEncode_ExactLayout(t *testing.T) {
	msg := NewU64(0xDEADBEEF12345678, 0xFEEDFACECAFEBABE)
	buf := Encode(msg)

	if len(buf) != 32 {
		t.Fatalf("frame is %d bytes, want 32", len(buf))
	}
	if got := binary.LittleEndian.Uint32(buf[0:4]); got != Magic {
		t.Errorf("magic bytes 0x%08X, want 0x%08X", got, Magic)
	}
	if buf[4] != Version {
		t.Errorf("version byte %d, want %d", buf[4], Version)
	}
	if buf[5] != byte(TypeU64) {
		t.Errorf("data type byte %d, want %d", buf[5], TypeU64)
	}
	if got := binary.LittleEndian.Uint16(buf[6:8]); got != uint16(StatusSuccessWithData) {
		t.Errorf("status bytes 0x%04X, want 0x%04X", got, uint16(StatusSuccessWithData))
	}
	if got := binary.LittleEndian.Uint64(buf[8:16]); got != 0xDEADBEEF12345678 {
		t.Errorf("task id bytes 0x%016X", got)
	}
	if got := binary.LittleEndian.Uint64(buf[16:24]); got != 0xFEEDFACECAFEBABE {
		t.Errorf("payload bytes 0x%016X, want 0xFEEDFACECAFEBABE", got)
	}
	for i := 24; i < 32; i++ {
		if buf[i] != 0 {
			t.Errorf("byte %d = 0x%02X, want zero padding", i, buf[i])
		}
	}
}

func TestDecode_ShortInput(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 31} {
		if _, err := Decode(make([]byte, n)); err == nil {
			t.Errorf("decode of %d bytes succeeded", n)
		}
	}
}

func TestDecode_TamperedMagic(t *testing.T) {
	buf := Encode(NewNoData(9))
	buf[0] ^= 0xFF

	_, err := Decode(buf[:])
	if err == nil {
		t.Fatal("tampered magic accepted")
	}
	want := &bridgeerrors.Error{Phase: bridgeerrors.PhaseDecode, Kind: bridgeerrors.KindBadMagic}
	if !stderrors.Is(err, want) {
		t.Errorf("error %v, want bad_magic", err)
	}
}

func TestDecode_WrongVersion(t *testing.T) {
	buf := Encode(NewNoData(9))
	buf[4] = Version + 1

	_, err := Decode(buf[:])
	want := &bridgeerrors.Error{Phase: bridgeerrors.PhaseDecode, Kind: bridgeerrors.KindVersionMismatch}
	if !stderrors.Is(err, want) {
		t.Errorf("error %v, want version_mismatch", err)
	}
}

func TestDecode_UnknownDiscriminants(t *testing.T) {
	// DataType 99 must be rejected, not coerced to a default.
	buf := Encode(NewNoData(9))
	buf[5] = 99
	_, err := Decode(buf[:])
	if !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseDecode, Kind: bridgeerrors.KindUnknownDataType}) {
		t.Errorf("data type 99: %v, want unknown_data_type", err)
	}

	// TaskStatus 0xDEAD likewise.
	buf = Encode(NewNoData(9))
	binary.LittleEndian.PutUint16(buf[6:8], 0xDEAD)
	_, err = Decode(buf[:])
	if !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseDecode, Kind: bridgeerrors.KindUnknownStatus}) {
		t.Errorf("status 0xDEAD: %v, want unknown_status", err)
	}
}

func TestPeekTaskID(t *testing.T) {
	buf := Encode(NewU64(777, 1))
	buf[5] = 99 // unknown data type, but header intact

	id, ok := PeekTaskID(buf[:])
	if !ok || id != 777 {
		t.Fatalf("peek = (%d, %v), want (777, true)", id, ok)
	}

	// Untrusted header yields nothing.
	buf[0] ^= 0xFF
	if _, ok := PeekTaskID(buf[:]); ok {
		t.Error("peek trusted a corrupt header")
	}
	if _, ok := PeekTaskID(buf[:8]); ok {
		t.Error("peek trusted a short header")
	}
}
