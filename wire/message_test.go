package wire

import "testing"

func TestTaskStatus_Families(t *testing.T) {
	cases := []struct {
		status    TaskStatus
		isSuccess bool
		isError   bool
	}{
		{StatusSuccess, true, false},
		{StatusSuccessWithData, true, false},
		{StatusWorkerShutdown, false, false},
		{StatusUnknownError, false, true},
		{StatusProtocolError, false, true},
		{StatusVersionMismatch, false, true},
		{StatusCorruptedData, false, true},
	}
	for _, tc := range cases {
		if got := tc.status.IsSuccess(); got != tc.isSuccess {
			t.Errorf("%v.IsSuccess() = %v, want %v", tc.status, got, tc.isSuccess)
		}
		if got := tc.status.IsError(); got != tc.isError {
			t.Errorf("%v.IsError() = %v, want %v", tc.status, got, tc.isError)
		}
	}
}

func TestDataType_Known(t *testing.T) {
	for d := TypeNone; d <= TypeString; d++ {
		if !d.Known() {
			t.Errorf("%v should be known", d)
		}
	}
	for _, d := range []DataType{5, 99, 255} {
		if d.Known() {
			t.Errorf("DataType(%d) should be unknown", d)
		}
	}
}

func TestMessage_Valid(t *testing.T) {
	if !NewNoData(1).Valid() {
		t.Error("constructor produced invalid message")
	}
	m := NewNoData(1)
	m.Magic = 0x12345678
	if m.Valid() {
		t.Error("wrong magic reported valid")
	}
	m = NewNoData(1)
	m.Version = 2
	if m.Valid() {
		t.Error("wrong version reported valid")
	}
}

func TestSentinelConstructors(t *testing.T) {
	s := NewShutdown()
	if s.TaskID != SentinelTaskID || s.Status != StatusWorkerShutdown {
		t.Errorf("shutdown frame: %+v", s)
	}
	r := NewReady(true)
	if r.TaskID != SentinelTaskID {
		t.Errorf("ready frame task id %d", r.TaskID)
	}
	if b, ok := r.Payload.(Bool); !ok || !b.Value {
		t.Errorf("ready payload %#v", r.Payload)
	}
}
