package engine

import "testing"

func TestRequiredExportsComplete(t *testing.T) {
	want := map[string]bool{
		"quic_executor_new":             false,
		"quic_executor_submit":          false,
		"quic_executor_submit_callback": false,
		"quic_executor_free":            false,
		"quic_allocate_memory":          false,
		"quic_free_memory":              false,
	}
	for _, name := range requiredExports() {
		seen, ok := want[name]
		if !ok {
			t.Fatalf("unexpected export %q", name)
		}
		if seen {
			t.Fatalf("duplicate export %q", name)
		}
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("missing export %q", name)
		}
	}
}

func TestHostModuleName(t *testing.T) {
	if HostModule != "quicbridge" {
		t.Fatalf("host module = %q", HostModule)
	}
}
