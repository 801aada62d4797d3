package overseer

import (
	"syscall"
	"testing"
)

func TestNormalizeSignalName(t *testing.T) {
	cases := map[string]string{
		"term":    "SIGTERM",
		"TERM":    "SIGTERM",
		"SIGTERM": "SIGTERM",
		"sigterm": "SIGTERM",
		" Hup ":   "SIGHUP",
	}
	for in, want := range cases {
		if got := normalizeSignalName(in); got != want {
			t.Errorf("normalizeSignalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSignalByNameRoundTrip(t *testing.T) {
	sig, ok := signalByName("TERM")
	if !ok || sig != syscall.SIGTERM {
		t.Fatalf("signalByName(TERM) = %v, %v; want SIGTERM, true", sig, ok)
	}
	if name := nameBySignal(sig); name != "SIGTERM" {
		t.Fatalf("nameBySignal roundtrip = %q, want SIGTERM", name)
	}
}

func TestSignalByNameUnknown(t *testing.T) {
	if _, ok := signalByName("NOTASIGNAL"); ok {
		t.Fatal("expected unknown signal name to fail lookup")
	}
}

func TestNameBySignalUnknown(t *testing.T) {
	if name := nameBySignal(syscall.Signal(9999)); name != "" {
		t.Fatalf("expected empty name for unmapped signal, got %q", name)
	}
}
