package overseer

import "testing"

func TestSigRingPushPopOrder(t *testing.T) {
	r := newSigRing()
	for _, name := range []string{"SIGHUP", "SIGTERM", "SIGINT"} {
		if !r.push(name) {
			t.Fatalf("push(%s) unexpectedly reported full", name)
		}
	}
	for _, want := range []string{"SIGHUP", "SIGTERM", "SIGINT"} {
		got, ok := r.pop()
		if !ok || got != want {
			t.Fatalf("pop() = %q, %v; want %q, true", got, ok, want)
		}
	}
	if _, ok := r.pop(); ok {
		t.Fatal("expected empty queue after draining")
	}
}

func TestSigRingOverflow(t *testing.T) {
	r := newSigRing()
	for i := 0; i < sigQueueCap; i++ {
		if !r.push("SIGUSR1") {
			t.Fatalf("push %d unexpectedly failed", i)
		}
	}
	if r.push("SIGUSR2") {
		t.Fatal("expected push to report full at capacity")
	}
	if r.len() != sigQueueCap {
		t.Fatalf("len() = %d, want %d", r.len(), sigQueueCap)
	}
}

func TestSigRingLenTracksPushPop(t *testing.T) {
	r := newSigRing()
	if r.len() != 0 {
		t.Fatalf("new ring len = %d, want 0", r.len())
	}
	r.push("SIGHUP")
	r.push("SIGTERM")
	if r.len() != 2 {
		t.Fatalf("len() = %d, want 2", r.len())
	}
	r.pop()
	if r.len() != 1 {
		t.Fatalf("len() = %d, want 1", r.len())
	}
}

func TestSigRingNeverExceedsCapDuringBurst(t *testing.T) {
	r := newSigRing()
	for i := 0; i < 5*sigQueueCap; i++ {
		r.push("SIGHUP")
		if r.len() > sigQueueCap {
			t.Fatalf("len() = %d exceeds cap %d after push %d", r.len(), sigQueueCap, i)
		}
	}
}
