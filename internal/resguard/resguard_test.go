package resguard

import (
	"testing"
	"time"
)

func TestAcquireRespectsMaxConnections(t *testing.T) {
	g := New(2, 1000, 1000, 20*time.Millisecond)

	if !g.Acquire() {
		t.Fatal("expected first Acquire to succeed")
	}
	if !g.Acquire() {
		t.Fatal("expected second Acquire to succeed")
	}
	if g.InUse() != 2 {
		t.Fatalf("InUse = %d, want 2", g.InUse())
	}
	if g.Acquire() {
		t.Fatal("expected third Acquire to be rejected at capacity")
	}
}

func TestReleaseFreesASlot(t *testing.T) {
	g := New(1, 1000, 1000, 20*time.Millisecond)

	if !g.Acquire() {
		t.Fatal("expected Acquire to succeed")
	}
	g.Release()
	if g.InUse() != 0 {
		t.Fatalf("InUse = %d, want 0 after Release", g.InUse())
	}
	if !g.Acquire() {
		t.Fatal("expected Acquire to succeed again after Release")
	}
}

func TestAcquireRejectsBeyondRateLimit(t *testing.T) {
	g := New(100, 1, 1, 5*time.Millisecond)

	if !g.Acquire() {
		t.Fatal("expected first Acquire within burst to succeed")
	}
	if g.Acquire() {
		t.Fatal("expected second Acquire to be rejected by the rate limiter")
	}
}
