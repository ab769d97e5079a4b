package infra

import (
	"testing"
	"time"
)

func TestBurstStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewBurstStore(0.02, 1)

	if !s.Allow("10.0.0.1") {
		t.Fatalf("expected first Allow to be true")
	}
	if s.Allow("10.0.0.1") {
		t.Fatalf("expected second immediate Allow to be false (burst=1)")
	}
}

func TestBurstStore_OriginsAreIndependent(t *testing.T) {
	s := NewBurstStore(0.02, 1)

	if !s.Allow("10.0.0.1") || !s.Allow("10.0.0.2") {
		t.Fatalf("expected independent buckets per origin")
	}
}

func TestBurstStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewBurstStore(0.02, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	if !s.Allow("10.0.0.1") {
		t.Fatalf("expected first Allow to be true")
	}
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	// bucket recriado depois da limpeza: a rajada inicial volta
	if !s.Allow("10.0.0.1") {
		t.Fatalf("expected recreated bucket to allow again")
	}
}
