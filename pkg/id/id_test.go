package id

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestOrderingMonotonic(t *testing.T) {
	g := NewGeneratorWithClock(func() int64 { return 1000 })
	a := g.Next()
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected a<b")
	}
	if a.Ms() != 1000 {
		t.Fatalf("expected embedded ms 1000, got %d", a.Ms())
	}
}

func TestClockRegressionGuard(t *testing.T) {
	var now atomic.Int64
	now.Store(1000)
	g := NewGeneratorWithClock(now.Load)

	a := g.Next()
	now.Store(900)
	b := g.Next()
	if a.Compare(b) >= 0 {
		t.Fatalf("expected b>a despite clock regression")
	}
}

func TestSequenceOverflowWaitsNextMs(t *testing.T) {
	var now atomic.Int64
	now.Store(2000)
	g := NewGeneratorWithClock(now.Load)
	g.lastMs = 2000
	g.sequence = ^uint64(0) - 1

	_ = g.Next()

	done := make(chan ID)
	go func() { done <- g.Next() }()
	time.AfterFunc(10*time.Millisecond, func() { now.Store(2001) })

	select {
	case got := <-done:
		if got.Ms() != 2001 {
			t.Fatalf("expected rollover into 2001, got %d", got.Ms())
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for overflow handling")
	}
}

func TestParseRoundTrip(t *testing.T) {
	want := New(1700000000000, 42)
	got, err := Parse(want.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: %s != %s", got, want)
	}
	if _, err := Parse("zz"); err == nil {
		t.Fatalf("expected error for bad hex")
	}
	if _, err := FromBytes([]byte{1, 2}); err == nil {
		t.Fatalf("expected error for short bytes")
	}
}
