package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pricehunt/internal/clock"
)

func TestWindowQuota(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := New(clk)

	for i := 0; i < 8; i++ {
		if !l.Allow("u1", "coach", 8) {
			t.Fatalf("call %d should be allowed", i+1)
		}
		clk.Advance(time.Second) // 8 calls inside 10s
	}
	if l.Allow("u1", "coach", 8) {
		t.Fatalf("9th call within the window should be denied")
	}

	// 61s after the first call the oldest entry has aged out.
	clk.Advance(61*time.Second - 8*time.Second)
	if !l.Allow("u1", "coach", 8) {
		t.Fatalf("call after the window expired should be allowed")
	}
}

func TestBucketsAndUsersAreIndependent(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := New(clk)

	if !l.Allow("u1", "shot", 1) {
		t.Fatalf("first shot should pass")
	}
	if l.Allow("u1", "shot", 1) {
		t.Fatalf("second shot should be denied")
	}
	if !l.Allow("u1", "coach", 1) {
		t.Fatalf("other bucket must not share the quota")
	}
	if !l.Allow("u2", "shot", 1) {
		t.Fatalf("other user must not share the quota")
	}
}

func TestLastSlotUnderContention(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	l := New(clk)
	if !l.Allow("u1", "shot", 2) {
		t.Fatalf("seed call should pass")
	}

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("u1", "shot", 2) {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()
	if admitted != 1 {
		t.Fatalf("exactly one goroutine should take the last slot, got %d", admitted)
	}
}

func TestZeroLimitDeniesEverything(t *testing.T) {
	l := New(clock.NewFake(time.Unix(1_700_000_000, 0)))
	if l.Allow("u1", "shot", 0) {
		t.Fatalf("zero limit should deny")
	}
}
