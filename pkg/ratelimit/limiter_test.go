package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeNow struct{ t time.Time }

func (f *fakeNow) now() time.Time { return f.t }

func TestTokenBucketBurstAndRefill(t *testing.T) {
	clock := &fakeNow{t: time.Unix(1000, 0)}
	tb := NewTokenBucket(3, time.Second)
	tb.now = clock.now
	tb.last = clock.t

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d should be allowed within burst", i)
		}
	}
	if tb.Allow() {
		t.Fatal("fourth request should be limited")
	}

	clock.t = clock.t.Add(1500 * time.Millisecond)
	if !tb.Allow() {
		t.Fatal("one token should have been refilled")
	}
	if tb.Allow() {
		t.Fatal("only one and a half tokens were refilled")
	}

	clock.t = clock.t.Add(time.Hour)
	if got := tb.Available(); got != 3 {
		t.Errorf("refill should cap at capacity, got %d", got)
	}
}

func TestPerMinute(t *testing.T) {
	tb := PerMinute(120, 2)
	if tb.rate != 2 {
		t.Errorf("expected 2 tokens per second, got %v", tb.rate)
	}
	if tb.Available() != 2 {
		t.Errorf("expected burst of 2")
	}
}

func TestWaitRespectsContext(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should succeed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := tb.Wait(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > time.Second {
		t.Error("Wait did not return promptly on cancellation")
	}
}

func TestWaitBlocksUntilRefill(t *testing.T) {
	tb := NewTokenBucket(1, 30*time.Millisecond)
	_ = tb.Wait(context.Background())

	start := time.Now()
	if err := tb.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed < 15*time.Millisecond {
		t.Errorf("second token arrived too early: %v", elapsed)
	}
}
