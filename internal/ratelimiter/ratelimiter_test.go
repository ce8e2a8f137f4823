package ratelimiter

import (
	"context"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		commandsPerSecond uint
		burst             uint
		wantNil           bool
	}{
		{name: "standard rate", commandsPerSecond: 100, burst: 200},
		{name: "zero burst defaults to rate", commandsPerSecond: 5, burst: 0},
		{name: "unlimited", commandsPerSecond: 0, burst: 10, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.commandsPerSecond, tt.burst)
			if tt.wantNil {
				if limiter != nil {
					t.Fatal("expected nil limiter for unlimited rate")
				}
				return
			}
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
			if limiter.Limit() != float64(tt.commandsPerSecond) {
				t.Errorf("Limit() = %v, want %d", limiter.Limit(), tt.commandsPerSecond)
			}
		})
	}
}

func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("command %d should be allowed (within burst)", i)
		}
	}

	if limiter.Allow() {
		t.Fatal("command should be limited after burst exhausted")
	}

	time.Sleep(110 * time.Millisecond)

	if !limiter.Allow() {
		t.Fatal("command should be allowed after token replenishment")
	}
}

func TestWait(t *testing.T) {
	limiter := New(10, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("first Wait() failed: %v", err)
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		t.Fatalf("second Wait() failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait() returned too quickly: %v", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	limiter := New(1, 1)
	_ = limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); err == nil {
		t.Fatal("Wait() should fail on a cancelled context")
	}
}

func TestNilLimiter(t *testing.T) {
	var limiter *RateLimiter

	for i := 0; i < 1000; i++ {
		if !limiter.Allow() {
			t.Fatal("nil limiter must never limit")
		}
	}
	if err := limiter.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter Wait() failed: %v", err)
	}
	if limiter.Limit() != 0 {
		t.Errorf("nil limiter Limit() = %v, want 0", limiter.Limit())
	}
}
