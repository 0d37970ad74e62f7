package pacing

import (
	"context"
	"testing"
	"time"
)

func TestIntervalGateFirstCallPassesImmediately(t *testing.T) {
	gate := NewInterval(time.Minute)
	slept := time.Duration(0)
	gate.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		return nil
	}

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if slept != 0 {
		t.Fatalf("first call should not sleep, slept %v", slept)
	}
}

func TestIntervalGateEnforcesDelay(t *testing.T) {
	current := time.Unix(1000, 0)
	gate := NewInterval(500 * time.Millisecond)
	gate.now = func() time.Time { return current }

	var slept time.Duration
	gate.sleep = func(_ context.Context, d time.Duration) error {
		slept += d
		current = current.Add(d)
		return nil
	}

	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	current = current.Add(100 * time.Millisecond)
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if slept != 400*time.Millisecond {
		t.Fatalf("expected 400ms of sleep, got %v", slept)
	}
}

func TestIntervalGateZeroDelay(t *testing.T) {
	gate := NewInterval(0)
	for i := 0; i < 3; i++ {
		if err := gate.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestIntervalGateCanceledContext(t *testing.T) {
	gate := NewInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	cancel()
	if err := gate.Wait(ctx); err == nil {
		t.Fatal("expected context error on second wait")
	}
}

func TestNoneGate(t *testing.T) {
	if err := None.Wait(context.Background()); err != nil {
		t.Fatalf("none gate should never error: %v", err)
	}
}
