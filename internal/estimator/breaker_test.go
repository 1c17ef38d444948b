package estimator

import (
	"testing"
	"time"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := newBreaker("test", 3, 100*time.Millisecond, testLogger())

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d should be allowed while closed", i)
		}
		b.Record(false)
	}

	if b.Allow() {
		t.Error("breaker should be open after reaching the failure threshold")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newBreaker("test", 3, 100*time.Millisecond, testLogger())

	b.Record(false)
	b.Record(false)
	b.Record(true)
	b.Record(false)
	b.Record(false)

	if !b.Allow() {
		t.Error("breaker should still be closed; success resets the streak")
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := newBreaker("test", 1, 20*time.Millisecond, testLogger())

	b.Record(false)
	if b.Allow() {
		t.Fatal("breaker should be open")
	}

	time.Sleep(25 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("breaker should allow a probe after the cooldown")
	}

	// Failed probe reopens immediately.
	b.Record(false)
	if b.Allow() {
		t.Error("breaker should reopen after a failed probe")
	}

	time.Sleep(25 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("breaker should allow another probe")
	}
	b.Record(true)
	if !b.Allow() {
		t.Error("breaker should close after a successful probe")
	}
}
