package clock

import (
	"testing"
	"time"
)

func TestTimerHeapOrdersByDeadline(t *testing.T) {
	h := NewTimerHeap()
	h.Start(3, 30*time.Millisecond)
	h.Start(1, 10*time.Millisecond)
	h.Start(2, 20*time.Millisecond)

	d, ok := h.NextDeadline()
	if !ok || d != 10*time.Millisecond {
		t.Fatalf("expected earliest deadline 10ms, got %v ok=%v", d, ok)
	}

	due := h.PopDue(25 * time.Millisecond)
	if len(due) != 2 || due[0] != 1 || due[1] != 2 {
		t.Fatalf("unexpected due set: %v", due)
	}
}

func TestCancelIsLazy(t *testing.T) {
	h := NewTimerHeap()
	tm := h.Start(1, 5*time.Millisecond)
	h.Start(2, 10*time.Millisecond)
	h.Cancel(tm)

	if n := h.Len(); n != 1 {
		t.Fatalf("expected 1 live timer after cancel, got %d", n)
	}

	due := h.PopDue(100 * time.Millisecond)
	if len(due) != 1 || due[0] != 2 {
		t.Fatalf("cancelled timer should not fire: %v", due)
	}
}

func TestClockAdvanceNeverGoesBackwards(t *testing.T) {
	c := New()
	c.Advance(50 * time.Millisecond)
	c.Advance(10 * time.Millisecond)
	if c.Now() != 50*time.Millisecond {
		t.Fatalf("clock moved backwards: %v", c.Now())
	}
}
