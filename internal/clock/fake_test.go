package clock

import (
	"context"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAfterFunc(t *testing.T) {
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(10*time.Second, func() { fired++ })

	c.Advance(9 * time.Second)
	if fired != 0 {
		t.Fatalf("Timer fired early")
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("Expected timer to fire once, got %d", fired)
	}
	c.Advance(time.Minute)
	if fired != 1 {
		t.Errorf("Timer fired again: %d", fired)
	}
}

func TestFakeStop(t *testing.T) {
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Errorf("Expected Stop to report an active timer")
	}
	if timer.Stop() {
		t.Errorf("Second Stop should return false")
	}
	c.Advance(time.Hour)
	if fired {
		t.Errorf("Stopped timer fired")
	}
	if c.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", c.Pending())
	}
}

func TestFakeDeadlineOrder(t *testing.T) {
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected deadline order, got %v", order)
	}
}

func TestFakeSleepAdvances(t *testing.T) {
	c := Fake(epoch)
	fired := false
	c.AfterFunc(time.Second, func() { fired = true })

	if err := Sleep(context.Background(), c, 2*time.Second); err != nil {
		t.Fatalf("Sleep failed: %v", err)
	}
	if !fired {
		t.Errorf("Sleeping past a deadline should fire the timer")
	}
	if got := c.Now().Sub(epoch); got != 2*time.Second {
		t.Errorf("Expected time to advance 2s, got %v", got)
	}
	if s := c.Sleeps(); len(s) != 1 || s[0] != 2*time.Second {
		t.Errorf("Unexpected recorded sleeps %v", s)
	}
}

func TestSleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, Real(), time.Hour); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
