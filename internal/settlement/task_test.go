package settlement

import (
	"errors"
	"testing"
	"time"
)

func TestTaskRunAccounting(t *testing.T) {
	tk := newTask()
	now := time.Now()

	if err := tk.tryBegin(now); err != nil {
		t.Fatalf("tryBegin: %v", err)
	}
	tk.complete(10, 4)

	if err := tk.tryBegin(now); err != nil {
		t.Fatalf("tryBegin after complete: %v", err)
	}
	tk.fail(errors.New("provider down"), 5)

	s := tk.snapshot(time.Minute)
	if s.TotalRuns != 2 || s.SuccessfulRuns != 1 || s.FailedRuns != 1 {
		t.Fatalf("runs = %d/%d/%d, want 2/1/1", s.TotalRuns, s.SuccessfulRuns, s.FailedRuns)
	}
	if s.TotalRuns != s.SuccessfulRuns+s.FailedRuns {
		t.Fatalf("total %d != successful %d + failed %d", s.TotalRuns, s.SuccessfulRuns, s.FailedRuns)
	}
	if s.BetsVerified != 10 || s.BetsSettled != 4 {
		t.Fatalf("bets = %d/%d, want 10/4", s.BetsVerified, s.BetsSettled)
	}
	if s.State != StateFailed || s.LastError != "provider down" {
		t.Fatalf("state = %s, lastError = %q", s.State, s.LastError)
	}
}

func TestTaskRefusesConcurrentRun(t *testing.T) {
	tk := newTask()
	if err := tk.tryBegin(time.Now()); err != nil {
		t.Fatalf("first tryBegin: %v", err)
	}
	if err := tk.tryBegin(time.Now()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("second tryBegin = %v, want ErrRunInProgress", err)
	}
	tk.complete(0, 0)
	if err := tk.tryBegin(time.Now()); err != nil {
		t.Fatalf("tryBegin after completion: %v", err)
	}
}

func TestTaskBreakerTripsAndRearms(t *testing.T) {
	tk := newTask()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := tk.tryBegin(time.Now()); err != nil {
			t.Fatalf("tryBegin %d: %v", i, err)
		}
		tripped := tk.fail(boom, 3)
		if want := i == 2; tripped != want {
			t.Fatalf("fail %d tripped = %v, want %v", i, tripped, want)
		}
	}

	if err := tk.tryBegin(time.Now()); !errors.Is(err, ErrTaskDisabled) {
		t.Fatalf("tryBegin while disabled = %v, want ErrTaskDisabled", err)
	}

	tk.enable()
	s := tk.snapshot(0)
	if !s.Enabled || s.ConsecutiveErrors != 0 {
		t.Fatalf("after enable: enabled=%v consecutive=%d", s.Enabled, s.ConsecutiveErrors)
	}
	if err := tk.tryBegin(time.Now()); err != nil {
		t.Fatalf("tryBegin after enable: %v", err)
	}
}

func TestTaskCompleteClearsErrorStreak(t *testing.T) {
	tk := newTask()

	_ = tk.tryBegin(time.Now())
	tk.fail(errors.New("x"), 5)
	_ = tk.tryBegin(time.Now())
	tk.fail(errors.New("y"), 5)
	_ = tk.tryBegin(time.Now())
	tk.complete(1, 1)

	s := tk.snapshot(0)
	if s.ConsecutiveErrors != 0 || s.LastError != "" {
		t.Fatalf("streak not cleared: consecutive=%d lastError=%q", s.ConsecutiveErrors, s.LastError)
	}
	if s.TotalRuns != 3 || s.TotalRuns != s.SuccessfulRuns+s.FailedRuns {
		t.Fatalf("counters off: total=%d succ=%d failed=%d", s.TotalRuns, s.SuccessfulRuns, s.FailedRuns)
	}
}
