package scrape

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSleeper records requested delays instead of sleeping.
type fakeSleeper struct {
	delays []time.Duration
	err    error
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return f.err
}

func testController(sleeper *fakeSleeper) *Controller {
	ctrl := NewController(testLogger())
	ctrl.sleep = sleeper.sleep
	return ctrl
}

func TestControllerThrottledCooldown(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	if err := ctrl.Throttled(context.Background(), 3); err != nil {
		t.Fatalf("Throttled: %v", err)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 60*time.Second {
		t.Errorf("throttle delay = %v, want exactly 60s", sleeper.delays)
	}
}

func TestControllerBlockedScalesAndCaps(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	for attempt := 1; attempt <= 8; attempt++ {
		if err := ctrl.Blocked(context.Background(), 1, attempt); err != nil {
			t.Fatalf("Blocked attempt %d: %v", attempt, err)
		}
	}

	want := []time.Duration{
		30 * time.Second, 60 * time.Second, 90 * time.Second,
		120 * time.Second, 150 * time.Second, 180 * time.Second,
		180 * time.Second, 180 * time.Second,
	}
	for i, d := range sleeper.delays {
		if d != want[i] {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, d, want[i])
		}
	}
}

func TestControllerServerErrorScalesAndCaps(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	for attempt := 1; attempt <= 10; attempt++ {
		if err := ctrl.ServerError(context.Background(), 503, 1, attempt); err != nil {
			t.Fatalf("ServerError attempt %d: %v", attempt, err)
		}
	}

	for i, d := range sleeper.delays {
		want := 10 * time.Second * time.Duration(i+1)
		if want > 90*time.Second {
			want = 90 * time.Second
		}
		if d != want {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, d, want)
		}
	}
}

func TestControllerNetworkErrorFixedDelay(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	if err := ctrl.NetworkError(context.Background(), 2, 1, context.DeadlineExceeded); err != nil {
		t.Fatalf("NetworkError: %v", err)
	}
	if len(sleeper.delays) != 1 || sleeper.delays[0] != 5*time.Second {
		t.Errorf("network delay = %v, want exactly 5s", sleeper.delays)
	}
}

func TestControllerWaitStaysInRange(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	for _, r := range []float64{0, 0.25, 0.5, 0.999} {
		ctrl.randFn = func() float64 { return r }
		if err := ctrl.Wait(context.Background(), time.Second, 3*time.Second); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	for i, d := range sleeper.delays {
		if d < time.Second || d > 3*time.Second {
			t.Errorf("delay %d = %v outside [1s, 3s]", i, d)
		}
	}
	if sleeper.delays[0] != time.Second {
		t.Errorf("rand 0 should yield min delay, got %v", sleeper.delays[0])
	}
}

func TestControllerWaitDegenerateRange(t *testing.T) {
	sleeper := &fakeSleeper{}
	ctrl := testController(sleeper)

	if err := ctrl.Wait(context.Background(), 2*time.Second, 2*time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if sleeper.delays[0] != 2*time.Second {
		t.Errorf("equal min and max should sleep min, got %v", sleeper.delays[0])
	}
}
