package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type retryAfterErr struct {
	wait time.Duration
}

func (e *retryAfterErr) Error() string { return "slow down" }

// recorder replaces the sleeper and keeps every requested wait.
type recorder struct {
	waits []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}

func TestDo_SucceedsFirstTry(t *testing.T) {
	rec := &recorder{}
	calls := 0

	err := Do(context.Background(), Policy{Attempts: 3, Sleep: rec.sleep}, func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(rec.waits) != 0 {
		t.Errorf("waits = %v, want none", rec.waits)
	}
}

func TestDo_ShouldRetryFalse(t *testing.T) {
	orig := errors.New("boom")
	rec := &recorder{}
	calls := 0

	err := Do(context.Background(), Policy{
		Attempts:    5,
		Sleep:       rec.sleep,
		ShouldRetry: func(error) bool { return false },
	}, func(context.Context) error {
		calls++
		return orig
	})

	if err != orig {
		t.Errorf("err = %v, want original error value", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDo_ExhaustedReturnsOriginal(t *testing.T) {
	orig := &retryAfterErr{}
	rec := &recorder{}
	calls := 0

	err := Do(context.Background(), Policy{
		Attempts:      3,
		Delay:         time.Millisecond,
		DisableJitter: true,
		Sleep:         rec.sleep,
	}, func(context.Context) error {
		calls++
		return orig
	})

	var got *retryAfterErr
	if !errors.As(err, &got) || got != orig {
		t.Errorf("err = %v, want original *retryAfterErr", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(rec.waits) != 2 {
		t.Errorf("waits = %d, want 2", len(rec.waits))
	}
}

func TestDo_ExponentialWithoutJitter(t *testing.T) {
	tests := []struct {
		name       string
		delay      time.Duration
		multiplier float64
		want       []time.Duration
	}{
		{
			name:  "default multiplier",
			delay: 100 * time.Millisecond,
			want:  []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond},
		},
		{
			name:       "multiplier three",
			delay:      10 * time.Millisecond,
			multiplier: 3,
			want:       []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond, 270 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			_ = Do(context.Background(), Policy{
				Attempts:      len(tt.want) + 1,
				Delay:         tt.delay,
				Multiplier:    tt.multiplier,
				DisableJitter: true,
				Sleep:         rec.sleep,
			}, func(context.Context) error {
				return errors.New("fail")
			})

			if len(rec.waits) != len(tt.want) {
				t.Fatalf("waits = %v, want %v", rec.waits, tt.want)
			}
			for i := range tt.want {
				if rec.waits[i] != tt.want[i] {
					t.Errorf("wait[%d] = %v, want %v", i, rec.waits[i], tt.want[i])
				}
			}
		})
	}
}

func TestDo_JitterBounds(t *testing.T) {
	rec := &recorder{}
	delay := 100 * time.Millisecond

	_ = Do(context.Background(), Policy{
		Attempts: 4,
		Delay:    delay,
		Sleep:    rec.sleep,
	}, func(context.Context) error {
		return errors.New("fail")
	})

	base := delay
	for i, w := range rec.waits {
		lo := time.Duration(float64(base) * (1 - JitterFactor))
		hi := time.Duration(float64(base)*(1+JitterFactor)) + time.Nanosecond
		if w < lo || w > hi {
			t.Errorf("wait[%d] = %v, want within [%v, %v]", i, w, lo, hi)
		}
		base *= 2
	}
}

func TestDo_RetryAfterOverride(t *testing.T) {
	for _, jitterOff := range []bool{false, true} {
		rec := &recorder{}
		override := 1234 * time.Millisecond

		_ = Do(context.Background(), Policy{
			Attempts:      3,
			Delay:         time.Millisecond,
			DisableJitter: jitterOff,
			Sleep:         rec.sleep,
			RetryAfter: func(err error) (time.Duration, bool) {
				var ra *retryAfterErr
				if errors.As(err, &ra) {
					return ra.wait, true
				}
				return 0, false
			},
		}, func(context.Context) error {
			return &retryAfterErr{wait: override}
		})

		for i, w := range rec.waits {
			if w != override {
				t.Errorf("jitterOff=%v wait[%d] = %v, want %v", jitterOff, i, w, override)
			}
		}
	}
}

func TestDo_OverrideKeepsAttemptIndex(t *testing.T) {
	rec := &recorder{}
	calls := 0

	_ = Do(context.Background(), Policy{
		Attempts:      3,
		Delay:         10 * time.Millisecond,
		DisableJitter: true,
		Sleep:         rec.sleep,
		RetryAfter: func(err error) (time.Duration, bool) {
			var ra *retryAfterErr
			if errors.As(err, &ra) {
				return ra.wait, true
			}
			return 0, false
		},
	}, func(context.Context) error {
		calls++
		if calls == 1 {
			return &retryAfterErr{wait: time.Second}
		}
		return errors.New("plain")
	})

	want := []time.Duration{time.Second, 20 * time.Millisecond}
	if len(rec.waits) != 2 || rec.waits[0] != want[0] || rec.waits[1] != want[1] {
		t.Errorf("waits = %v, want %v", rec.waits, want)
	}
}

func TestDo_OnRetryHook(t *testing.T) {
	rec := &recorder{}
	orig := errors.New("fail")

	type call struct {
		attempt int
		wait    time.Duration
		err     error
	}
	var calls []call

	_ = Do(context.Background(), Policy{
		Attempts:      3,
		Delay:         5 * time.Millisecond,
		DisableJitter: true,
		Sleep:         rec.sleep,
		OnRetry: func(attempt int, wait time.Duration, err error) {
			calls = append(calls, call{attempt, wait, err})
		},
	}, func(context.Context) error {
		return orig
	})

	if len(calls) != 2 {
		t.Fatalf("OnRetry calls = %d, want 2", len(calls))
	}
	if calls[0].attempt != 2 || calls[1].attempt != 3 {
		t.Errorf("attempts = %d,%d, want 2,3", calls[0].attempt, calls[1].attempt)
	}
	if calls[0].wait != 5*time.Millisecond || calls[1].wait != 10*time.Millisecond {
		t.Errorf("waits = %v,%v, want 5ms,10ms", calls[0].wait, calls[1].wait)
	}
	if calls[0].err != orig {
		t.Errorf("hook err = %v, want original", calls[0].err)
	}
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := Do(ctx, Policy{Attempts: 5, Delay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("fail")
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoValue(t *testing.T) {
	rec := &recorder{}
	calls := 0

	v, err := DoValue(context.Background(), Policy{Attempts: 3, Delay: time.Millisecond, Sleep: rec.sleep},
		func(context.Context) (string, error) {
			calls++
			if calls < 2 {
				return "", errors.New("not yet")
			}
			return "ok", nil
		})

	if err != nil {
		t.Fatalf("DoValue error: %v", err)
	}
	if v != "ok" {
		t.Errorf("value = %q, want %q", v, "ok")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDo_RealSleep(t *testing.T) {
	start := time.Now()
	calls := 0

	_ = Do(context.Background(), Policy{Attempts: 2, Delay: 20 * time.Millisecond, DisableJitter: true},
		func(context.Context) error {
			calls++
			return errors.New("fail")
		})

	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 20ms", elapsed)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}
