package poll

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errReset = syscall.ECONNRESET

// fakeSleep records requested delays and returns immediately.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) sleep(ctx context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return ctx.Err()
}

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	fs := &fakeSleep{}
	calls := 0

	got, err := Retry(context.Background(), RetryConfig{Sleep: fs.sleep}, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fs.delays)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	fs := &fakeSleep{}
	calls := 0

	got, err := Retry(context.Background(), RetryConfig{Delay: 100 * time.Millisecond, Sleep: fs.sleep},
		func(context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, errReset
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	// Linear backoff: delay*1, delay*2.
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, fs.delays)
}

func TestRetry_NonTransientPropagatesImmediately(t *testing.T) {
	fs := &fakeSleep{}
	calls := 0
	appErr := errors.New("quota exceeded")

	_, err := Retry(context.Background(), RetryConfig{Sleep: fs.sleep}, func(context.Context) (int, error) {
		calls++
		return 0, appErr
	})

	require.ErrorIs(t, err, appErr)
	assert.Equal(t, 1, calls)
	assert.Empty(t, fs.delays)
}

func TestRetry_BudgetExhausted(t *testing.T) {
	fs := &fakeSleep{}
	calls := 0

	_, err := Retry(context.Background(), RetryConfig{Attempts: 3, Sleep: fs.sleep},
		func(context.Context) (int, error) {
			calls++
			return 0, errReset
		})

	require.Error(t, err)
	assert.True(t, IsTransient(err), "exhausted retry error should stay transient: %v", err)
	assert.Equal(t, 3, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, RetryConfig{}, func(context.Context) (int, error) {
		calls++
		return 0, errReset
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestWait_DoneOnFirstPoll(t *testing.T) {
	fs := &fakeSleep{}
	polls := 0

	got, err := Wait(context.Background(), Config{Sleep: fs.sleep, Retry: RetryConfig{Sleep: fs.sleep}},
		func(context.Context) (Status[string], error) {
			polls++
			return Status[string]{Done: true, Result: "transcript"}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, "transcript", got)
	assert.Equal(t, 1, polls)
	assert.Empty(t, fs.delays, "no interval sleep after an immediately-done job")
}

func TestWait_ReportsProgressUntilDone(t *testing.T) {
	fs := &fakeSleep{}
	polls := 0
	var progress []int
	var stages []string

	got, err := Wait(context.Background(), Config{
		Sleep: fs.sleep,
		Retry: RetryConfig{Sleep: fs.sleep},
		OnProgress: func(p int, stage string) {
			progress = append(progress, p)
			stages = append(stages, stage)
		},
	}, func(context.Context) (Status[string], error) {
		polls++
		switch polls {
		case 1:
			return Status[string]{Progress: 20, Stage: "detecting language"}, nil
		case 2:
			return Status[string]{Progress: 70, Stage: "transcribing audio"}, nil
		default:
			return Status[string]{Done: true, Result: "done"}, nil
		}
	})

	require.NoError(t, err)
	assert.Equal(t, "done", got)
	assert.Equal(t, []int{20, 70}, progress)
	assert.Equal(t, []string{"detecting language", "transcribing audio"}, stages)
	assert.Len(t, fs.delays, 2)
}

func TestWait_JobFailurePropagates(t *testing.T) {
	fs := &fakeSleep{}
	jobErr := errors.New("transcription failed: unsupported codec")

	_, err := Wait(context.Background(), Config{Sleep: fs.sleep, Retry: RetryConfig{Sleep: fs.sleep}},
		func(context.Context) (Status[string], error) {
			return Status[string]{}, jobErr
		})

	require.ErrorIs(t, err, jobErr)
	assert.NotErrorIs(t, err, ErrConnectivity)
}

func TestWait_SurvivesFlakyNetwork(t *testing.T) {
	fs := &fakeSleep{}
	polls := 0

	got, err := Wait(context.Background(), Config{
		NetworkFailureLimit: 8,
		Sleep:               fs.sleep,
		Retry:               RetryConfig{Attempts: 1, Sleep: fs.sleep},
	}, func(context.Context) (Status[string], error) {
		polls++
		if polls <= 5 {
			return Status[string]{}, errReset
		}
		return Status[string]{Done: true, Result: "recovered"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 6, polls)
}

func TestWait_NetworkFailureCeiling(t *testing.T) {
	fs := &fakeSleep{}
	polls := 0

	_, err := Wait(context.Background(), Config{
		NetworkFailureLimit: 3,
		Sleep:               fs.sleep,
		Retry:               RetryConfig{Attempts: 1, Sleep: fs.sleep},
	}, func(context.Context) (Status[string], error) {
		polls++
		return Status[string]{}, errReset
	})

	require.ErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, 3, polls)
}

func TestWait_FailureCounterResetsOnContact(t *testing.T) {
	fs := &fakeSleep{}
	polls := 0

	// Alternating failure and progress never accumulates consecutive
	// failures, so a limit of 2 still lets the job finish.
	got, err := Wait(context.Background(), Config{
		NetworkFailureLimit: 2,
		Sleep:               fs.sleep,
		Retry:               RetryConfig{Attempts: 1, Sleep: fs.sleep},
	}, func(context.Context) (Status[string], error) {
		polls++
		switch {
		case polls >= 7:
			return Status[string]{Done: true, Result: "ok"}, nil
		case polls%2 == 1:
			return Status[string]{}, errReset
		default:
			return Status[string]{Progress: polls * 10}, nil
		}
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestWait_WallClockTimeout(t *testing.T) {
	fs := &fakeSleep{}

	_, err := Wait(context.Background(), Config{
		MaxElapsed: time.Nanosecond,
		Sleep:      fs.sleep,
		Retry:      RetryConfig{Sleep: fs.sleep},
	}, func(context.Context) (Status[string], error) {
		time.Sleep(time.Microsecond)
		return Status[string]{Progress: 1}, nil
	})

	require.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrConnectivity)
}

func TestWait_CancelledBetweenPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0

	_, err := Wait(ctx, Config{
		Sleep: func(context.Context, time.Duration) error { return nil },
		Retry: RetryConfig{Attempts: 1},
	}, func(context.Context) (Status[string], error) {
		polls++
		cancel()
		return Status[string]{Progress: 10}, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, polls, "loop must stop promptly after cancellation")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset errno", syscall.ECONNRESET, true},
		{"connection refused errno", syscall.ECONNREFUSED, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "api.example.com"}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"cancellation is not transient", context.Canceled, false},
		{"message match reset", errors.New("read tcp 127.0.0.1:9: connection reset by peer"), true},
		{"message match hang up", errors.New("upstream socket hang up"), true},
		{"application rejection", errors.New("invalid session id"), false},
		{"wrapped transient", &wrapErr{inner: syscall.EPIPE}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

type wrapErr struct{ inner error }

func (w *wrapErr) Error() string { return "call failed: " + w.inner.Error() }
func (w *wrapErr) Unwrap() error { return w.inner }
