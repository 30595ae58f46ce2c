// Package poll implements the retry and long-poll machinery used to track
// asynchronous collaborator jobs across network interruptions. The sleep
// function is injectable so the loops run as plain synchronous state machines
// under test.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout means the long-poll loop exceeded its wall-clock bound.
	// The job may still be running; the caller can try again later.
	ErrTimeout = errors.New("job polling timed out")

	// ErrConnectivity means the status endpoint stayed unreachable past the
	// consecutive-failure ceiling. Distinct from the job itself failing.
	ErrConnectivity = errors.New("status endpoint unreachable")
)

const (
	DefaultAttempts            = 3
	DefaultRetryDelay          = 1 * time.Second
	DefaultInterval            = 2500 * time.Millisecond
	DefaultMaxElapsed          = 45 * time.Minute
	DefaultNetworkFailureLimit = 8
)

// SleepFunc waits for d or until ctx is done, whichever comes first.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryConfig controls a single retried call.
type RetryConfig struct {
	Attempts int           // total attempts, default 3
	Delay    time.Duration // backoff unit; attempt n waits Delay*n
	Sleep    SleepFunc
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Delay <= 0 {
		c.Delay = DefaultRetryDelay
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

// Retry runs op until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. Only transient, network-classified errors are
// retried; application-level rejections propagate immediately.
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt < cfg.Attempts {
			if err := cfg.Sleep(ctx, cfg.Delay*time.Duration(attempt)); err != nil {
				return zero, err
			}
		}
	}
	return zero, fmt.Errorf("retries exhausted after %d attempts: %w", cfg.Attempts, lastErr)
}

// Status is one observation of an asynchronous job.
type Status[T any] struct {
	Done     bool
	Progress int    // 0..100, meaningful while !Done
	Stage    string // human-readable stage label
	Result   T      // set when Done
}

// Config controls the long-poll loop.
type Config struct {
	Interval            time.Duration // delay between polls, default 2.5s
	MaxElapsed          time.Duration // wall-clock bound, default 45m
	NetworkFailureLimit int           // consecutive unreachable polls tolerated, default 8
	Retry               RetryConfig   // per-poll retry budget
	Sleep               SleepFunc
	OnProgress          func(progress int, stage string)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxElapsed <= 0 {
		c.MaxElapsed = DefaultMaxElapsed
	}
	if c.NetworkFailureLimit <= 0 {
		c.NetworkFailureLimit = DefaultNetworkFailureLimit
	}
	if c.Sleep == nil {
		c.Sleep = sleep
	}
	return c
}

// Wait repeatedly polls a job status endpoint until the job finishes, fails,
// times out, or the endpoint stays unreachable. A poll that raises a transient
// error (after Retry's own budget) counts against the network-failure ceiling
// instead of failing the job: "the job failed" and "we cannot reach the status
// endpoint" are different outcomes. Done on the first poll returns without
// sleeping an interval.
func Wait[T any](ctx context.Context, cfg Config, pollFn func(context.Context) (Status[T], error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	start := time.Now()
	netFailures := 0

	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		status, err := Retry(ctx, cfg.Retry, pollFn)
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		switch {
		case err == nil:
			netFailures = 0
			if status.Done {
				return status.Result, nil
			}
			if cfg.OnProgress != nil {
				cfg.OnProgress(status.Progress, status.Stage)
			}
		case IsTransient(err):
			netFailures++
			if netFailures >= cfg.NetworkFailureLimit {
				return zero, fmt.Errorf("%w: %d consecutive poll failures: %v",
					ErrConnectivity, netFailures, err)
			}
		default:
			return zero, err
		}

		if time.Since(start) > cfg.MaxElapsed {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, cfg.MaxElapsed)
		}
		if err := cfg.Sleep(ctx, cfg.Interval); err != nil {
			return zero, err
		}
	}
}
