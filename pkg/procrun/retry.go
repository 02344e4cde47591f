package procrun

import (
	"context"
	"errors"
	"syscall"
	"time"
)

// RetryPolicy retries an operation whose failure class is expected to be
// retry-safe. Backoff doubles after every attempt.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// Retryable classifies an error. Anything it rejects is surfaced
	// immediately.
	Retryable func(error) bool

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries transient OS-level failures up to 3 times with
// 2s, 4s, 8s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: 2 * time.Second,
		Retryable:      IsTransient,
	}
}

// Do runs f, retrying per the policy. The last error is returned when
// retries exhaust.
func (p RetryPolicy) Do(ctx context.Context, f func() error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	backoff := p.InitialBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = f()
		if err == nil {
			return nil
		}
		if attempt >= p.MaxRetries || p.Retryable == nil || !p.Retryable(err) {
			return err
		}
		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether an error is an OS-level failure worth
// retrying. Timeouts, missing executables, and tool-reported failures are
// not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ECONNABORTED,
		syscall.EAGAIN,
		syscall.EINTR,
		syscall.EMFILE,
		syscall.ENFILE,
		syscall.ETXTBSY,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
