// Package retry re-runs fallible operations with a linear backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	retrygo "github.com/avast/retry-go/v4"

	"github.com/MrSnakeDoc/esched/internal/logger"
	"github.com/MrSnakeDoc/esched/internal/metrics"
)

// ErrMaxRetries matches every *MaxRetriesError with errors.Is.
var ErrMaxRetries = errors.New("max retries exceeded")

// Policy bounds an operation's attempts.
//
// Delay is waited before the second attempt and grows by Step before each
// later one. No delay follows the last attempt.
type Policy struct {
	Name     string        // operation name for logs and metrics
	Attempts int           // total attempts, at least 1
	Delay    time.Duration // first delay
	Step     time.Duration // linear increment
}

// MaxRetriesError carries every error recorded before giving up.
type MaxRetriesError struct {
	Name     string
	Attempts int
	Errors   []error
}

func (e *MaxRetriesError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%s has been retried %d times\n\n%s", e.Name, e.Attempts, strings.Join(msgs, "\n"))
}

// Unwrap exposes the recorded errors to errors.Is and errors.As.
func (e *MaxRetriesError) Unwrap() []error { return e.Errors }

// Is reports a match against ErrMaxRetries.
func (e *MaxRetriesError) Is(target error) bool { return target == ErrMaxRetries }

// Retrier runs operations under a Policy.
type Retrier struct {
	logger logger.Logger
	timer  retrygo.Timer
}

// New returns a Retrier that logs through log.
func New(log logger.Logger) *Retrier {
	return &Retrier{
		logger: log,
		timer:  wallTimer{},
	}
}

// Do calls op until it succeeds or p.Attempts is exhausted. Every error is
// retried, whatever its kind. On success the recorded errors are dropped.
func Do[T any](ctx context.Context, r *Retrier, p Policy, op func(context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	errs := make([]error, 0, attempts)
	attempt := 0

	v, err := retrygo.DoWithData(
		func() (T, error) {
			attempt++
			r.logger.Debug("calling operation",
				logger.String("operation", p.Name),
				logger.Int("attempt", attempt))

			v, err := op(ctx)
			if err != nil {
				metrics.RetryAttemptsTotal.WithLabelValues(p.Name, "failure").Inc()
				errs = append(errs, err)
				r.logger.Warn("operation failed",
					logger.String("operation", p.Name),
					logger.Int("attempt", attempt),
					logger.Int("max_attempts", attempts),
					logger.Error(err))
				return v, err
			}

			metrics.RetryAttemptsTotal.WithLabelValues(p.Name, "success").Inc()
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					logger.String("operation", p.Name),
					logger.Int("attempt", attempt))
			}
			return v, nil
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(attempts)),
		retrygo.DelayType(linearDelay(p)),
		retrygo.RetryIf(func(error) bool { return true }),
		retrygo.WithTimer(r.timer),
	)
	if err == nil {
		return v, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return v, fmt.Errorf("%s aborted after %d attempts: %w", p.Name, attempt, errors.Join(append(errs, ctxErr)...))
	}

	metrics.RetryExhaustedTotal.WithLabelValues(p.Name).Inc()
	return v, &MaxRetriesError{
		Name:     p.Name,
		Attempts: attempts,
		Errors:   errs,
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, r *Retrier, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, r, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// linearDelay yields p.Delay, p.Delay+p.Step, p.Delay+2*p.Step and so on, one
// value per wait.
func linearDelay(p Policy) retrygo.DelayTypeFunc {
	waits := 0
	return func(uint, error, *retrygo.Config) time.Duration {
		d := p.Delay + time.Duration(waits)*p.Step
		waits++
		return d
	}
}

type wallTimer struct{}

func (wallTimer) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
