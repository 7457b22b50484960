// Package poll provides the bounded retry-with-delay primitive used by
// every wait point in visawatch: element appearance, CAPTCHA readiness,
// navigation settling. The target portal gives no contractual timing for
// redirects or renders, so every wait is attempt-count based and converts
// unknown external latency into a deterministic timeout.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrTimeout is returned when the condition does not hold within the
// attempt budget.
var ErrTimeout = errors.New("condition not met within attempt budget")

// Until invokes fn up to attempts times, delay apart, until fn reports
// success. fn errors are treated as "not yet" and retried; only the
// attempt budget or context cancellation end the poll early.
func Until(ctx context.Context, attempts uint, delay time.Duration, fn func() (bool, error)) error {
	_, err := UntilValue(ctx, attempts, delay, func() (struct{}, bool, error) {
		ok, err := fn()
		return struct{}{}, ok, err
	})
	return err
}

// UntilValue polls fn up to attempts times, delay apart, and returns the
// produced value once fn reports success. It returns ErrTimeout when the
// budget is exhausted and the context error when cancelled mid-wait.
func UntilValue[T any](ctx context.Context, attempts uint, delay time.Duration, fn func() (T, bool, error)) (T, error) {
	v, err := retry.DoWithData(
		func() (T, error) {
			v, ok, err := fn()
			if err != nil {
				// Inspection failures mid-transition are expected;
				// surface them as "not yet determined" and retry.
				var zero T
				return zero, err
			}
			if !ok {
				var zero T
				return zero, ErrTimeout
			}
			return v, nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !errors.Is(err, ErrTimeout) {
			return zero, errors.Join(ErrTimeout, err)
		}
		return zero, err
	}
	return v, nil
}
