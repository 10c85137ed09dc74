// Package retry holds the backoff and operation-polling loops shared by the
// provider adapters.
package retry

import (
	"context"
	"errors"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

// DefaultBackoff is the wait before each retry of a transient failure.
var DefaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Policy configures Do.
type Policy struct {
	Backoff []time.Duration
	Sleep   Sleeper
	Logger  *infra.Logger
	// Name labels log lines, usually the provider key.
	Name string
}

// Do runs fn once and retries it after each Backoff wait while it fails with
// a *domain.ProviderTransientError. Any other error ends the loop at once.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	backoff := p.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	logger := p.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	var zero T
	for attempt := 0; ; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !domain.IsTransient(err) || attempt >= len(backoff) {
			return zero, err
		}
		wait := backoff[attempt]
		logger.Warn().
			Err(err).
			Str("provider", p.Name).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("retry: transient provider failure")
		if serr := sleep(ctx, wait); serr != nil {
			return zero, errors.Join(err, serr)
		}
	}
}

// State is the outcome of one operation status check.
type State int

const (
	// Pending means the operation has not finished yet.
	Pending State = iota
	// Done means the operation finished and the result is usable.
	Done
)

// PollOptions configures Poll.
type PollOptions struct {
	Attempts int
	Interval time.Duration
	Sleep    Sleeper
	// Source names the operation in a *domain.TimeoutError.
	Source string
	Now    func() time.Time
}

// Poll calls check up to Attempts times, waiting Interval between calls. It
// returns the first Done result, the first error from check (content
// rejections and vendor failures end the loop), or *domain.TimeoutError once
// the attempts run out.
func Poll[T any](ctx context.Context, opts PollOptions, check func(ctx context.Context) (T, State, error)) (T, error) {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var zero T
	start := now()
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		out, state, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if state == Done {
			return out, nil
		}
		if attempt < opts.Attempts {
			if err := sleep(ctx, opts.Interval); err != nil {
				return zero, err
			}
		}
	}
	return zero, &domain.TimeoutError{Source: opts.Source, Attempts: opts.Attempts, Elapsed: now().Sub(start)}
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
