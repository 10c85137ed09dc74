package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

// StatusFetcher reads a job by id. It returns an error wrapping
// domain.ErrNotFound for unknown or expired jobs.
type StatusFetcher interface {
	JobStatus(ctx context.Context, id string) (*domain.Job, error)
}

// Poller waits for jobs to reach a terminal state by polling a StatusFetcher.
type Poller struct {
	fetcher StatusFetcher
	logger  *infra.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPoller builds a poller over fetcher.
func NewPoller(fetcher StatusFetcher, logger *infra.Logger) *Poller {
	if logger == nil {
		logger = infra.NopLogger()
	}
	return &Poller{fetcher: fetcher, logger: logger, now: time.Now, sleep: sleepCtx}
}

// WaitFor polls jobID every interval, making at most floor(maxWait/interval)
// status checks. A completed job is returned; a failed job yields
// *domain.JobFailedError; an unknown job yields domain.ErrNotFound at once;
// running out of checks yields *domain.TimeoutError.
func (p *Poller) WaitFor(ctx context.Context, jobID string, maxWait, interval time.Duration) (*domain.Job, error) {
	if interval <= 0 {
		return nil, domain.NewValidationError("interval", "must be positive")
	}
	attempts := int(maxWait / interval)
	start := p.now()

	for attempt := 1; attempt <= attempts; attempt++ {
		job, err := p.fetcher.JobStatus(ctx, jobID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("job %s: %w", jobID, err)
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("poller: status check failed")
		case job.Status == domain.JobStatusCompleted:
			return job, nil
		case job.Status == domain.JobStatusFailed:
			return nil, &domain.JobFailedError{
				JobID:   jobID,
				Code:    job.ErrorCode,
				Message: job.Error,
				Reasons: job.Reasons,
			}
		}

		if attempt < attempts {
			if err := p.sleep(ctx, interval); err != nil {
				return nil, err
			}
		}
	}

	return nil, &domain.TimeoutError{
		Source:   "job " + jobID,
		Attempts: attempts,
		Elapsed:  p.now().Sub(start),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
