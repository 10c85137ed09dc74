package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/alitto/pond/v2"

	"faceswap/internal/domain"
	"faceswap/internal/infra"
)

// Outcome is what a successful task produces.
type Outcome struct {
	Artifact *domain.Artifact
	Method   string
}

// Task is the long-running work behind a job. It receives a context detached
// from the submitting request and bounded by the runner timeout.
type Task func(ctx context.Context) (*Outcome, error)

// Spec describes the job being submitted.
type Spec struct {
	Kind     domain.JobKind
	UserID   string
	Provider string
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Workers int
	Timeout time.Duration
	Logger  *infra.Logger
	Now     func() time.Time
	NewID   func() string
}

// Runner registers jobs and executes their tasks on a bounded pool.
type Runner struct {
	store   Store
	pool    pond.Pool
	timeout time.Duration
	logger  *infra.Logger
	now     func() time.Time
	newID   func() string
}

// NewRunner builds a runner writing into store.
func NewRunner(store Store, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewJobID
	}
	return &Runner{
		store:   store,
		pool:    pond.NewPool(opts.Workers),
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
		newID:   opts.NewID,
	}
}

// Submit records a processing job and schedules task without waiting for it.
func (r *Runner) Submit(ctx context.Context, spec Spec, task Task) (string, error) {
	job := &domain.Job{
		ID:        r.newID(),
		Kind:      spec.Kind,
		UserID:    spec.UserID,
		Provider:  spec.Provider,
		Status:    domain.JobStatusProcessing,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("runner: register job: %w", err)
	}
	r.pool.Submit(func() { r.run(job, task) })
	r.logger.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("provider", job.Provider).
		Msg("runner: job submitted")
	return job.ID, nil
}

// Status returns the current record for id.
func (r *Runner) Status(ctx context.Context, id string) (*domain.Job, error) {
	return r.store.Get(ctx, id)
}

// JobStatus lets the runner serve a Poller in-process.
func (r *Runner) JobStatus(ctx context.Context, id string) (*domain.Job, error) {
	return r.Status(ctx, id)
}

// Close waits for running and queued tasks to finish.
func (r *Runner) Close() {
	r.pool.StopAndWait()
}

func (r *Runner) run(job *domain.Job, task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	start := r.now()
	outcome, err := r.execute(ctx, task)
	if err == nil && (outcome == nil || outcome.Artifact == nil) {
		err = fmt.Errorf("%w: task returned no artifact", domain.ErrProviderFailure)
	}

	var next *domain.Job
	if err != nil {
		next = job.Fail(r.now().UTC(), err)
	} else {
		next = job.Complete(r.now().UTC(), outcome.Artifact, outcome.Method)
	}

	writeCtx, writeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer writeCancel()
	if perr := r.store.Put(writeCtx, next); perr != nil {
		r.logger.Error().Err(perr).Str("job_id", job.ID).Str("status", string(next.Status)).Msg("runner: terminal write failed")
		return
	}

	event := r.logger.Info()
	if err != nil {
		event = r.logger.Warn().Err(err).Str("code", next.ErrorCode)
	}
	event.
		Str("job_id", job.ID).
		Str("status", string(next.Status)).
		Str("method", next.Method).
		Dur("took", r.now().Sub(start)).
		Msg("runner: job finished")
}

func (r *Runner) execute(ctx context.Context, task Task) (outcome *Outcome, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Bytes("stack", debug.Stack()).Msg("runner: task panicked")
			outcome, err = nil, fmt.Errorf("task panicked: %v", rec)
		}
	}()
	return task(ctx)
}
