package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"faceswap/internal/domain"
)

type scriptedFetcher struct {
	responses []fetchResponse
	calls     int
}

type fetchResponse struct {
	job *domain.Job
	err error
}

func (f *scriptedFetcher) JobStatus(context.Context, string) (*domain.Job, error) {
	f.calls++
	if len(f.responses) == 0 {
		return &domain.Job{Status: domain.JobStatusProcessing}, nil
	}
	next := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return next.job, next.err
}

func newTestPoller(fetcher StatusFetcher) (*Poller, *fakeClock, *int) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	sleeps := 0
	p := NewPoller(fetcher, nil)
	p.now = clock.Now
	p.sleep = func(_ context.Context, d time.Duration) error {
		sleeps++
		clock.Advance(d)
		return nil
	}
	return p, clock, &sleeps
}

func TestWaitForBoundsStatusChecks(t *testing.T) {
	tests := []struct {
		name     string
		maxWait  time.Duration
		interval time.Duration
		want     int
	}{
		{name: "exact", maxWait: 10 * time.Second, interval: 2 * time.Second, want: 5},
		{name: "floor", maxWait: 9 * time.Second, interval: 2 * time.Second, want: 4},
		{name: "shorter than interval", maxWait: time.Second, interval: 2 * time.Second, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &scriptedFetcher{}
			p, _, _ := newTestPoller(fetcher)

			_, err := p.WaitFor(context.Background(), "job-1", tt.maxWait, tt.interval)
			var timeout *domain.TimeoutError
			if !errors.As(err, &timeout) {
				t.Fatalf("err = %v, want TimeoutError", err)
			}
			if fetcher.calls != tt.want {
				t.Fatalf("status checks = %d, want %d", fetcher.calls, tt.want)
			}
			if timeout.Attempts != tt.want {
				t.Fatalf("attempts = %d, want %d", timeout.Attempts, tt.want)
			}
		})
	}
}

func TestWaitForTimeoutReportsElapsed(t *testing.T) {
	p, _, sleeps := newTestPoller(&scriptedFetcher{})
	_, err := p.WaitFor(context.Background(), "job-1", 3*time.Second, time.Second)
	var timeout *domain.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if *sleeps != 2 {
		t.Fatalf("sleeps = %d, want 2", *sleeps)
	}
	if timeout.Elapsed != 2*time.Second {
		t.Fatalf("elapsed = %v, want 2s", timeout.Elapsed)
	}
}

func TestWaitForResolvesCompleted(t *testing.T) {
	art := &domain.Artifact{Base64: "AA==", MimeType: "image/png"}
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{job: &domain.Job{Status: domain.JobStatusProcessing}},
		{job: &domain.Job{Status: domain.JobStatusCompleted, Result: art}},
	}}
	p, _, _ := newTestPoller(fetcher)

	job, err := p.WaitFor(context.Background(), "job-1", time.Minute, time.Second)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Result != art {
		t.Fatalf("result = %+v", job.Result)
	}
	if fetcher.calls != 2 {
		t.Fatalf("calls = %d, want 2", fetcher.calls)
	}
}

func TestWaitForRejectsFailedWithReason(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{job: &domain.Job{Status: domain.JobStatusFailed, Error: "content rejected", ErrorCode: domain.CodeContentRejected, Reasons: []string{"minor"}}},
	}}
	p, _, _ := newTestPoller(fetcher)

	_, err := p.WaitFor(context.Background(), "job-1", time.Minute, time.Second)
	var failed *domain.JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("err = %v, want JobFailedError", err)
	}
	if failed.Message != "content rejected" || failed.Code != domain.CodeContentRejected || len(failed.Reasons) != 1 {
		t.Fatalf("unexpected failure: %+v", failed)
	}
}

func TestWaitForDoesNotRetryNotFound(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{{err: domain.ErrJobExpired}}}
	p, _, sleeps := newTestPoller(fetcher)

	_, err := p.WaitFor(context.Background(), "job-1", time.Minute, time.Second)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if fetcher.calls != 1 || *sleeps != 0 {
		t.Fatalf("calls = %d sleeps = %d, want a single check", fetcher.calls, *sleeps)
	}
}

func TestWaitForKeepsPollingThroughFetchErrors(t *testing.T) {
	fetcher := &scriptedFetcher{responses: []fetchResponse{
		{err: errors.New("connection reset")},
		{job: &domain.Job{Status: domain.JobStatusCompleted, Result: &domain.Artifact{Base64: "AA=="}}},
	}}
	p, _, _ := newTestPoller(fetcher)

	if _, err := p.WaitFor(context.Background(), "job-1", time.Minute, time.Second); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("calls = %d, want 2", fetcher.calls)
	}
}

func TestWaitForAgainstRunner(t *testing.T) {
	runner, _ := newTestRunner(t)
	id, err := runner.Submit(context.Background(), Spec{Kind: domain.JobKindImage}, func(context.Context) (*Outcome, error) {
		time.Sleep(10 * time.Millisecond)
		return &Outcome{Artifact: &domain.Artifact{Base64: "AA==", MimeType: "image/png"}, Method: "qwen"}, nil
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	job, err := NewPoller(runner, nil).WaitFor(context.Background(), id, 2*time.Second, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != domain.JobStatusCompleted || job.Method != "qwen" {
		t.Fatalf("unexpected job: %+v", job)
	}
}
