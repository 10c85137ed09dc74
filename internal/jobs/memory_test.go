package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"faceswap/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(tombstone time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(MemoryStoreOptions{TTL: time.Hour, TombstoneTTL: tombstone, Now: clock.Now})
	return store, clock
}

func processingJob(id string, created time.Time) *domain.Job {
	return &domain.Job{ID: id, Kind: domain.JobKindImage, Status: domain.JobStatusProcessing, CreatedAt: created}
}

func TestMemoryStoreSingleTerminalWrite(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(0)
	job := processingJob("job-1", clock.Now())
	if err := store.Put(ctx, job); err != nil {
		t.Fatalf("put processing: %v", err)
	}

	done := job.Complete(clock.Now(), &domain.Artifact{Base64: "AA==", MimeType: "image/png"}, "qwen")
	if err := store.Put(ctx, done); err != nil {
		t.Fatalf("put completed: %v", err)
	}

	if err := store.Put(ctx, job.Fail(clock.Now(), errors.New("late"))); !errors.Is(err, domain.ErrJobFinalized) {
		t.Fatalf("second terminal write err = %v, want ErrJobFinalized", err)
	}
	if err := store.Put(ctx, job); !errors.Is(err, domain.ErrJobFinalized) {
		t.Fatalf("back to processing err = %v, want ErrJobFinalized", err)
	}

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, "job-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != domain.JobStatusCompleted || got.Method != "qwen" {
			t.Fatalf("read %d = %+v, want stable completed record", i, got)
		}
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(0)
	_ = store.Put(ctx, processingJob("job-1", clock.Now()))

	got, _ := store.Get(ctx, "job-1")
	got.Status = domain.JobStatusFailed

	again, _ := store.Get(ctx, "job-1")
	if again.Status != domain.JobStatusProcessing {
		t.Fatalf("store mutated through returned job: %s", again.Status)
	}
}

func TestMemoryStoreTTLPurgesRegardlessOfStatus(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(0)
	created := clock.Now()
	running := processingJob("running", created)
	finished := processingJob("finished", created)
	_ = store.Put(ctx, running)
	_ = store.Put(ctx, finished)
	_ = store.Put(ctx, finished.Complete(created, &domain.Artifact{Base64: "AA=="}, "gemini"))

	clock.Advance(59 * time.Minute)
	if _, err := store.Get(ctx, "running"); err != nil {
		t.Fatalf("job should still be readable before ttl: %v", err)
	}

	clock.Advance(time.Minute)
	for _, id := range []string{"running", "finished"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("get %s after ttl err = %v, want ErrNotFound", id, err)
		}
	}

	purged, err := store.Sweep(ctx, clock.Now())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if purged != 2 || store.Len() != 0 {
		t.Fatalf("purged = %d, remaining = %d", purged, store.Len())
	}
}

func TestMemoryStoreUnknownAndExpiredAreNotFound(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(24 * time.Hour)
	_ = store.Put(ctx, processingJob("job-1", clock.Now()))

	if _, err := store.Get(ctx, "never-issued"); !errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrJobExpired) {
		t.Fatalf("unknown id err = %v, want plain ErrNotFound", err)
	}

	clock.Advance(2 * time.Hour)
	if _, err := store.Sweep(ctx, clock.Now()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	_, err := store.Get(ctx, "job-1")
	if !errors.Is(err, domain.ErrJobExpired) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired id err = %v, want ErrJobExpired wrapping ErrNotFound", err)
	}

	clock.Advance(24 * time.Hour)
	_, _ = store.Sweep(ctx, clock.Now())
	if _, err := store.Get(ctx, "job-1"); errors.Is(err, domain.ErrJobExpired) {
		t.Fatalf("tombstone should be gone, got %v", err)
	}
}

func TestMemoryStoreTerminalWriteAfterExpiryDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestStore(0)
	job := processingJob("job-1", clock.Now())
	_ = store.Put(ctx, job)

	clock.Advance(time.Hour + time.Second)
	err := store.Put(ctx, job.Complete(clock.Now(), &domain.Artifact{Base64: "AA=="}, "qwen"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("late terminal write err = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("job resurrected: %v", err)
	}
}

func TestNewJobIDIsUniqueAndSortable(t *testing.T) {
	seen := make(map[string]struct{})
	prev := ""
	for i := 0; i < 100; i++ {
		id := NewJobID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = struct{}{}
		if len(id) != 26 {
			t.Fatalf("id %q length = %d, want 26", id, len(id))
		}
		if prev != "" && id < prev {
			t.Fatalf("ids not monotonic: %s after %s", id, prev)
		}
		prev = id
	}
}
