package jobs

import (
	"context"
	"sync"
	"time"

	"faceswap/internal/domain"
)

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	TTL          time.Duration
	TombstoneTTL time.Duration
	Now          func() time.Time
}

// MemoryStore keeps jobs in process memory. Jobs submitted to one process are
// only visible to that process.
type MemoryStore struct {
	mu           sync.RWMutex
	jobs         map[string]*domain.Job
	tombstones   map[string]time.Time
	ttl          time.Duration
	tombstoneTTL time.Duration
	now          func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore(opts MemoryStoreOptions) *MemoryStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.TombstoneTTL < 0 {
		opts.TombstoneTTL = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &MemoryStore{
		jobs:         make(map[string]*domain.Job),
		tombstones:   make(map[string]time.Time),
		ttl:          opts.TTL,
		tombstoneTTL: opts.TombstoneTTL,
		now:          opts.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.NewValidationError("job", "id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[job.ID]
	if ok && s.expired(current, s.now()) {
		s.bury(job.ID, current)
		current, ok = nil, false
	}
	if ok && current.Status.Terminal() {
		return domain.ErrJobFinalized
	}
	if !ok && job.Status.Terminal() {
		if _, buried := s.tombstones[job.ID]; buried {
			return domain.ErrJobExpired
		}
		return domain.ErrNotFound
	}
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Job, error) {
	now := s.now()
	s.mu.RLock()
	job, ok := s.jobs[id]
	until, buried := s.tombstones[id]
	s.mu.RUnlock()

	if ok {
		if !s.expired(job, now) {
			return job.Clone(), nil
		}
		until, buried = job.CreatedAt.Add(s.ttl+s.tombstoneTTL), s.tombstoneTTL > 0
	}
	if buried && now.Before(until) {
		return nil, domain.ErrJobExpired
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	delete(s.tombstones, id)
	return nil
}

// Sweep purges every job whose TTL elapsed at now, whatever its status, and
// drops tombstones that outlived their own TTL.
func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, job := range s.jobs {
		if s.expired(job, now) {
			s.bury(id, job)
			purged++
		}
	}
	for id, until := range s.tombstones {
		if !now.Before(until) {
			delete(s.tombstones, id)
		}
	}
	return purged, nil
}

// Len reports the number of live records, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *MemoryStore) expired(job *domain.Job, now time.Time) bool {
	return !now.Before(job.CreatedAt.Add(s.ttl))
}

// bury must be called with the write lock held.
func (s *MemoryStore) bury(id string, job *domain.Job) {
	delete(s.jobs, id)
	if s.tombstoneTTL > 0 {
		s.tombstones[id] = job.CreatedAt.Add(s.ttl + s.tombstoneTTL)
	}
}

var _ Store = (*MemoryStore)(nil)
