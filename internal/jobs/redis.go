package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"faceswap/internal/domain"
)

// putScript writes a job while holding the terminal-once rule atomically.
// KEYS: job key, tombstone key. ARGV: payload, status, ttl ms, tombstone ttl ms.
var putScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current then
  if cjson.decode(current)['status'] ~= 'processing' then
    return 'finalized'
  end
  redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
  return 'ok'
end
if ARGV[2] ~= 'processing' then
  if redis.call('EXISTS', KEYS[2]) == 1 then
    return 'expired'
  end
  return 'missing'
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
if tonumber(ARGV[4]) > 0 then
  redis.call('SET', KEYS[2], '1', 'PX', ARGV[4])
end
return 'ok'
`)

// RedisStoreOptions configures a RedisStore.
type RedisStoreOptions struct {
	Prefix       string
	TTL          time.Duration
	TombstoneTTL time.Duration
	Now          func() time.Time
}

// RedisStore shares job records between API instances. Expiry is enforced by
// Redis key TTLs, so Sweep has nothing to do.
type RedisStore struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	tombstoneTTL time.Duration
	now          func() time.Time
}

// NewRedisStore wraps client.
func NewRedisStore(client redis.UniversalClient, opts RedisStoreOptions) *RedisStore {
	if opts.Prefix == "" {
		opts.Prefix = "faceswap:job:"
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.TombstoneTTL < 0 {
		opts.TombstoneTTL = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &RedisStore{
		client:       client,
		prefix:       opts.Prefix,
		ttl:          opts.TTL,
		tombstoneTTL: opts.TombstoneTTL,
		now:          opts.Now,
	}
}

func (s *RedisStore) Put(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return domain.NewValidationError("job", "id is required")
	}
	remaining := job.CreatedAt.Add(s.ttl).Sub(s.now())
	if remaining <= 0 {
		return domain.ErrJobExpired
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("jobs: encode job: %w", err)
	}
	tombstone := int64(0)
	if s.tombstoneTTL > 0 {
		tombstone = (remaining + s.tombstoneTTL).Milliseconds()
	}
	res, err := putScript.Run(ctx, s.client,
		[]string{s.key(job.ID), s.tombstoneKey(job.ID)},
		payload, string(job.Status), remaining.Milliseconds(), tombstone,
	).Text()
	if err != nil {
		return fmt.Errorf("jobs: redis put: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "finalized":
		return domain.ErrJobFinalized
	case "expired":
		return domain.ErrJobExpired
	default:
		return domain.ErrNotFound
	}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		n, existsErr := s.client.Exists(ctx, s.tombstoneKey(id)).Result()
		if existsErr != nil {
			return nil, fmt.Errorf("jobs: redis tombstone: %w", existsErr)
		}
		if n > 0 {
			return nil, domain.ErrJobExpired
		}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: redis get: %w", err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("jobs: decode job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id), s.tombstoneKey(id)).Err(); err != nil {
		return fmt.Errorf("jobs: redis delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) tombstoneKey(id string) string { return s.prefix + id + ":expired" }

var _ Store = (*RedisStore)(nil)
