package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// maxTxRetries bounds optimistic transaction retries in Update
const maxTxRetries = 20

// RedisStore shares jobs between API instances through redis.
// Each job is one JSON value; per-owner sorted sets index them by creation time.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a store on rdb; keys are namespaced by prefix
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "bh"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// OpenRedisStore connects to a redis:// URL and checks the connection
func OpenRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStore(rdb, prefix), nil
}

// Close closes the redis client
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) jobKey(id string) string { return s.prefix + ":job:" + id }
func (s *RedisStore) ownerKey(owner string) string { return s.prefix + ":owner:" + owner }
func (s *RedisStore) allKey() string { return s.prefix + ":jobs" }

func createdScore(job *model.Job) float64 {
	return float64(job.CreatedAt.UnixNano())
}

// Create stores the job if its id is free
func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.jobKey(job.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrExists, job.ID)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		member := redis.Z{Score: createdScore(job), Member: job.ID}
		pipe.ZAdd(ctx, s.ownerKey(job.OwnerID), member)
		pipe.ZAdd(ctx, s.allKey(), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("index job: %w", err)
	}
	return nil
}

// Get loads one job
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.load(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*model.Job, error) {
	data, err := c.Get(ctx, s.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Update runs fn inside WATCH/MULTI and retries when another writer won the race
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*model.Job) error) (*model.Job, error) {
	key := s.jobKey(id)
	var updated *model.Job

	txf := func(tx *redis.Tx) error {
		job, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			updated = job
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update job %s: too much contention", id)
}

// ListByOwner returns the owner's jobs, oldest first
func (s *RedisStore) ListByOwner(ctx context.Context, owner string) ([]*model.Job, error) {
	return s.listIndex(ctx, s.ownerKey(owner))
}

// ListAll returns every job, oldest first
func (s *RedisStore) ListAll(ctx context.Context) ([]*model.Job, error) {
	return s.listIndex(ctx, s.allKey())
}

func (s *RedisStore) listIndex(ctx context.Context, index string) ([]*model.Job, error) {
	ids, err := s.rdb.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	out := make([]*model.Job, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET
			continue
		}
		var job model.Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", ids[i], err)
		}
		out = append(out, &job)
	}
	sortByCreated(out)
	return out, nil
}

// Delete removes the job and its index entries
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.jobKey(id))
		pipe.ZRem(ctx, s.ownerKey(job.OwnerID), id)
		pipe.ZRem(ctx, s.allKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}
