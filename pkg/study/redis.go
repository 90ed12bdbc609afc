package study

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// RedisStore shares the result cache across machines. Entries are
// written with SETNX and no expiry, matching the immutable write-once
// contract of Store.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "lendsim:study:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(key Key) string {
	return s.prefix + string(key)
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "study: redis get")
	}

	var record Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: undecodable entry", key)
	}
	if record.Key != key {
		return nil, errors.Wrapf(ErrCacheMiss, "key %s: entry labeled %s", key, record.Key)
	}
	if err := record.Verify(); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) Set(ctx context.Context, record *Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "study: encoding cache entry")
	}
	if err := s.client.SetNX(ctx, s.key(record.Key), payload, 0).Err(); err != nil {
		return errors.Wrap(err, "study: redis setnx")
	}
	return nil
}
