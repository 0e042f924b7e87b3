// Package redisjournal is a journal.Journal stored in Redis.
//
// Each entry is a JSON string under <prefix>:rec:<id>. A sorted set
// <prefix>:ids holds every id with score 0, so members sort by id and a
// reverse range yields newest-first order.
package redisjournal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cognicore/ontoreason/pkg/ontoreason/internalerr"
	"github.com/cognicore/ontoreason/pkg/ontoreason/journal"
)

const (
	// DefaultPrefix namespaces every key the journal writes.
	DefaultPrefix = "ontoreason:journal"
	// DefaultRetention is the number of entries kept when none is given.
	DefaultRetention = 10000
)

// Journal implements journal.Journal over a go-redis client.
type Journal struct {
	client    *redis.Client
	prefix    string
	retention int64
	owned     bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(p string) Option {
	return func(j *Journal) {
		if p != "" {
			j.prefix = p
		}
	}
}

// WithRetention bounds the number of kept entries.
func WithRetention(n int) Option {
	return func(j *Journal) {
		if n > 0 {
			j.retention = int64(n)
		}
	}
}

// New wraps an existing client. Close does not close it.
func New(client *redis.Client, opts ...Option) *Journal {
	j := &Journal{client: client, prefix: DefaultPrefix, retention: DefaultRetention}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Open connects to the server described by a redis:// URL and verifies the
// connection.
func Open(ctx context.Context, url string, opts ...Option) (*Journal, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis journal: parse %q: %w: %w", url, internalerr.ErrInvalidConfig, err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis journal: ping: %w: %w", internalerr.ErrStoreUnavailable, err)
	}
	j := New(client, opts...)
	j.owned = true
	return j, nil
}

// Close releases the client if Open created it.
func (j *Journal) Close() error {
	if j.owned {
		return j.client.Close()
	}
	return nil
}

func (j *Journal) idsKey() string             { return j.prefix + ":ids" }
func (j *Journal) recordKey(id string) string { return j.prefix + ":rec:" + id }

// Record stores r and trims the oldest entries past the retention limit.
func (j *Journal) Record(ctx context.Context, r journal.Record) error {
	if r.ID == "" {
		return fmt.Errorf("redis journal: record without id: %w", internalerr.ErrInvalidInput)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	_, err = j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, j.recordKey(r.ID), data, 0)
		pipe.ZAdd(ctx, j.idsKey(), redis.Z{Score: 0, Member: r.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis journal: record %s: %w", r.ID, err)
	}
	return j.trim(ctx)
}

func (j *Journal) trim(ctx context.Context) error {
	n, err := j.client.ZCard(ctx, j.idsKey()).Result()
	if err != nil || n <= j.retention {
		return err
	}
	stale, err := j.client.ZRange(ctx, j.idsKey(), 0, n-j.retention-1).Result()
	if err != nil || len(stale) == 0 {
		return err
	}

	keys := make([]string, len(stale))
	members := make([]any, len(stale))
	for i, id := range stale {
		keys[i] = j.recordKey(id)
		members[i] = id
	}
	_, err = j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, j.idsKey(), members...)
		return nil
	})
	return err
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]journal.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := j.client.ZRevRange(ctx, j.idsKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis journal: recent: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = j.recordKey(id)
	}
	values, err := j.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis journal: recent: %w", err)
	}

	out := make([]journal.Record, 0, len(values))
	for i, val := range values {
		if val == nil {
			// evicted between ZREVRANGE and MGET
			continue
		}
		str, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("redis journal: unexpected value type %T for %s", val, keys[i])
		}
		var r journal.Record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("redis journal: decode %s: %w", keys[i], err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Get returns the entry with id.
func (j *Journal) Get(ctx context.Context, id string) (journal.Record, error) {
	data, err := j.client.Get(ctx, j.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return journal.Record{}, fmt.Errorf("redis journal: %s: %w", id, internalerr.ErrNotFound)
	}
	if err != nil {
		return journal.Record{}, fmt.Errorf("redis journal: get %s: %w", id, err)
	}
	var r journal.Record
	if err := json.Unmarshal(data, &r); err != nil {
		return journal.Record{}, fmt.Errorf("redis journal: decode %s: %w", id, err)
	}
	return r, nil
}
