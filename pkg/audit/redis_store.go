package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/supportflow/conversation-router/pkg/observability"
)

// RedisStore implements Store using Redis. Records are stored as JSON with a
// sorted set for time-based listing.
//
// Key patterns:
//   - {prefix}{id}           -> JSON record data
//   - {prefix}index:time     -> sorted set by timestamp (score = unix nano)
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// RedisStoreConfig configures the Redis audit backend.
type RedisStoreConfig struct {
	Address    string
	Database   int
	Password   string
	KeyPrefix  string
	TTLSeconds int
}

// NewRedisStore creates a Redis-backed audit store and verifies connectivity.
func NewRedisStore(cfg RedisStoreConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "matchaudit:"
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.TTLSeconds <= 0 {
		ttl = DefaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	observability.Infof("Connected to Redis audit store at %s (prefix=%s)", cfg.Address, prefix)
	return &RedisStore{client: client, keyPrefix: prefix, ttl: ttl}, nil
}

// IsEnabled returns whether the store is enabled.
func (r *RedisStore) IsEnabled() bool { return true }

// CheckConnection verifies the Redis connection is healthy.
func (r *RedisStore) CheckConnection(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

func (r *RedisStore) recordKey(id string) string { return r.keyPrefix + id }

func (r *RedisStore) timeIndexKey() string { return r.keyPrefix + "index:time" }

// StoreRecord stores a record as JSON and indexes it by timestamp.
func (r *RedisStore) StoreRecord(ctx context.Context, record *MatchRecord) error {
	if record == nil || record.ID == "" {
		return ErrInvalidInput
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey(record.ID), data, r.ttl)
	pipe.ZAdd(ctx, r.timeIndexKey(), redis.Z{
		Score:  float64(record.Timestamp.UnixNano()),
		Member: record.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID.
func (r *RedisStore) GetRecord(ctx context.Context, recordID string) (*MatchRecord, error) {
	data, err := r.client.Get(ctx, r.recordKey(recordID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var record MatchRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

// ListRecords lists records newest first, applying filters client-side.
func (r *RedisStore) ListRecords(ctx context.Context, opts ListOptions) ([]*MatchRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	// Over-fetch to leave room for filtered-out entries and expired keys.
	ids, err := r.client.ZRevRange(ctx, r.timeIndexKey(), 0, int64(limit*4)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read time index: %w", err)
	}

	out := make([]*MatchRecord, 0, limit)
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		record, err := r.GetRecord(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Record expired but index entry remains; drop it lazily.
			r.client.ZRem(ctx, r.timeIndexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if opts.RoomID != "" && record.RoomID != opts.RoomID {
			continue
		}
		if opts.Outcome != "" && record.Outcome != opts.Outcome {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
