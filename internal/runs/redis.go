package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix = "catalog:run:"

	// runTTL bounds how long a finished run stays queryable.
	runTTL = 24 * time.Hour
)

// RedisRegistry keeps run records in Redis so they survive process restarts
// and are visible to every node behind the same endpoint.
type RedisRegistry struct {
	client *redis.Client
}

// RedisConfig carries the connection settings for the run registry.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, cfg RedisConfig) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("runs: error connecting to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisRegistry{client: client}, nil
}

// Close closes the underlying Redis client.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// Put stores or replaces a run record.
func (r *RedisRegistry) Put(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("runs: error encoding run %s: %w", run.ID, err)
	}
	if err := r.client.Set(ctx, runKeyPrefix+run.ID, data, runTTL).Err(); err != nil {
		return fmt.Errorf("runs: error storing run %s: %w", run.ID, err)
	}
	return nil
}

// Get returns the run record for the given id.
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Run, error) {
	data, err := r.client.Get(ctx, runKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("runs: error fetching run %s: %w", id, err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("runs: error decoding run %s: %w", id, err)
	}
	return &run, nil
}

// List returns all run records, most recent first. Keys are walked with SCAN
// to keep the server responsive.
func (r *RedisRegistry) List(ctx context.Context) ([]Run, error) {
	out := []Run{}
	iter := r.client.Scan(ctx, 0, runKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue // expired between scan and get
			}
			return nil, fmt.Errorf("runs: error fetching %s: %w", iter.Val(), err)
		}
		var run Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, fmt.Errorf("runs: error decoding %s: %w", iter.Val(), err)
		}
		out = append(out, run)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("runs: error scanning runs: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}
