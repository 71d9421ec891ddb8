// Package redisreg provides a Redis-backed call registry so multiple
// dispatcher replicas can share one authoritative call pool.
package redisreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noachFrank/DriverApp-sub001/core/model"
	"github.com/noachFrank/DriverApp-sub001/core/registry"
	"github.com/noachFrank/DriverApp-sub001/infra/logger"
)

const (
	callKeyPrefix = "call:"
	openSetKey    = "calls:open"
)

// Config holds the Redis connection parameters.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Store implements registry.Store on top of Redis. Each call is a JSON value
// under call:<id>; the ids of open calls are tracked in a set so ListOpen
// avoids a full keyspace scan.
type Store struct {
	rdb *redis.Client
	log logger.Logger
}

// New connects to Redis and pings it once to fail fast on bad config.
func New(cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, log: logger.New("redis_registry")}, nil
}

// NewWithClient wraps an existing client, used by tests.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, log: logger.New("redis_registry")}
}

func (s *Store) Get(ctx context.Context, id string) (model.Call, error) {
	raw, err := s.rdb.Get(ctx, callKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Call{}, registry.ErrNotFound
	}
	if err != nil {
		return model.Call{}, fmt.Errorf("redis get: %w", err)
	}
	var call model.Call
	if err := json.Unmarshal(raw, &call); err != nil {
		return model.Call{}, fmt.Errorf("decode call %s: %w", id, err)
	}
	return call, nil
}

func (s *Store) Put(ctx context.Context, call model.Call) error {
	raw, err := json.Marshal(call)
	if err != nil {
		return fmt.Errorf("encode call %s: %w", call.ID, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, callKeyPrefix+call.ID, raw, 0)
	if call.IsOpen() {
		pipe.SAdd(ctx, openSetKey, call.ID)
	} else {
		pipe.SRem(ctx, openSetKey, call.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, callKeyPrefix+id)
	pipe.SRem(ctx, openSetKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

func (s *Store) ListOpen(ctx context.Context) ([]model.Call, error) {
	ids, err := s.rdb.SMembers(ctx, openSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = callKeyPrefix + id
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	calls := make([]model.Call, 0, len(values))
	for i, v := range values {
		if v == nil {
			// The id outlived its call key; repair the set lazily.
			s.log.Warnf("open set references missing call %s", ids[i])
			s.rdb.SRem(ctx, openSetKey, ids[i])
			continue
		}
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var call model.Call
		if err := json.Unmarshal([]byte(raw), &call); err != nil {
			s.log.Errorf("decode call %s: %v", ids[i], err)
			continue
		}
		if call.IsOpen() {
			calls = append(calls, call)
		}
	}
	sort.Slice(calls, func(i, j int) bool {
		return calls[i].Attributes.ScheduledAt.Before(calls[j].Attributes.ScheduledAt)
	})
	return calls, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}
