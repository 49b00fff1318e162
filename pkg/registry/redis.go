package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "session:"
	// sessionsKey is a sorted set of session IDs scored by update time
	sessionsKey = "sessions"
)

// RedisRegistry stores sessions as JSON values that expire after a TTL.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry connects to the redis server at url, e.g.
// redis://localhost:6379/0.
func NewRedisRegistry(ctx context.Context, url string, ttl time.Duration) (*RedisRegistry, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %v", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %v", err)
	}
	return &RedisRegistry{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisRegistry) Put(ctx context.Context, info SessionInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal session %s: %v", info.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(info.ID), b, r.ttl)
	pipe.ZAdd(ctx, sessionsKey, &redis.Z{Score: float64(info.UpdatedAt.UnixMicro()), Member: info.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session %s: %v", info.ID, err)
	}
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (SessionInfo, error) {
	val, err := r.client.Get(ctx, sessionKey(id)).Result()
	if err == redis.Nil {
		return SessionInfo{}, &ErrNotFound{ID: id}
	}
	if err != nil {
		return SessionInfo{}, fmt.Errorf("failed to get session %s: %v", id, err)
	}

	var info SessionInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return SessionInfo{}, fmt.Errorf("failed to unmarshal session %s: %v", id, err)
	}
	return info, nil
}

// List returns every live session, most recently updated first. IDs whose
// value already expired are pruned from the index.
func (r *RedisRegistry) List(ctx context.Context) ([]SessionInfo, error) {
	ids, err := r.client.ZRevRange(ctx, sessionsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %v", err)
	}
	if len(ids) == 0 {
		return []SessionInfo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %v", err)
	}

	sessions := make([]SessionInfo, 0, len(vals))
	var expired []interface{}
	for i, val := range vals {
		s, ok := val.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var info SessionInfo
		if err := json.Unmarshal([]byte(s), &info); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %v", ids[i], err)
		}
		sessions = append(sessions, info)
	}
	if len(expired) > 0 {
		if err := r.client.ZRem(ctx, sessionsKey, expired...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %v", err)
		}
	}
	return sessions, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.ZRem(ctx, sessionsKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session %s: %v", id, err)
	}
	return nil
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
