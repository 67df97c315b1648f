package presence

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	connsKey = "presence:conns"
	usersKey = "presence:users"
)

// RedisStore backs the registry with a shared key-value store so that a
// user connected to one server instance is visible to all instances. It
// keeps the same two indexes as MemoryStore, as redis hashes.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Register(ctx context.Context, connId string, userId int) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, connsKey, connId, userId)
	pipe.HSet(ctx, usersKey, strconv.Itoa(userId), connId)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("register connection %q: %w", connId, err)
	}

	return nil
}

func (s *RedisStore) Unregister(ctx context.Context, connId string) (int, bool, error) {
	val, err := s.client.HGet(ctx, connsKey, connId).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get connection %q: %w", connId, err)
	}

	userId, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("parse user id %q: %w", val, err)
	}

	if err := s.client.HDel(ctx, connsKey, connId).Err(); err != nil {
		return 0, false, fmt.Errorf("delete connection %q: %w", connId, err)
	}

	owner, err := s.client.HGet(ctx, usersKey, val).Result()
	if err != nil && err != redis.Nil {
		return 0, false, fmt.Errorf("get user %q: %w", val, err)
	}
	if owner == connId {
		if err := s.client.HDel(ctx, usersKey, val).Err(); err != nil {
			return 0, false, fmt.Errorf("delete user %q: %w", val, err)
		}
	}

	return userId, true, nil
}

func (s *RedisStore) Lookup(ctx context.Context, userId int) (string, bool, error) {
	connId, err := s.client.HGet(ctx, usersKey, strconv.Itoa(userId)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup user %d: %w", userId, err)
	}

	return connId, true, nil
}

func (s *RedisStore) OnlineUserIds(ctx context.Context) ([]int, error) {
	vals, err := s.client.HVals(ctx, connsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	seen := make(map[int]struct{}, len(vals))
	userIds := make([]int, 0, len(vals))
	for _, val := range vals {
		userId, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("parse user id %q: %w", val, err)
		}
		if _, ok := seen[userId]; ok {
			continue
		}
		seen[userId] = struct{}{}
		userIds = append(userIds, userId)
	}

	return userIds, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
