package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatflow/storage"

	"github.com/redis/go-redis/v9"
)

const slotKeyPrefix = "beatflow:slot:%s"

// RedisSlot 基于 Redis 字符串的持久化槽位
type RedisSlot struct {
	client *redis.Client
	ttl    time.Duration // 0 表示不过期
}

// NewRedisSlot 创建槽位；client 为 nil 时使用全局 RedisClient
func NewRedisSlot(client *redis.Client, ttl time.Duration) *RedisSlot {
	if client == nil {
		client = RedisClient
	}
	return &RedisSlot{client: client, ttl: ttl}
}

// SlotKey 生成槽位对应的 Redis 键
func SlotKey(key string) string {
	return fmt.Sprintf(slotKeyPrefix, key)
}

func (s *RedisSlot) Get(ctx context.Context, key string) (string, bool, error) {
	if s.client == nil {
		return "", false, storage.ErrSlotUnavailable
	}

	val, err := s.client.Get(ctx, SlotKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return val, true, nil
}

func (s *RedisSlot) Set(ctx context.Context, key, value string) error {
	if s.client == nil {
		return storage.ErrSlotUnavailable
	}

	if err := s.client.Set(ctx, SlotKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set slot %s: %w", key, err)
	}
	return nil
}

func (s *RedisSlot) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return storage.ErrSlotUnavailable
	}

	if err := s.client.Del(ctx, SlotKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
