// Package cache 提供已注销令牌的黑名单存储。令牌在剩余有效期内
// 被记录为已撤销,过期后自动清除。支持进程内存与 Redis 两种后端。
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clouddisk-server/internal/config"
)

// TokenStore 令牌黑名单接口
type TokenStore interface {
	// Revoke 将令牌标记为已撤销,ttl 为令牌剩余有效期
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	// IsRevoked 检查令牌是否已被撤销
	IsRevoked(ctx context.Context, token string) (bool, error)
	// Close 释放后端资源
	Close() error
}

// New 按配置创建令牌黑名单存储
func New(cfg *config.CacheConfig) (TokenStore, error) {
	switch cfg.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return &RedisStore{client: client}, nil
	case "memory", "":
		gc := cfg.Memory.GCInterval
		if gc <= 0 {
			gc = 10 * time.Minute
		}
		return NewMemoryStore(gc), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}

// MemoryStore 进程内黑名单,后台周期清理过期条目
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore 创建内存黑名单并启动清理协程
func NewMemoryStore(gcInterval time.Duration) *MemoryStore {
	m := &MemoryStore{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go m.janitor(gcInterval)
	return m
}

func (m *MemoryStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for token, expiry := range m.entries {
				if now.After(expiry) {
					delete(m.entries, token)
				}
			}
			m.mu.Unlock()
		case <-m.done:
			return
		}
	}
}

// Revoke 记录令牌及其失效时刻
func (m *MemoryStore) Revoke(_ context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.entries[token] = time.Now().Add(ttl)
	m.mu.Unlock()
	return nil
}

// IsRevoked 检查令牌是否在黑名单内且尚未过期
func (m *MemoryStore) IsRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	expiry, ok := m.entries[token]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiry), nil
}

// Close 停止清理协程
func (m *MemoryStore) Close() error {
	m.once.Do(func() { close(m.done) })
	return nil
}

// RedisStore 基于 Redis 的黑名单,依靠键的 TTL 自动过期
type RedisStore struct {
	client *redis.Client
}

func revokedKey(token string) string {
	return "revoked:" + token
}

// Revoke 写入带 TTL 的撤销标记
func (r *RedisStore) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKey(token), "1", ttl).Err()
}

// IsRevoked 检查撤销标记是否存在
func (r *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭 Redis 连接
func (r *RedisStore) Close() error {
	return r.client.Close()
}
