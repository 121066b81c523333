package scan

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Deduper は一定時間内の同一閲覧を1回として数えるための判定器。
type Deduper interface {
	// FirstSeen はkeyが時間枠内で初めての閲覧ならtrueを返す。
	FirstSeen(ctx context.Context, key string) (bool, error)
	// Forget はFirstSeenで確保した時間枠を取り消し、次の閲覧を初回として数え直す。
	Forget(ctx context.Context, key string) error
}

// RedisDeduper はRedisのSETNXとTTLで時間枠を実現するDeduper。
// 複数プロセスで時間枠を共有できる。
type RedisDeduper struct {
	client *redis.Client
	window time.Duration
	prefix string
}

// NewRedisDeduper はRedis URL（例: "redis://localhost:6379/0"）からRedisDeduperを生成する。
func NewRedisDeduper(redisURL string, window time.Duration) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisDeduperWithClient(redis.NewClient(opts), window), nil
}

// NewRedisDeduperWithClient は生成済みのクライアントからRedisDeduperを生成する。
func NewRedisDeduperWithClient(client *redis.Client, window time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, window: window, prefix: "meishi:scan:"}
}

// FirstSeen はkeyが時間枠内で初めての閲覧ならtrueを返す。
func (d *RedisDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, 1, d.window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}
	return ok, nil
}

// Forget はkeyの時間枠を削除する。存在しないkeyはエラーにしない。
func (d *RedisDeduper) Forget(ctx context.Context, key string) error {
	if err := d.client.Del(ctx, d.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete dedup key: %w", err)
	}
	return nil
}

// Ping はRedisへの疎通を確認する。
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (d *RedisDeduper) Close() error {
	return d.client.Close()
}

var _ Deduper = (*RedisDeduper)(nil)
