package cache

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares availability entries between replicas. Every entry key is
// also added to a per-date set so InvalidateDate can find it without SCAN.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings with a short timeout.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = "labsched"
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl, logger: logger.With("cache", "redis")}
}

func (c *Redis) entryKey(key Key) string {
	sum := sha1.Sum([]byte(key.String()))
	return fmt.Sprintf("%s:avail:%s:%x", c.prefix, key.Date, sum[:])
}

func (c *Redis) dateKey(date string) string {
	return fmt.Sprintf("%s:avail-date:%s", c.prefix, date)
}

func (c *Redis) Get(ctx context.Context, key Key) ([]string, bool) {
	raw, err := c.client.Get(ctx, c.entryKey(key)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "cache get failed", "error", err)
		}
		return nil, false
	}
	return decodeBlocks(raw), true
}

func (c *Redis) Set(ctx context.Context, key Key, blocks []string) {
	entry := c.entryKey(key)
	dateSet := c.dateKey(key.Date)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, entry, encodeBlocks(blocks), c.ttl)
		pipe.SAdd(ctx, dateSet, entry)
		pipe.Expire(ctx, dateSet, 2*c.ttl)
		return nil
	})
	if err != nil {
		c.logger.WarnContext(ctx, "cache set failed", "error", err)
	}
}

func (c *Redis) InvalidateDate(ctx context.Context, date string) {
	dateSet := c.dateKey(date)
	keys, err := c.client.SMembers(ctx, dateSet).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed", "date", date, "error", err)
		return
	}
	keys = append(keys, dateSet)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidate failed", "date", date, "error", err)
	}
}

// block values never contain commas
func encodeBlocks(blocks []string) string {
	return strings.Join(blocks, ",")
}

func decodeBlocks(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}
