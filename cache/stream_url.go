package cache

import (
	"context"
	"errors"
	"time"

	"nuvyx/logger"

	"github.com/go-redis/redis/v8"
)

// urlSafetyMargin 缓存比预签名 URL 提前过期，避免返回即将失效的链接
const urlSafetyMargin = 5 * time.Minute

// Presigner issues presigned object URLs.
type Presigner interface {
	PresignStream(ctx context.Context, key string) (string, error)
	PresignDownload(ctx context.Context, key, filename string) (string, error)
}

// store is the slice of Redis the URL cache needs.
type store interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, key, value string, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s redisStore) set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// StreamURLCache wraps a Presigner and keeps issued URLs in Redis until shortly before they expire.
// Cache failures fall through to a fresh presign.
type StreamURLCache struct {
	next  Presigner
	store store
	ttl   time.Duration
}

// NewStreamURLCache 创建预签名 URL 缓存，client 为 nil 时直接透传
func NewStreamURLCache(next Presigner, client *redis.Client, expiry time.Duration) *StreamURLCache {
	var s store
	if client != nil {
		s = redisStore{client: client}
	}
	return newStreamURLCache(next, s, expiry)
}

func newStreamURLCache(next Presigner, s store, expiry time.Duration) *StreamURLCache {
	ttl := expiry - urlSafetyMargin
	if ttl <= 0 {
		ttl = expiry / 2
	}
	return &StreamURLCache{next: next, store: s, ttl: ttl}
}

func (c *StreamURLCache) PresignStream(ctx context.Context, key string) (string, error) {
	return c.lookup(ctx, urlKey(key, ""), func() (string, error) {
		return c.next.PresignStream(ctx, key)
	})
}

func (c *StreamURLCache) PresignDownload(ctx context.Context, key, filename string) (string, error) {
	return c.lookup(ctx, urlKey(key, filename), func() (string, error) {
		return c.next.PresignDownload(ctx, key, filename)
	})
}

func (c *StreamURLCache) lookup(ctx context.Context, cacheKey string, presign func() (string, error)) (string, error) {
	if c.store == nil || c.ttl <= 0 {
		return presign()
	}

	url, ok, err := c.store.get(ctx, cacheKey)
	if err != nil {
		logger.Warn("读取URL缓存失败",
			logger.String("key", cacheKey),
			logger.ErrorField(err))
	} else if ok {
		logger.Debug("URL缓存命中", logger.String("key", cacheKey))
		return url, nil
	}

	url, err = presign()
	if err != nil {
		return "", err
	}
	if err := c.store.set(ctx, cacheKey, url, c.ttl); err != nil {
		logger.Warn("写入URL缓存失败",
			logger.String("key", cacheKey),
			logger.ErrorField(err))
	}
	return url, nil
}

// urlKey 下载链接带 content-disposition，需要按文件名区分
func urlKey(key, filename string) string {
	if filename == "" {
		return "url:stream:" + key
	}
	return "url:download:" + key + ":" + filename
}
