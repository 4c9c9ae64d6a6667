package store

import (
	"context"
	"errors"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/cache"
)

// CacheKeyPrefix 已解析答案的缓存键前缀
const CacheKeyPrefix = "kiosk:answer:"

// Resolver 意图解析
type Resolver interface {
	Lookup(ctx context.Context, token string, params map[string]string) (IntentRecord, error)
}

// AnswerCache 是 CachedResolver 需要的缓存能力，由 cache.Manager 实现
type AnswerCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// CacheObserver 接收缓存命中统计（通常是 metrics.Collector）
type CacheObserver interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// CacheKey 返回 kiosk:answer:<转义后的 token>:<转义后的 k=v&...>
func CacheKey(token string, params map[string]string) string {
	return CacheKeyPrefix + url.QueryEscape(token) + ":" + CanonicalParams(params)
}

// CachedResolver 在 Store 前加一层 Redis 缓存
//
// 只缓存命中的结果；缓存读写失败时退化为直接查库。
type CachedResolver struct {
	next     Resolver
	cache    AnswerCache
	ttl      time.Duration
	logger   *zap.Logger
	observer CacheObserver
}

// NewCachedResolver 创建带缓存的解析器；c 为 nil 时直接透传
func NewCachedResolver(next Resolver, c AnswerCache, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedResolver{
		next:   next,
		cache:  c,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "answer_cache")),
	}
}

// WithObserver 设置命中统计观察者
func (r *CachedResolver) WithObserver(o CacheObserver) *CachedResolver {
	r.observer = o
	return r
}

func (r *CachedResolver) record(hit bool) {
	if r.observer == nil {
		return
	}
	if hit {
		r.observer.RecordCacheHit("answer")
	} else {
		r.observer.RecordCacheMiss("answer")
	}
}

func (r *CachedResolver) Lookup(ctx context.Context, token string, params map[string]string) (IntentRecord, error) {
	if r.cache == nil {
		return r.next.Lookup(ctx, token, params)
	}

	key := CacheKey(token, params)

	var rec IntentRecord
	err := r.cache.GetJSON(ctx, key, &rec)
	switch {
	case err == nil:
		r.record(true)
		return rec, nil
	case cache.IsCacheMiss(err):
		r.record(false)
	default:
		r.logger.Warn("answer cache read failed", zap.String("key", key), zap.Error(err))
	}

	rec, err = r.next.Lookup(ctx, token, params)
	if err != nil {
		return IntentRecord{}, err
	}

	if err := r.cache.SetJSON(ctx, key, rec, r.ttl); err != nil {
		r.logger.Warn("answer cache write failed", zap.String("key", key), zap.Error(err))
	}
	return rec, nil
}

// Invalidate 清空全部已缓存的答案（重新灌库后调用）
func (r *CachedResolver) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	n, err := r.cache.DeletePrefix(ctx, CacheKeyPrefix)
	if err != nil && !errors.Is(err, cache.ErrClosed) {
		return err
	}
	r.logger.Debug("answer cache invalidated", zap.Int("keys", n))
	return nil
}
