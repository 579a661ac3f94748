package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/adkit/core"
)

// BreakerConfig 配置缓存熔断器。
type BreakerConfig struct {
	// Name 熔断器名称（用于日志/监控）
	Name string

	// FailureThreshold 连续失败多少次后打开
	FailureThreshold uint32

	// Timeout 打开状态持续多久后进入半开
	Timeout time.Duration

	// MaxRequests 半开状态允许的探测请求数
	MaxRequests uint32

	// OnStateChange 状态变化回调（可选）
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig 返回默认配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "cache",
		FailureThreshold: 5,
		Timeout:          10 * time.Second,
		MaxRequests:      1,
	}
}

// BreakerStore 为 Store 加上熔断：缓存连续失败后快速失败，
// 调用方把 ErrStoreUnavailable 当作全部未命中，直接回源到仓储。
type BreakerStore struct {
	inner core.Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore 包装一个 Store
func NewBreakerStore(inner core.Store, cfg BreakerConfig) *BreakerStore {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// key 不存在属于正常结果；调用方取消或超时不代表缓存故障，都不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err) ||
				errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: cfg.OnStateChange,
	}
	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerStore) Name() string { return b.inner.Name() + "+breaker" }

// State 返回熔断器当前状态
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.Get(ctx, key)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return v.([]byte), nil
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Set(ctx, key, value, ttl)
	})
	return breakerErr(err)
}

func (b *BreakerStore) Delete(ctx context.Context, keys ...string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.Delete(ctx, keys...)
	})
	return breakerErr(err)
}

func (b *BreakerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	v, err := b.cb.Execute(func() (any, error) {
		return b.inner.BatchGet(ctx, keys)
	})
	if err != nil {
		return nil, breakerErr(err)
	}
	return v.(map[string][]byte), nil
}

func (b *BreakerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.BatchSet(ctx, kvs, ttl)
	})
	return breakerErr(err)
}

func (b *BreakerStore) Close() error { return b.inner.Close() }

func breakerErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return err
}

var _ core.Store = (*BreakerStore)(nil)
