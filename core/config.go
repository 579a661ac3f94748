package core

import "time"

// RecommendConfig 是推荐链路的配置接口，用于提供默认值。
type RecommendConfig interface {
	// DefaultTopK 返回向量检索的默认 TopK
	DefaultTopK() int

	// DefaultTolerance 返回容忍带宽度 τ
	DefaultTolerance() float64

	// DefaultCacheTTL 返回 banner / 向量缓存的默认 TTL
	DefaultCacheTTL() time.Duration

	// DefaultTimeout 返回单次推荐的默认时延预算
	DefaultTimeout() time.Duration
}

// DefaultRecommendConfig 是默认的推荐配置实现。
type DefaultRecommendConfig struct{}

func (c *DefaultRecommendConfig) DefaultTopK() int {
	return 20
}

func (c *DefaultRecommendConfig) DefaultTolerance() float64 {
	return 0.10
}

func (c *DefaultRecommendConfig) DefaultCacheTTL() time.Duration {
	return 3 * time.Minute
}

func (c *DefaultRecommendConfig) DefaultTimeout() time.Duration {
	return time.Second
}
