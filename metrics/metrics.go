// Package metrics 定义推荐链路的 Prometheus 指标。
//
// 指标在包初始化时注册到默认 Registry，由 transport/http 的 /metrics 暴露。
//
// 命名空间：
//   - cache：按 namespace（banner / embedding）统计命中、未命中与错误
//   - scorer / embedding：降级次数
//   - recommend：按 outcome 统计请求数、超时数与耗时分布
//   - node：按 node / kind 统计每个 pipeline 阶段的耗时
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "adkit"

// 缓存命名空间
const (
	CacheBanner    = "banner"
	CacheEmbedding = "embedding"
)

var (
	// CacheHitsTotal 缓存命中次数
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits by namespace",
		},
		[]string{"namespace"},
	)

	// CacheMissesTotal 缓存未命中次数（含无法解码的条目）
	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses by namespace",
		},
		[]string{"namespace"},
	)

	// CacheErrorsTotal 缓存读写失败次数
	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Total number of cache operation failures by namespace and operation",
		},
		[]string{"namespace", "op"},
	)

	// ScorerFallbackTotal 模型打分失败后改用启发式打分的次数
	ScorerFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scorer_fallback_total",
			Help:      "Total number of scoring calls served by the heuristic after a model failure",
		},
	)

	// EmbeddingFallbackTotal 向量化失败后的降级次数
	EmbeddingFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallback_total",
			Help:      "Total number of embedding failures absorbed by degrading similarity",
		},
		[]string{"reason"},
	)

	// RecommendTotal 按结果统计的推荐请求数
	RecommendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_total",
			Help:      "Total number of recommend calls by outcome",
		},
		[]string{"outcome"},
	)

	// RecommendTimeoutsTotal 超过时延预算的请求数
	RecommendTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_timeouts_total",
			Help:      "Total number of recommend calls that exceeded the latency budget",
		},
	)

	// RecommendDuration 推荐耗时
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Duration of recommend calls in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	// NodeDuration 单个 pipeline 节点耗时
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of a single pipeline node in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5},
		},
		[]string{"node", "kind"},
	)
)

// RecordCacheLookup 记录一次批量读取的命中与未命中数
func RecordCacheLookup(ns string, hits, misses int) {
	if hits > 0 {
		CacheHitsTotal.WithLabelValues(ns).Add(float64(hits))
	}
	if misses > 0 {
		CacheMissesTotal.WithLabelValues(ns).Add(float64(misses))
	}
}

// RecordCacheError 记录缓存失败，op 取 get / set / delete
func RecordCacheError(ns, op string) {
	CacheErrorsTotal.WithLabelValues(ns, op).Inc()
}

// RecordRecommend 记录一次推荐调用；outcome 为 ok 或错误代码。
func RecordRecommend(outcome string, d time.Duration) {
	RecommendTotal.WithLabelValues(outcome).Inc()
	RecommendDuration.Observe(d.Seconds())
}
