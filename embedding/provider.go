package embedding

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/metrics"
	"github.com/rushteam/adkit/pkg/logging"
)

// CachedProvider 给推荐链路提供 query 向量与带缓存的 banner 向量。
//
// banner 向量缓存在 embedding:{id} 命名空间，与 banner 记录使用同一 Store、同一 TTL；
// query 向量只属于当前请求，不写缓存。
type CachedProvider struct {
	Embedder  core.Embedder
	Cache     core.Store
	TTL       time.Duration
	BatchSize int // 单次 Embed 调用的最大文本数

	// ComputeTimeout 是分块计算的独立超时。计算在请求间共享，不跟随任何一个请求的 ctx 取消。
	ComputeTimeout time.Duration
	Logger    *zap.SugaredLogger

	group singleflight.Group
}

// NewCachedProvider 创建 CachedProvider
func NewCachedProvider(embedder core.Embedder, cache core.Store, ttl time.Duration, logger *zap.SugaredLogger) *CachedProvider {
	if ttl <= 0 {
		ttl = (&core.DefaultRecommendConfig{}).DefaultCacheTTL()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CachedProvider{
		Embedder:       embedder,
		Cache:          cache,
		TTL:            ttl,
		BatchSize:      32,
		ComputeTimeout: 2 * time.Second,
		Logger:         logger,
	}
}

// QueryText 拼接 query 文本：广告位名称重复 3 次、平台描述 2 次、用户名 1 次。
func QueryText(slot string, p core.Platform) string {
	parts := make([]string, 0, 6)
	add := func(s string, times int) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for i := 0; i < times; i++ {
			parts = append(parts, s)
		}
	}
	add(slot, 3)
	add(p.Description, 2)
	add(p.Username, 1)
	return strings.Join(parts, " ")
}

// QueryEmbedding 计算 query 向量（不缓存）
func (p *CachedProvider) QueryEmbedding(ctx context.Context, text string) ([]float64, error) {
	vecs, err := p.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder %s returned %d vectors for 1 text", p.Embedder.Name(), len(vecs))
	}
	return Normalize(vecs[0]), nil
}

// BannerEmbeddings 返回 banner ID -> 向量。
//
// 一次 BatchGet 读取缓存，未命中的按 BatchSize 分块并发计算，再尽力回写缓存。
// 计算失败的 banner 不出现在结果中，由调用方按相似度 0 处理；
// 只有 ctx 结束时返回错误，此时其余分块不再等待。
func (p *CachedProvider) BannerEmbeddings(ctx context.Context, banners []core.Banner) (map[int64][]float64, error) {
	unique := make([]core.Banner, 0, len(banners))
	seen := make(map[int64]struct{}, len(banners))
	for _, b := range banners {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		unique = append(unique, b)
	}
	out := make(map[int64][]float64, len(unique))
	if len(unique) == 0 {
		return out, nil
	}

	misses := p.fromCache(ctx, unique, out)
	metrics.RecordCacheLookup(metrics.CacheEmbedding, len(unique)-len(misses), len(misses))
	if len(misses) == 0 {
		return out, nil
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	for _, chunk := range chunkBanners(misses, p.BatchSize) {
		chunk := chunk
		eg.Go(func() error {
			vecs, err := p.computeShared(egCtx, chunk)
			if err != nil {
				if ctxErr := egCtx.Err(); ctxErr != nil {
					return ctxErr
				}
				metrics.EmbeddingFallbackTotal.WithLabelValues("banner").Add(float64(len(chunk)))
				logging.For(ctx, p.Logger).Warnw("banner embedding failed, similarity degrades to 0",
					"embedder", p.Embedder.Name(), "count", len(chunk), "error", err)
				return nil
			}
			mu.Lock()
			for id, v := range vecs {
				out[id] = v
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *CachedProvider) fromCache(ctx context.Context, banners []core.Banner, out map[int64][]float64) []core.Banner {
	keys := make([]string, len(banners))
	for i, b := range banners {
		keys[i] = core.EmbeddingCacheKey(b.ID)
	}
	vals, err := p.Cache.BatchGet(ctx, keys)
	if err != nil {
		metrics.RecordCacheError(metrics.CacheEmbedding, "get")
		logging.For(ctx, p.Logger).Warnw("embedding cache read failed", "error", err)
		vals = nil
	}

	dim := p.Embedder.Dimension()
	misses := make([]core.Banner, 0, len(banners))
	for i, b := range banners {
		data, ok := vals[keys[i]]
		if !ok {
			misses = append(misses, b)
			continue
		}
		var vec []float64
		if err := json.Unmarshal(data, &vec); err != nil || len(vec) == 0 || (dim > 0 && len(vec) != dim) {
			misses = append(misses, b)
			continue
		}
		out[b.ID] = vec
	}
	return misses
}

// computeShared 相同的未命中分块在并发请求间只计算一次。
// 计算使用脱离调用方取消的 ctx；每个调用方只按自己的 ctx 停止等待。
func (p *CachedProvider) computeShared(ctx context.Context, chunk []core.Banner) (map[int64][]float64, error) {
	ch := p.group.DoChan(chunkKey(chunk), func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.computeTimeout())
		defer cancel()
		return p.compute(sharedCtx, chunk)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(map[int64][]float64), nil
	}
}

func (p *CachedProvider) computeTimeout() time.Duration {
	if p.ComputeTimeout > 0 {
		return p.ComputeTimeout
	}
	return 2 * time.Second
}

func (p *CachedProvider) compute(ctx context.Context, chunk []core.Banner) (map[int64][]float64, error) {
	texts := make([]string, len(chunk))
	for i, b := range chunk {
		texts[i] = b.EmbeddingText()
	}
	vecs, err := p.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(chunk) {
		return nil, fmt.Errorf("embedder %s returned %d vectors for %d texts", p.Embedder.Name(), len(vecs), len(chunk))
	}

	out := make(map[int64][]float64, len(chunk))
	fill := make(map[string][]byte, len(chunk))
	for i, b := range chunk {
		vec := Normalize(vecs[i])
		out[b.ID] = vec
		if data, err := json.Marshal(vec); err == nil {
			fill[core.EmbeddingCacheKey(b.ID)] = data
		}
	}
	if err := p.Cache.BatchSet(ctx, fill, p.TTL); err != nil {
		metrics.RecordCacheError(metrics.CacheEmbedding, "set")
		logging.For(ctx, p.Logger).Warnw("embedding cache fill failed", "count", len(fill), "error", err)
	}
	return out, nil
}

func chunkBanners(banners []core.Banner, size int) [][]core.Banner {
	if size <= 0 {
		size = len(banners)
	}
	chunks := make([][]core.Banner, 0, (len(banners)+size-1)/size)
	for start := 0; start < len(banners); start += size {
		end := start + size
		if end > len(banners) {
			end = len(banners)
		}
		chunks = append(chunks, banners[start:end])
	}
	return chunks
}

func chunkKey(chunk []core.Banner) string {
	ids := make([]int64, len(chunk))
	for i, b := range chunk {
		ids[i] = b.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var sb strings.Builder
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(id, 10))
	}
	return sb.String()
}
