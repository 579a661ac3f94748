package recall

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/metrics"
	"github.com/rushteam/adkit/pkg/logging"
)

// ErrNoCandidates 表示没有任何候选解析为有效 banner
var ErrNoCandidates = core.NewDomainError(core.ModuleRecall, core.ErrorCodeNotFound, "recall: no candidate resolves to an active banner")

// Assembler 通过 cache-aside 把候选 ID 解析为 banner 记录。
//
// 流程：
//  1. 一次 BatchGet 读取所有 banner:{id}
//  2. 未命中的 ID 一次性从仓储批量读取
//  3. 新读到的记录按 TTL 回写缓存（失败只记日志）
//  4. 合并返回
//
// 缓存失败时全部按未命中处理；仓储失败时只返回缓存命中的部分。
type Assembler struct {
	Cache  core.Store
	Repo   core.BannerRepository
	TTL    time.Duration
	Logger *zap.SugaredLogger
}

// NewAssembler 创建 Assembler，ttl <= 0 时使用 3 分钟。
func NewAssembler(cache core.Store, repo core.BannerRepository, ttl time.Duration, logger *zap.SugaredLogger) *Assembler {
	if ttl <= 0 {
		ttl = (&core.DefaultRecommendConfig{}).DefaultCacheTTL()
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Assembler{Cache: cache, Repo: repo, TTL: ttl, Logger: logger}
}

// Resolve 返回能解析的 banner；解析不到的 ID 直接省略，不视为错误。
func (a *Assembler) Resolve(ctx context.Context, ids []int64) (map[int64]core.Banner, error) {
	ids = DedupeIDs(ids)
	out := make(map[int64]core.Banner, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	log := logging.For(ctx, a.Logger)

	misses := a.fromCache(ctx, ids, out)
	metrics.RecordCacheLookup(metrics.CacheBanner, len(ids)-len(misses), len(misses))
	log.Debugw("banner cache lookup", "requested", len(ids), "hits", len(ids)-len(misses), "misses", len(misses))
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := a.Repo.GetBannersByIDs(ctx, misses)
	if err != nil {
		// 仓储是最后一层，失败时只返回缓存命中部分
		log.Warnw("banner repository read failed", "ids", misses, "cached", len(out), "error", err)
		return out, nil
	}

	fill := make(map[string][]byte, len(loaded))
	for id, b := range loaded {
		out[id] = b
		data, err := encodeBanner(b)
		if err != nil {
			log.Warnw("encode banner for cache", "banner_id", id, "error", err)
			continue
		}
		fill[core.BannerCacheKey(id)] = data
	}
	if len(fill) > 0 {
		if err := a.Cache.BatchSet(ctx, fill, a.TTL); err != nil {
			metrics.RecordCacheError(metrics.CacheBanner, "set")
			log.Warnw("banner cache fill failed", "count", len(fill), "error", err)
		}
	}
	return out, nil
}

// fromCache 把命中的 banner 写入 out，返回未命中的 ID（保持输入顺序）。
func (a *Assembler) fromCache(ctx context.Context, ids []int64, out map[int64]core.Banner) []int64 {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = core.BannerCacheKey(id)
	}

	vals, err := a.Cache.BatchGet(ctx, keys)
	if err != nil {
		metrics.RecordCacheError(metrics.CacheBanner, "get")
		logging.For(ctx, a.Logger).Warnw("banner cache read failed, falling back to repository", "error", err)
		vals = nil
	}

	misses := make([]int64, 0, len(ids))
	for i, id := range ids {
		data, ok := vals[keys[i]]
		if !ok {
			misses = append(misses, id)
			continue
		}
		b, err := decodeBanner(data)
		if err != nil || b.ID != id {
			// 损坏的条目按未命中处理，回源后会被覆盖
			misses = append(misses, id)
			continue
		}
		out[id] = b
	}
	return misses
}

// Get 单个 banner 的 cache-aside 读取，解析不到时返回 NotFound。
func (a *Assembler) Get(ctx context.Context, id int64) (core.Banner, error) {
	got, err := a.Resolve(ctx, []int64{id})
	if err != nil {
		return core.Banner{}, err
	}
	b, ok := got[id]
	if !ok {
		return core.Banner{}, core.NewDomainError(core.ModuleRecall, core.ErrorCodeNotFound, fmt.Sprintf("banner %d not found", id))
	}
	return b, nil
}

// Invalidate 删除 banner 记录与向量两个命名空间下的缓存。
func (a *Assembler) Invalidate(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		keys = append(keys, core.BannerCacheKey(id), core.EmbeddingCacheKey(id))
	}
	if err := a.Cache.Delete(ctx, keys...); err != nil {
		metrics.RecordCacheError(metrics.CacheBanner, "delete")
		return fmt.Errorf("invalidate banners %v: %w", ids, err)
	}
	logging.For(ctx, a.Logger).Infow("banner cache invalidated", "ids", ids)
	return nil
}

// DedupeIDs 去重并保持首次出现的顺序
func DedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func encodeBanner(b core.Banner) ([]byte, error) {
	return json.Marshal(b)
}

// decodeBanner 每次都构造新的 Banner 值，并重新校验。
func decodeBanner(data []byte) (core.Banner, error) {
	var b core.Banner
	if err := json.Unmarshal(data, &b); err != nil {
		return core.Banner{}, err
	}
	if err := b.Validate(); err != nil {
		return core.Banner{}, err
	}
	return b, nil
}
