package recall

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/embedding"
	"github.com/rushteam/adkit/metrics"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/logging"
	"github.com/rushteam/adkit/pkg/utils"
	"github.com/rushteam/adkit/store"
)

// EmbeddingSource 提供 query 向量与 banner 向量，embedding.CachedProvider 实现此接口。
type EmbeddingSource interface {
	QueryEmbedding(ctx context.Context, text string) ([]float64, error)
	BannerEmbeddings(ctx context.Context, banners []core.Banner) (map[int64][]float64, error)
}

// ANNNode 是 Embedding 向量检索节点（Approximate Nearest Neighbor）。
//
// 每个请求用候选 banner 的向量临时构建内积索引，用 query 向量查询一次，
// 输出相似度最高的 k = min(TopK, 候选数) 个 Item，按相似度降序。
//
// 降级：
//   - query 向量失败：按请求顺序取前 k 个，相似度全部为 0
//   - 单个 banner 向量失败：该 banner 相似度为 0，排在有向量的候选之后
type ANNNode struct {
	Embeddings EmbeddingSource
	TopK       int
	Logger     *zap.SugaredLogger

	// NewIndex 创建请求级索引，默认 store.NewMemoryVectorIndex
	NewIndex func(dimension int) core.VectorIndex
}

func (n *ANNNode) Name() string        { return "recall.emb" }
func (n *ANNNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *ANNNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	log := logging.For(ctx, n.Logger)
	k := n.topK(len(items))

	var platform core.Platform
	if rctx.Platform != nil {
		platform = *rctx.Platform
	}
	query, err := n.Embeddings.QueryEmbedding(ctx, embedding.QueryText(rctx.Slot, platform))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.EmbeddingFallbackTotal.WithLabelValues("query").Inc()
		log.Warnw("query embedding failed, keeping request order", "error", err)
		rctx.PutLabel("embedding_fallback", utils.Label{Value: "query", Source: "recall"})
		out := items[:k]
		for _, it := range out {
			it.Similarity = 0
			it.PutLabel("recall_source", utils.Label{Value: "request_order", Source: "recall"})
		}
		return out, nil
	}

	banners := make([]core.Banner, len(items))
	for i, it := range items {
		banners[i] = it.Banner
	}
	vectors, err := n.Embeddings.BannerEmbeddings(ctx, banners)
	if err != nil {
		return nil, err
	}

	newIndex := n.NewIndex
	if newIndex == nil {
		newIndex = func(dim int) core.VectorIndex { return store.NewMemoryVectorIndex(dim) }
	}
	index := newIndex(len(query))
	indexed := make(map[int64]struct{}, len(vectors))
	for _, it := range items {
		vec, ok := vectors[it.ID]
		if !ok {
			continue
		}
		if err := index.Add(it.ID, vec); err != nil {
			log.Warnw("skip banner embedding", "banner_id", it.ID, "error", err)
			continue
		}
		indexed[it.ID] = struct{}{}
	}

	var hits []core.VectorSearchItem
	if index.Len() > 0 {
		hits, err = index.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}
	}

	byID := make(map[int64]*core.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	out := make([]*core.Item, 0, k)
	for _, h := range hits {
		it := byID[h.ID]
		it.Similarity = h.Score
		it.PutLabel("recall_source", utils.Label{Value: "ann", Source: "recall"})
		out = append(out, it)
	}

	// 没有向量的候选相似度为 0，排在所有检索结果之后，保持请求顺序
	missing := 0
	for _, it := range items {
		if _, ok := indexed[it.ID]; ok {
			continue
		}
		missing++
		if len(out) < k {
			it.Similarity = 0
			it.PutLabel("recall_source", utils.Label{Value: "no_embedding", Source: "recall"})
			out = append(out, it)
		}
	}
	if missing > 0 {
		rctx.PutLabel("embedding_fallback", utils.Label{Value: "banner", Source: "recall"})
		log.Debugw("banners without embedding ranked after retrieved ones", "count", missing)
	}
	return out, nil
}

func (n *ANNNode) topK(candidates int) int {
	k := n.TopK
	if k <= 0 {
		k = (&core.DefaultRecommendConfig{}).DefaultTopK()
	}
	if k > candidates {
		k = candidates
	}
	return k
}
