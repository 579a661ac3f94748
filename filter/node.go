package filter

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/logging"
	"github.com/rushteam/adkit/pkg/utils"
)

// FilterNode 按顺序执行 Filters，第一个命中的过滤器移除该 banner。
// 过滤器出错视为未命中，banner 继续交给下一个过滤器。
type FilterNode struct {
	Filters []Filter
	Logger  *zap.SugaredLogger
}

func (n *FilterNode) Name() string        { return "filter.node" }
func (n *FilterNode) Kind() pipeline.Kind { return pipeline.KindFilter }

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}
	log := logging.For(ctx, n.Logger)

	kept := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		if by := n.match(ctx, log, rctx, it); by != "" {
			it.PutLabel("filtered", utils.Label{Value: "true", Source: by})
			continue
		}
		kept = append(kept, it)
	}

	if removed := len(items) - len(kept); removed > 0 {
		log.Debugw("banners filtered", "filtered", removed, "kept", len(kept))
	}
	return kept, nil
}

// match 返回命中的过滤器名，未命中返回空串
func (n *FilterNode) match(ctx context.Context, log *zap.SugaredLogger, rctx *core.RecommendContext, it *core.Item) string {
	for _, f := range n.Filters {
		hit, err := f.ShouldFilter(ctx, rctx, it)
		if err != nil {
			log.Debugw("filter error, keeping banner", "filter", f.Name(), "banner_id", it.ID, "error", err)
			continue
		}
		if hit {
			return f.Name()
		}
	}
	return ""
}
