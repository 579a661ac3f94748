package pipeline

import (
	"context"
	"time"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/metrics"
)

// Pipeline 按顺序执行 Nodes，上一个 Node 的输出是下一个的输入。
// 进入每个 Node 前检查 ctx，任一 Node 出错立即返回该错误。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := node.Process(ctx, rctx, items)
		metrics.NodeDuration.WithLabelValues(node.Name(), string(node.Kind())).Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		items = out
	}
	return items, nil
}
