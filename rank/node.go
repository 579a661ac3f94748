package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/feature"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/utils"
)

// ErrInvalidScores 表示 Scorer 的输出与候选不等长或含 NaN/Inf。
// 内置 Scorer 不会返回它，只有自定义实现违反约定时出现。
var ErrInvalidScores = core.NewDomainError(core.ModuleRank, core.ErrorCodeInternalError, "rank: scorer returned invalid scores")

// Node 是一个使用 Scorer 的排序 Node。
// - 读取 item.Features（由 feature.Node 写入）
// - 写入 labels：rank_model
// - 更新 item.Score 并按分数降序排序（分数相同保持原顺序）
type Node struct {
	Scorer Scorer
}

func (n *Node) Name() string        { return "rank.scorer" }
func (n *Node) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *Node) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	vectors := make([]feature.Vector, len(items))
	for i, it := range items {
		vectors[i] = feature.FromMap(it.Features)
	}
	scores, err := n.Scorer.Score(ctx, vectors)
	if err != nil {
		return nil, err
	}
	if err := checkScores(scores, len(items)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScores, n.Scorer.Name(), err)
	}

	for i, it := range items {
		it.Score = scores[i]
		it.PutLabel("rank_model", utils.Label{Value: n.Scorer.Name(), Source: "rank"})
	}
	if rctx != nil {
		rctx.PutParam("scorer", n.Scorer.Name())
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
	return items, nil
}
