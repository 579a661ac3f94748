package pipeline

import (
	"context"

	"github.com/rushteam/adkit/core"
)

// Kind 是 Node 所在的阶段，metrics.NodeDuration 按它分组。
type Kind string

const (
	KindRecall      Kind = "recall"      // 取候选、向量检索
	KindFilter      Kind = "filter"      // 黑名单、CEL 规则
	KindRank        Kind = "rank"        // 模型或启发式打分
	KindReRank      Kind = "rerank"      // 容差带内随机选中
	KindPostProcess Kind = "postprocess" // 组装特征
)

// Node 接收上一阶段的候选，返回交给下一阶段的候选。
// 可以缩短、重排或原样返回 items；返回 error 会中止整条链。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}
