package feature

import (
	"context"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pipeline"
)

// Node 为每个 Item 计算特征并写入 Item.Features，不改变顺序。
type Node struct{}

func (Node) Name() string        { return "feature.build" }
func (Node) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (Node) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	for _, it := range items {
		if it == nil {
			continue
		}
		for k, v := range Build(it.Similarity, it.Banner).Map() {
			it.Features[k] = v
		}
	}
	return items, nil
}
