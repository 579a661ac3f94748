package recall

import (
	"context"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/utils"
)

// CandidateNode 是链路的第一个 Node：把 rctx.CandidateIDs 解析为 Item。
//
// 输出顺序与请求中的首次出现顺序一致；没有任何候选解析成功时返回 ErrNoCandidates。
type CandidateNode struct {
	Assembler *Assembler
}

func (n *CandidateNode) Name() string        { return "recall.candidates" }
func (n *CandidateNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *CandidateNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	ids := DedupeIDs(rctx.CandidateIDs)
	banners, err := n.Assembler.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]*core.Item, 0, len(banners))
	for _, id := range ids {
		b, ok := banners[id]
		if !ok {
			continue
		}
		it := core.NewItem(b)
		it.PutLabel("recall_source", utils.Label{Value: "candidates", Source: "recall"})
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil, ErrNoCandidates
	}
	return out, nil
}
