package rerank

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/utils"
)

// Rand 是选择时使用的随机源，测试中可注入固定序列。
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// ToleranceSelector 在“接近最优”的候选中随机选择，避免近似同分时总是同一个 banner 胜出。
//
// 合格集合：score >= best - τ·|best|。best 非负时等价于 best·(1-τ)，
// best 为负时区间方向仍然正确。合格集合为空时退化为最高分。
type ToleranceSelector struct {
	Tolerance float64
	Rand      Rand
}

// NewToleranceSelector 创建选择器，r 为 nil 时使用全局随机源。
func NewToleranceSelector(tolerance float64, r Rand) *ToleranceSelector {
	if r == nil {
		r = globalRand{}
	}
	return &ToleranceSelector{Tolerance: tolerance, Rand: r}
}

// Qualifying 返回合格候选的下标（升序）。
func (s *ToleranceSelector) Qualifying(scores []float64) []int {
	if len(scores) == 0 {
		return nil
	}
	best, bestIdx := scores[0], 0
	for i, v := range scores[1:] {
		if v > best {
			best, bestIdx = v, i+1
		}
	}

	threshold := best - s.Tolerance*math.Abs(best)
	out := make([]int, 0, len(scores))
	for i, v := range scores {
		if v >= threshold {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		return []int{bestIdx}
	}
	return out
}

// Select 在合格集合中均匀随机选择一个下标。
func (s *ToleranceSelector) Select(scores []float64) (int, error) {
	if len(scores) == 0 {
		return 0, core.NewDomainError(core.ModuleRerank, core.ErrorCodeInvalidInput, "rerank: no scores to select from")
	}
	q := s.Qualifying(scores)
	if len(q) == 1 {
		return q[0], nil
	}
	r := s.Rand
	if r == nil {
		r = globalRand{}
	}
	return q[r.IntN(len(q))], nil
}

// SelectNode 是链路的最后一个 Node，输出只包含胜出的一个 Item。
type SelectNode struct {
	Selector *ToleranceSelector
}

func (n *SelectNode) Name() string        { return "rerank.tolerance" }
func (n *SelectNode) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *SelectNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	scores := make([]float64, len(items))
	for i, it := range items {
		scores[i] = it.Score
	}
	q := n.Selector.Qualifying(scores)
	idx, err := n.Selector.Select(scores)
	if err != nil {
		return nil, err
	}

	winner := items[idx]
	winner.PutLabel("selected_from", utils.Label{Value: strconv.Itoa(len(q)), Source: "rerank"})
	if rctx != nil {
		rctx.PutParam("qualifying", len(q))
	}
	return []*core.Item{winner}, nil
}
