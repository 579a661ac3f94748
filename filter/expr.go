package filter

import (
	"context"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pkg/dsl"
)

// ExprFilter 使用 CEL 表达式描述投放条件：表达式为 true 的 banner 保留。
//
//	banner.price >= 0.5 && banner.link != ""
type ExprFilter struct {
	program *dsl.Program
}

// NewExprFilter 编译表达式
func NewExprFilter(expr string) (*ExprFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &ExprFilter{program: p}, nil
}

func (f *ExprFilter) Name() string { return "filter.expr" }

func (f *ExprFilter) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	ok, err := f.program.Match(item, rctx)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
