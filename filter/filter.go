package filter

import (
	"context"

	"github.com/rushteam/adkit/core"
)

// Filter 判断候选 banner 是否不能投放：返回 true 时 FilterNode 把它移出候选。
// 返回的 error 只会被记录，不会中止推荐。
type Filter interface {
	Name() string

	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
