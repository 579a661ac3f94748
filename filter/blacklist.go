package filter

import (
	"context"

	"github.com/rushteam/adkit/core"
)

// BlacklistFilter 过滤掉运营屏蔽的 banner。
type BlacklistFilter struct {
	ids map[int64]struct{}
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(bannerIDs []int64) *BlacklistFilter {
	ids := make(map[int64]struct{}, len(bannerIDs))
	for _, id := range bannerIDs {
		ids[id] = struct{}{}
	}
	return &BlacklistFilter{ids: ids}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	_ context.Context,
	_ *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	_, blocked := f.ids[item.ID]
	return blocked, nil
}
