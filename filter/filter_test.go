package filter

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/adkit/core"
)

func item(id int64, price string, link string) *core.Item {
	return core.NewItem(core.Banner{ID: id, Title: "t", Link: link, Price: decimal.RequireFromString(price)})
}

func ids(items []*core.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestFilterNode(t *testing.T) {
	expr, err := NewExprFilter(`banner.price >= 1.0`)
	require.NoError(t, err)

	tests := []struct {
		name    string
		filters []Filter
		want    []int64
	}{
		{name: "no filters", filters: nil, want: []int64{1, 2, 3}},
		{name: "blacklist", filters: []Filter{NewBlacklistFilter([]int64{2})}, want: []int64{1, 3}},
		{name: "expr", filters: []Filter{expr}, want: []int64{1, 3}},
		{name: "combined", filters: []Filter{NewBlacklistFilter([]int64{3}), expr}, want: []int64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := []*core.Item{item(1, "2", ""), item(2, "0.5", ""), item(3, "1", "https://x")}
			out, err := (&FilterNode{Filters: tt.filters}).Process(context.Background(), &core.RecommendContext{}, in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestFilterNode_ErrorKeepsBanner(t *testing.T) {
	// rctx.username 不存在时求值报错
	f, err := NewExprFilter(`rctx.username == "zoo"`)
	require.NoError(t, err)

	out, err := (&FilterNode{Filters: []Filter{f}}).Process(context.Background(), &core.RecommendContext{}, []*core.Item{item(1, "1", "")})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(out))
}

func TestNewExprFilter_Invalid(t *testing.T) {
	_, err := NewExprFilter(`banner.price >>`)
	assert.Error(t, err)
}
