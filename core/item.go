package core

import "github.com/rushteam/adkit/pkg/utils"

// Item 是推荐链路中的统一承载结构：候选 banner、相似度、特征、分数、标签。
// Labels 用于解释与观测；Score 用于选择决策。
//
// Item 只属于当前请求，请求结束即丢弃。
type Item struct {
	ID         int64
	Banner     Banner
	Similarity float64
	Score      float64
	Features   map[string]float64
	Labels     map[string]utils.Label
}

func NewItem(b Banner) *Item {
	return &Item{
		ID:       b.ID,
		Banner:   b,
		Features: make(map[string]float64),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}
