package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/rushteam/adkit/core"
)

// MemoryVectorIndex 是内存实现的内积近邻索引。
//
// 特点：
//   - 每个请求构建一个，只属于当前请求，不需要加锁
//   - 暴力计算内积，候选集上限由调用方的 banner 列表决定
//   - 向量应为单位长度，此时内积等价于余弦相似度
type MemoryVectorIndex struct {
	dimension int
	ids       []int64
	vectors   [][]float64
	seen      map[int64]int // banner ID -> 下标
}

// NewMemoryVectorIndex 创建指定维度的索引
func NewMemoryVectorIndex(dimension int) *MemoryVectorIndex {
	return &MemoryVectorIndex{
		dimension: dimension,
		seen:      make(map[int64]int),
	}
}

// Add 写入向量；同一 ID 重复写入时覆盖旧值。
func (m *MemoryVectorIndex) Add(id int64, vector []float64) error {
	if len(vector) != m.dimension {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			fmt.Sprintf("vector dimension mismatch for %d: want %d, got %d", id, m.dimension, len(vector)))
	}
	if i, ok := m.seen[id]; ok {
		m.vectors[i] = vector
		return nil
	}
	m.seen[id] = len(m.ids)
	m.ids = append(m.ids, id)
	m.vectors = append(m.vectors, vector)
	return nil
}

func (m *MemoryVectorIndex) Len() int { return len(m.ids) }

// Search 返回内积最大的 topK 个结果（降序；分数相同按写入顺序）。
func (m *MemoryVectorIndex) Search(ctx context.Context, query []float64, topK int) ([]core.VectorSearchItem, error) {
	if len(query) != m.dimension {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput,
			fmt.Sprintf("query dimension mismatch: want %d, got %d", m.dimension, len(query)))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 || topK > len(m.ids) {
		topK = len(m.ids)
	}

	items := make([]core.VectorSearchItem, len(m.ids))
	for i, id := range m.ids {
		items[i] = core.VectorSearchItem{ID: id, Score: innerProduct(query, m.vectors[i])}
	}

	// 按分数降序排序
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	return items[:topK], nil
}

// innerProduct 计算内积
func innerProduct(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

var _ core.VectorIndex = (*MemoryVectorIndex)(nil)
