package core

import "context"

// Embedder 把文本转换为固定维度、单位长度的向量。
//
// 对 Pipeline 而言 Embedder 是纯函数：相同文本得到相同向量。
// 实现：
//   - embedding.HTTPEmbedder（OpenAI 兼容接口）
//   - embedding.HashEmbedder（确定性特征哈希，测试/开发）
type Embedder interface {
	// Name 返回实现名称（用于日志/监控）
	Name() string

	// Dimension 返回向量维度
	Dimension() int

	// Embed 批量向量化，返回与 texts 一一对应的向量
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorIndex 是内积相似度的近邻索引。
//
// 召回场景下索引按请求临时构建：候选集很小且由调用方显式给出，
// 构建成本可以忽略，也不存在索引过期的问题。
type VectorIndex interface {
	// Add 写入一个向量，维度必须与索引一致
	Add(id int64, vector []float64) error

	// Search 返回与 query 内积最大的 topK 个结果，按分数降序
	Search(ctx context.Context, query []float64, topK int) ([]VectorSearchItem, error)

	// Len 返回索引中的向量数量
	Len() int
}

// VectorSearchItem 单个向量搜索结果项
type VectorSearchItem struct {
	// ID banner ID
	ID int64

	// Score 内积相似度
	Score float64
}
