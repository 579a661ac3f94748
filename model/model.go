package model

import "context"

// RankModel 是排序模型的最小抽象：输入按固定特征顺序排列的实例，输出一一对应的分数。
// 具体实现可以是本地模型（LR）或远程 RPC（GBDT/XGBoost/TF Serving 等）。
type RankModel interface {
	Name() string

	// PredictBatch 批量打分，返回值与 instances 等长、同序
	PredictBatch(ctx context.Context, instances [][]float64) ([]float64, error)
}
