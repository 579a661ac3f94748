package core

import "github.com/rushteam/adkit/pkg/utils"

// RecommendContext 承载单次推荐请求的输入与解析出的请求方，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	RequestID  string
	PlatformID int64
	Slot       string // 广告位名称

	// CandidateIDs 调用方给出的候选 banner ID（有序，必须非空）
	CandidateIDs []int64

	// Platform 是校验通过的请求方，由 recommend.Service 在执行 Pipeline 前填充
	Platform *Platform

	// Labels 是请求级标签，用于观测与 explain
	// 例如：embedding_fallback、scorer
	Labels map[string]utils.Label

	// Params 请求级参数（可选），例如 query 向量等中间结果
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}

// PutParam 写入请求级参数。
func (rctx *RecommendContext) PutParam(key string, v any) {
	if rctx.Params == nil {
		rctx.Params = make(map[string]any)
	}
	rctx.Params[key] = v
}
