// Package adkit 是一个 banner 推荐链路工具包。
//
// 设计要点：
// - Pipeline-first: 推荐逻辑通过 Node 串联（Candidates → Filter → ANN → Feature → Rank → Select）
// - Labels-first: labels 全链路透传，记录召回来源、打分模型与降级原因
// - 降级优先: 缓存、向量、模型失败时退化而不是报错，只有超时会中断
package adkit

import (
	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pipeline"
)

// 轻量 facade：便于用户直接 import "adkit" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind
type Bounded = pipeline.Bounded

type Banner = core.Banner
type Item = core.Item
type RecommendContext = core.RecommendContext

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
