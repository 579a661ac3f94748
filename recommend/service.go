// Package recommend 对外提供单次 banner 推荐。
//
// 一次 Recommend 调用依次经过：
//
//	校验候选列表 -> 校验请求方 -> recall.candidates -> filter.node
//	-> recall.emb -> feature.build -> rank.scorer -> rerank.tolerance
//
// 整个调用运行在 pipeline.Bounded 的时延预算内，对外只暴露四种错误：
// INVALID_INPUT、PERMISSION_DENIED、NOT_FOUND、DEADLINE_EXCEEDED。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/feature"
	"github.com/rushteam/adkit/filter"
	"github.com/rushteam/adkit/metrics"
	"github.com/rushteam/adkit/pipeline"
	"github.com/rushteam/adkit/pkg/logging"
	"github.com/rushteam/adkit/rank"
	"github.com/rushteam/adkit/recall"
	"github.com/rushteam/adkit/rerank"
)

var (
	// ErrEmptyCandidates 候选列表为空
	ErrEmptyCandidates = core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "recommend: banner id list is empty")

	// ErrPermissionDenied 请求方不存在、已删除或不是 platform 角色
	ErrPermissionDenied = core.NewDomainError(core.ModuleRecommend, core.ErrorCodePermissionDenied, "recommend: requester is not an active platform")

	// ErrNoBanner 候选全部被过滤，没有可返回的 banner
	ErrNoBanner = core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNotFound, "recommend: no eligible banner")
)

// Options 是 Service 的依赖。Platforms、Assembler、Embeddings 必填，其余可选。
type Options struct {
	Platforms  core.PlatformRepository
	Assembler  *recall.Assembler
	Embeddings recall.EmbeddingSource

	// Scorer 为 nil 时使用 rank.HeuristicScorer
	Scorer rank.Scorer

	// Filters 在向量检索之前执行
	Filters []filter.Filter

	// Rand 为 nil 时使用全局随机源
	Rand rerank.Rand

	// Settings 为 nil 时使用 core.DefaultRecommendConfig
	Settings core.RecommendConfig

	Logger *zap.SugaredLogger
}

// Service 是推荐门面，并发安全；每次调用构造独立的 RecommendContext。
type Service struct {
	platforms core.PlatformRepository
	assembler *recall.Assembler
	pipeline  *pipeline.Pipeline
	executor  pipeline.Bounded
	logger    *zap.SugaredLogger
}

// New 按固定顺序组装节点链。
func New(opts Options) (*Service, error) {
	if opts.Platforms == nil || opts.Assembler == nil || opts.Embeddings == nil {
		return nil, fmt.Errorf("recommend: platforms, assembler and embeddings are required")
	}
	settings := opts.Settings
	if settings == nil {
		settings = &core.DefaultRecommendConfig{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	scorer := opts.Scorer
	if scorer == nil {
		scorer = rank.HeuristicScorer{}
	}

	nodes := []pipeline.Node{&recall.CandidateNode{Assembler: opts.Assembler}}
	if len(opts.Filters) > 0 {
		nodes = append(nodes, &filter.FilterNode{Filters: opts.Filters, Logger: logger})
	}
	nodes = append(nodes,
		&recall.ANNNode{Embeddings: opts.Embeddings, TopK: settings.DefaultTopK(), Logger: logger},
		feature.Node{},
		&rank.Node{Scorer: scorer},
		&rerank.SelectNode{Selector: rerank.NewToleranceSelector(settings.DefaultTolerance(), opts.Rand)},
	)

	return &Service{
		platforms: opts.Platforms,
		assembler: opts.Assembler,
		pipeline:  &pipeline.Pipeline{Nodes: nodes},
		executor:  pipeline.Bounded{Timeout: settings.DefaultTimeout()},
		logger:    logger,
	}, nil
}

// Nodes 返回节点链（只读，用于 explain）
func (s *Service) Nodes() []pipeline.Node {
	return s.pipeline.Nodes
}

// Recommend 从 candidateIDs 中为 platformID 在 slot 上选出一个 banner。
//
// 返回的 banner 一定属于 candidateIDs，且在当前缓存/仓储视图下有效。
func (s *Service) Recommend(ctx context.Context, platformID int64, slot string, candidateIDs []int64) (core.Banner, error) {
	start := time.Now()
	if logging.RequestID(ctx) == "" {
		ctx = logging.WithRequestID(ctx, logging.NewRequestID())
	}
	log := logging.For(ctx, s.logger)

	b, err := s.recommend(ctx, platformID, slot, candidateIDs)

	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = core.KindOf(err)
	}
	metrics.RecordRecommend(outcome, elapsed)

	switch {
	case err == nil:
		log.Infow("recommend", "platform_id", platformID, "slot", slot, "candidates", len(candidateIDs),
			"banner_id", b.ID, "duration", elapsed)
	case core.IsDeadlineExceeded(err):
		metrics.RecommendTimeoutsTotal.Inc()
		log.Warnw("recommend timed out", "platform_id", platformID, "slot", slot, "candidates", len(candidateIDs),
			"duration", elapsed, "error", err)
	default:
		log.Infow("recommend rejected", "platform_id", platformID, "slot", slot, "candidates", len(candidateIDs),
			"kind", outcome, "error", err)
	}
	return b, err
}

func (s *Service) recommend(ctx context.Context, platformID int64, slot string, candidateIDs []int64) (core.Banner, error) {
	if len(candidateIDs) == 0 {
		return core.Banner{}, ErrEmptyCandidates
	}

	var winner core.Banner
	err := s.executor.Run(ctx, func(ctx context.Context) error {
		platform, err := s.authorize(ctx, platformID)
		if err != nil {
			return err
		}

		rctx := &core.RecommendContext{
			RequestID:    logging.RequestID(ctx),
			PlatformID:   platformID,
			Slot:         slot,
			CandidateIDs: candidateIDs,
			Platform:     &platform,
		}
		items, err := s.pipeline.Run(ctx, rctx, nil)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNoBanner
		}
		winner = items[0].Banner
		return nil
	})
	if err != nil {
		return core.Banner{}, err
	}
	return winner, nil
}

// authorize 在访问任何 banner 缓存或仓储之前校验请求方。
func (s *Service) authorize(ctx context.Context, platformID int64) (core.Platform, error) {
	if platformID <= 0 {
		return core.Platform{}, fmt.Errorf("%w: invalid platform id %d", ErrPermissionDenied, platformID)
	}
	log := logging.For(ctx, s.logger)
	p, err := s.platforms.GetPlatform(ctx, platformID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Platform{}, ctxErr
		}
		// 查询失败也拒绝，与用户不存在分开记录
		if !errors.Is(err, core.ErrPlatformNotFound) {
			log.Warnw("platform lookup failed, denying request", "platform_id", platformID, "error", err)
		} else {
			log.Debugw("platform not found", "platform_id", platformID)
		}
		return core.Platform{}, fmt.Errorf("%w: platform %d: %v", ErrPermissionDenied, platformID, err)
	}
	if !p.CanRequest() {
		log.Debugw("user role cannot request banners", "platform_id", platformID, "role", p.Role)
		return core.Platform{}, fmt.Errorf("%w: user %d has role %s", ErrPermissionDenied, platformID, p.Role)
	}
	return p, nil
}

// Banner 通过缓存读取单个 banner，不存在时返回 NOT_FOUND。
func (s *Service) Banner(ctx context.Context, id int64) (core.Banner, error) {
	if id <= 0 {
		return core.Banner{}, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, fmt.Sprintf("recommend: invalid banner id %d", id))
	}
	var b core.Banner
	err := s.executor.Run(ctx, func(ctx context.Context) error {
		var err error
		b, err = s.assembler.Get(ctx, id)
		return err
	})
	if err != nil {
		return core.Banner{}, err
	}
	return b, nil
}

// Invalidate 删除 banner 记录与向量缓存，下一次读取会回源仓储。
func (s *Service) Invalidate(ctx context.Context, ids ...int64) error {
	return s.assembler.Invalidate(ctx, ids...)
}
