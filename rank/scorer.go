package rank

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/rushteam/adkit/feature"
	"github.com/rushteam/adkit/metrics"
	"github.com/rushteam/adkit/model"
	"github.com/rushteam/adkit/pkg/logging"
)

// Scorer 为每个候选输出一个分数，与输入等长、同序。
//
// 两种实现在启动时选定一次，调用时不再分支：
//   - ModelScorer：已加载排序模型
//   - HeuristicScorer：没有模型，分数 = 价格加权相似度
type Scorer interface {
	Name() string
	Score(ctx context.Context, vectors []feature.Vector) ([]float64, error)
}

// NewScorer 根据模型是否可用选择实现。
func NewScorer(m model.RankModel, logger *zap.SugaredLogger) Scorer {
	if m == nil {
		return HeuristicScorer{}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &ModelScorer{Model: m, Logger: logger}
}

// HeuristicScorer 直接使用价格加权相似度作为分数
type HeuristicScorer struct{}

func (HeuristicScorer) Name() string { return "heuristic" }

func (HeuristicScorer) Score(_ context.Context, vectors []feature.Vector) ([]float64, error) {
	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		scores[i] = v.PriceWeightedSimilarity
	}
	return scores, nil
}

// ModelScorer 按 feature.Names 顺序把特征交给模型。
// 模型报错、返回数量不符或出现 NaN/Inf 时，本次调用改用启发式分数，不向上返回错误。
type ModelScorer struct {
	Model    model.RankModel
	Fallback HeuristicScorer
	Logger   *zap.SugaredLogger
}

func (s *ModelScorer) Name() string { return s.Model.Name() }

func (s *ModelScorer) Score(ctx context.Context, vectors []feature.Vector) ([]float64, error) {
	instances := make([][]float64, len(vectors))
	for i, v := range vectors {
		instances[i] = v.Slice()
	}

	scores, err := s.Model.PredictBatch(ctx, instances)
	if err == nil {
		err = checkScores(scores, len(vectors))
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.ScorerFallbackTotal.Inc()
		logging.For(ctx, s.Logger).Warnw("rank model failed, using heuristic scores",
			"model", s.Model.Name(), "candidates", len(vectors), "error", err)
		return s.Fallback.Score(ctx, vectors)
	}
	return scores, nil
}

func checkScores(scores []float64, want int) error {
	if len(scores) != want {
		return fmt.Errorf("model returned %d scores for %d candidates", len(scores), want)
	}
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return fmt.Errorf("model returned invalid score %v at %d", s, i)
		}
	}
	return nil
}
