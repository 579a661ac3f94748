package model

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/adkit/feature"
)

// LRModel 实现了逻辑回归 (Logistic Regression) 模型。
//
// 预测原理：
// 1. 线性加权求和: z = Bias + sum(Weight_i * Feature_i)
// 2. Sigmoid 变换: P = 1 / (1 + exp(-z))
//
// 输出 P 在 (0, 1) 之间。权重文件中未出现的特征权重为 0。
type LRModel struct {
	Bias    float64            // 偏置项 (Bias / Intercept)
	Weights map[string]float64 // 特征权重 (Weights / Coefficients)

	weights []float64 // 按 feature.Names 展开
}

type lrFile struct {
	Bias    float64            `json:"bias" yaml:"bias"`
	Weights map[string]float64 `json:"weights" yaml:"weights"`
}

// NewLRModel 创建 LR 模型，权重中出现未知特征名时报错。
func NewLRModel(bias float64, weights map[string]float64) (*LRModel, error) {
	known := make(map[string]int, len(feature.Names))
	for i, name := range feature.Names {
		known[name] = i
	}
	ordered := make([]float64, len(feature.Names))
	for name, w := range weights {
		i, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("lr model: unknown feature %q", name)
		}
		ordered[i] = w
	}
	return &LRModel{Bias: bias, Weights: weights, weights: ordered}, nil
}

// LoadLRModel 从 JSON 或 YAML（.yaml/.yml）文件加载权重：
//
//	{"bias": -1.2, "weights": {"similarity": 2.0, "price": 0.3}}
func LoadLRModel(path string) (*LRModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw lrFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("parse lr model %s: %w", path, err)
	}
	return NewLRModel(raw.Bias, raw.Weights)
}

func (m *LRModel) Name() string { return "lr" }

func (m *LRModel) PredictBatch(_ context.Context, instances [][]float64) ([]float64, error) {
	scores := make([]float64, len(instances))
	for i, x := range instances {
		if len(x) != len(m.weights) {
			return nil, fmt.Errorf("lr model: instance %d has %d features, want %d", i, len(x), len(m.weights))
		}
		z := m.Bias
		for j, v := range x {
			z += m.weights[j] * v
		}
		scores[i] = 1 / (1 + math.Exp(-z))
	}
	return scores, nil
}
