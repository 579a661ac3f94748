// Package embedding 提供文本向量化的实现与 banner 向量缓存。
//
// 所有实现返回单位长度向量，内积即余弦相似度。
package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder 使用特征哈希把词映射到固定维度，确定性、无外部依赖，用于测试与开发环境。
//
// 共享词越多的文本内积越大，不具备语义能力。
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder 创建 HashEmbedder，dim <= 0 时默认 64。
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &HashEmbedder{Dim: dim}
}

func (e *HashEmbedder) Name() string   { return "hash" }
func (e *HashEmbedder) Dimension() int { return e.Dim }

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) []float64 {
	vec := make([]float64, e.Dim)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.Dim))
		// 最高位决定符号，降低哈希冲突带来的偏差
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}
	return Normalize(vec)
}

// tokenize 按非字母数字切分并转小写
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Normalize 返回单位长度的副本；零向量原样返回（与任何向量内积为 0）。
func Normalize(vec []float64) []float64 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float64, len(vec))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}
