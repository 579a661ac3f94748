// Package feature 构造排序特征。
//
// 特征顺序固定，模型按 Names 的顺序接收特征：
//
//	similarity, price, title_len, description_len, price_weighted_similarity
package feature

import (
	"unicode/utf8"

	"github.com/rushteam/adkit/core"
)

// 价格加权相似度的固定权重
const (
	SimilarityWeight = 0.45
	PriceWeight      = 0.55
)

// 特征名
const (
	NameSimilarity              = "similarity"
	NamePrice                   = "price"
	NameTitleLen                = "title_len"
	NameDescriptionLen          = "description_len"
	NamePriceWeightedSimilarity = "price_weighted_similarity"
)

// Names 是模型输入的特征顺序
var Names = []string{
	NameSimilarity,
	NamePrice,
	NameTitleLen,
	NameDescriptionLen,
	NamePriceWeightedSimilarity,
}

// Vector 是单个候选的特征，只属于当前请求。
type Vector struct {
	Similarity              float64
	Price                   float64
	TitleLen                float64
	DescriptionLen          float64
	PriceWeightedSimilarity float64
}

// Build 由相似度与 banner 构造特征；标题与描述长度按字符（rune）计。
func Build(similarity float64, b core.Banner) Vector {
	price := b.Price.InexactFloat64()
	return Vector{
		Similarity:              similarity,
		Price:                   price,
		TitleLen:                float64(utf8.RuneCountInString(b.Title)),
		DescriptionLen:          float64(utf8.RuneCountInString(b.Description)),
		PriceWeightedSimilarity: PriceWeighted(similarity, price),
	}
}

// PriceWeighted = 0.45 × similarity + 0.55 × price
func PriceWeighted(similarity, price float64) float64 {
	return SimilarityWeight*similarity + PriceWeight*price
}

// Slice 按 Names 顺序输出
func (v Vector) Slice() []float64 {
	return []float64{v.Similarity, v.Price, v.TitleLen, v.DescriptionLen, v.PriceWeightedSimilarity}
}

// Map 以特征名为 key 输出，写入 Item.Features 用于 explain
func (v Vector) Map() map[string]float64 {
	return map[string]float64{
		NameSimilarity:              v.Similarity,
		NamePrice:                   v.Price,
		NameTitleLen:                v.TitleLen,
		NameDescriptionLen:          v.DescriptionLen,
		NamePriceWeightedSimilarity: v.PriceWeightedSimilarity,
	}
}

// FromMap 从 Item.Features 还原 Vector，缺失的特征为 0
func FromMap(m map[string]float64) Vector {
	return Vector{
		Similarity:              m[NameSimilarity],
		Price:                   m[NamePrice],
		TitleLen:                m[NameTitleLen],
		DescriptionLen:          m[NameDescriptionLen],
		PriceWeightedSimilarity: m[NamePriceWeightedSimilarity],
	}
}
