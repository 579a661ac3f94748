package embedding

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/adkit/core"
)

// HTTPEmbedder 基于 OpenAI 兼容接口的 Embedder 实现。
// 调用 POST {BaseURL}/v1/embeddings，请求格式：
//
//	{ "input": [...], "model": "text-embedding-3-small" }
//
// 返回向量会重新归一化为单位长度。
type HTTPEmbedder struct {
	BaseURL string
	APIKey  string
	Model   string
	Dim     int
	Client  *http.Client
}

// NewHTTPEmbedder 创建 HTTPEmbedder
func NewHTTPEmbedder(baseURL, apiKey, model string, dim int) *HTTPEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &HTTPEmbedder{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Dim:     dim,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func (e *HTTPEmbedder) Name() string   { return "http:" + e.Model }
func (e *HTTPEmbedder) Dimension() int { return e.Dim }

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	data, err := json.Marshal(embeddingRequest{Input: texts, Model: e.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/v1/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeUnavailable,
			fmt.Sprintf("embeddings API error: %s", resp.Status))
	}

	var apiResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response mismatch: got %d vectors, want %d", len(apiResp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for i, d := range apiResp.Data {
		pos := d.Index
		if pos < 0 || pos >= len(texts) || out[pos] != nil {
			pos = i
		}
		if e.Dim > 0 && len(d.Embedding) != e.Dim {
			return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeInvalidInput,
				fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Dim, len(d.Embedding)))
		}
		out[pos] = Normalize(d.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing vector for input %d", i)
		}
	}
	return out, nil
}

var (
	_ core.Embedder = (*HTTPEmbedder)(nil)
	_ core.Embedder = (*HashEmbedder)(nil)
)
