package model

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/adkit/feature"
)

// RPCModel 是通过 HTTP 调用外部模型服务的 RankModel 实现。
// 支持 GBDT、XGBoost、TensorFlow Serving 等任何接受下述格式的服务。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 500 * time.Millisecond
	}
	if name == "" {
		name = "rpc"
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

type rpcRequest struct {
	FeatureNames []string    `json:"feature_names"`
	Instances    [][]float64 `json:"instances"`
}

type rpcResponse struct {
	Scores []float64 `json:"scores"`
}

// PredictBatch 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"feature_names": ["similarity", ...], "instances": [[0.8, 1.5, ...], ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.72, ...]}
func (m *RPCModel) PredictBatch(ctx context.Context, instances [][]float64) ([]float64, error) {
	if len(instances) == 0 {
		return []float64{}, nil
	}

	jsonData, err := json.Marshal(rpcRequest{FeatureNames: feature.Names, Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Scores) != len(instances) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(instances), len(result.Scores))
	}

	return result.Scores, nil
}
