package model

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/adkit/feature"
)

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func TestLoadLRModel(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"lr.json": `{"bias": -1, "weights": {"similarity": 2, "price_weighted_similarity": 1}}`,
		"lr.yaml": "bias: -1\nweights:\n  similarity: 2\n  price_weighted_similarity: 1\n",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			m, err := LoadLRModel(path)
			require.NoError(t, err)
			assert.Equal(t, "lr", m.Name())

			x := feature.Vector{Similarity: 0.5, Price: 3, TitleLen: 10, PriceWeightedSimilarity: 0.2}.Slice()
			scores, err := m.PredictBatch(context.Background(), [][]float64{x})
			require.NoError(t, err)
			assert.InDelta(t, sigmoid(-1+2*0.5+0.2), scores[0], 1e-12)
		})
	}
}

func TestNewLRModel_UnknownFeature(t *testing.T) {
	_, err := NewLRModel(0, map[string]float64{"ctr": 1})
	assert.Error(t, err)
}

func TestLRModel_WrongWidth(t *testing.T) {
	m, err := NewLRModel(0, nil)
	require.NoError(t, err)
	_, err = m.PredictBatch(context.Background(), [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestRPCModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, feature.Names, req.FeatureNames)
		scores := make([]float64, len(req.Instances))
		for i, x := range req.Instances {
			scores[i] = x[0] * 10
		}
		_ = json.NewEncoder(w).Encode(rpcResponse{Scores: scores})
	}))
	defer srv.Close()

	m := NewRPCModel("xgb", srv.URL, time.Second)
	scores, err := m.PredictBatch(context.Background(), [][]float64{{0.1, 0, 0, 0, 0}, {0.2, 0, 0, 0, 0}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2}, scores, 1e-12)
	assert.Equal(t, "xgb", m.Name())
}

func TestRPCModel_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			},
		},
		{
			name: "count mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"scores":[1]}`))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewRPCModel("", srv.URL, time.Second).PredictBatch(context.Background(), [][]float64{{1}, {2}})
			assert.Error(t, err)
		})
	}
}
