package embedding

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/store"
)

func norm(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return math.Sqrt(s)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func banner(id int64, title, desc string) core.Banner {
	return core.Banner{ID: id, Title: title, Description: desc, Price: decimal.NewFromInt(1)}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(32)
	vecs, err := e.Embed(context.Background(), []string{"Cute hamsters", "cute hamsters", "car insurance", ""})
	require.NoError(t, err)
	require.Len(t, vecs, 4)

	assert.Equal(t, vecs[0], vecs[1], "embedding must be deterministic and case-insensitive")
	assert.InDelta(t, 1.0, norm(vecs[0]), 1e-9)
	assert.InDelta(t, 1.0, dot(vecs[0], vecs[1]), 1e-9)
	assert.Less(t, dot(vecs[0], vecs[2]), 0.999)
	assert.Equal(t, 0.0, norm(vecs[3]), "empty text yields the zero vector")
}

func TestQueryText(t *testing.T) {
	tests := []struct {
		name     string
		slot     string
		platform core.Platform
		want     string
	}{
		{
			name:     "all fields",
			slot:     "hamsters",
			platform: core.Platform{Username: "zoo", Description: "pets"},
			want:     "hamsters hamsters hamsters pets pets zoo",
		},
		{
			name:     "empty description",
			slot:     "cars",
			platform: core.Platform{Username: "auto"},
			want:     "cars cars cars auto",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryText(tt.slot, tt.platform))
		})
	}
}

func TestHTTPEmbedder(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		var req embeddingRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"a", "b"}, req.Input)
		assert.Equal(t, "m", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,2]},{"index":0,"embedding":[3,4]}]}`))
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, "secret", "m", 2)
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, vecs[0], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1}, vecs[1], 1e-9)
}

func TestHTTPEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{name: "status", body: `{}`, code: http.StatusServiceUnavailable},
		{name: "count mismatch", body: `{"data":[{"index":0,"embedding":[1,0]}]}`, code: http.StatusOK},
		{name: "dimension mismatch", body: `{"data":[{"index":0,"embedding":[1,0,0]},{"index":1,"embedding":[1,0,0]}]}`, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPEmbedder(srv.URL, "", "m", 2).Embed(context.Background(), []string{"a", "b"})
			assert.Error(t, err)
		})
	}
}

// countingEmbedder 统计每个文本被计算的次数
type countingEmbedder struct {
	*HashEmbedder
	mu    sync.Mutex
	calls int
	texts map[string]int
	err   error
}

func newCounting(dim int) *countingEmbedder {
	return &countingEmbedder{HashEmbedder: NewHashEmbedder(dim), texts: make(map[string]int)}
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	c.mu.Lock()
	c.calls++
	for _, t := range texts {
		c.texts[t]++
	}
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.HashEmbedder.Embed(ctx, texts)
}

func TestCachedProvider_BannerEmbeddings(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryStore()
	defer cache.Close()
	emb := newCounting(16)
	p := NewCachedProvider(emb, cache, 0, nil)

	banners := []core.Banner{banner(1, "hamster", "wheel"), banner(2, "car", "fast"), banner(1, "hamster", "wheel")}
	got, err := p.BannerEmbeddings(ctx, banners)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, emb.calls, "misses are computed in one batch")
	assert.Equal(t, 1, emb.texts["hamster wheel"], "duplicate ids are computed once")

	_, err = cache.Get(ctx, core.EmbeddingCacheKey(1))
	require.NoError(t, err, "computed embeddings are written back")

	again, err := p.BannerEmbeddings(ctx, banners[:2])
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls, "warm cache needs no computation")
	assert.InDeltaSlice(t, got[2], again[2], 1e-12)
}

func TestCachedProvider_Chunks(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	emb := newCounting(8)
	p := NewCachedProvider(emb, cache, 0, nil)
	p.BatchSize = 2

	banners := []core.Banner{banner(1, "a", ""), banner(2, "b", ""), banner(3, "c", ""), banner(4, "d", ""), banner(5, "e", "")}
	got, err := p.BannerEmbeddings(context.Background(), banners)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 3, emb.calls)
}

func TestCachedProvider_FailureDegrades(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	emb := newCounting(8)
	emb.err = errors.New("model offline")
	p := NewCachedProvider(emb, cache, 0, nil)

	got, err := p.BannerEmbeddings(context.Background(), []core.Banner{banner(1, "a", "b")})
	require.NoError(t, err, "embedder failures degrade instead of failing")
	assert.Empty(t, got)
	assert.Equal(t, 0, cache.Len(), "failed embeddings are not cached")
}

func TestCachedProvider_IgnoresCorruptEntries(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryStore()
	defer cache.Close()
	require.NoError(t, cache.Set(ctx, core.EmbeddingCacheKey(1), []byte("not json"), 0))
	require.NoError(t, cache.Set(ctx, core.EmbeddingCacheKey(2), []byte("[1,0]"), 0)) // 维度不符

	emb := newCounting(8)
	p := NewCachedProvider(emb, cache, 0, nil)
	got, err := p.BannerEmbeddings(ctx, []core.Banner{banner(1, "a", ""), banner(2, "b", "")})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, got[2], 8)
	assert.Equal(t, 1, emb.calls)
}

func TestCachedProvider_QueryNotCached(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	p := NewCachedProvider(NewHashEmbedder(8), cache, 0, nil)

	vec, err := p.QueryEmbedding(context.Background(), "hamsters hamsters")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, norm(vec), 1e-9)
	assert.Equal(t, 0, cache.Len())
}

// slowEmbedder 每次计算固定耗时 delay
type slowEmbedder struct {
	*HashEmbedder
	delay time.Duration
}

func (e slowEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	select {
	case <-time.After(e.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e.HashEmbedder.Embed(ctx, texts)
}

func TestCachedProvider_SharedComputationOutlivesCaller(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	p := NewCachedProvider(slowEmbedder{HashEmbedder: NewHashEmbedder(8), delay: 100 * time.Millisecond}, cache, 0, nil)
	banners := []core.Banner{banner(1, "a", ""), banner(2, "b", "")}

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var shortErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, shortErr = p.BannerEmbeddings(shortCtx, banners)
	}()
	time.Sleep(5 * time.Millisecond) // 让第一个调用方先进入共享计算

	got, err := p.BannerEmbeddings(context.Background(), banners)
	wg.Wait()

	require.NoError(t, err)
	assert.Len(t, got, 2, "a caller with a live ctx gets vectors even if the first caller timed out")
	assert.ErrorIs(t, shortErr, context.DeadlineExceeded)
}

func TestCachedProvider_StopsWaitingOnCallerCancel(t *testing.T) {
	cache := store.NewMemoryStore()
	defer cache.Close()
	p := NewCachedProvider(slowEmbedder{HashEmbedder: NewHashEmbedder(8), delay: time.Second}, cache, 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := p.BannerEmbeddings(ctx, []core.Banner{banner(1, "a", "")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
