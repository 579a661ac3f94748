package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("ADKIT_POSTGRES_DSN", "postgres://localhost/adkit")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Postgres.MaxConns)
	assert.Equal(t, 3*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, time.Second, cfg.Recommend.Timeout)
	assert.Equal(t, 20, cfg.Recommend.TopK)
	assert.InDelta(t, 0.10, cfg.Recommend.Tolerance, 1e-9)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
	assert.Equal(t, "heuristic", cfg.Ranker.Type)
	assert.Empty(t, cfg.Redis.Addr)

	settings := cfg.RecommendSettings()
	assert.Equal(t, 20, settings.DefaultTopK())
	assert.Equal(t, 3*time.Minute, settings.DefaultCacheTTL())
	assert.Equal(t, time.Second, settings.DefaultTimeout())
}

func TestLoadFile_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
postgres:
  dsn: postgres://file/adkit
  max_conns: 7
recommend:
  timeout: 1500ms
  top_k: 10
  filter: 'banner.price >= 1.0'
redis:
  addr: localhost:6379
`)
	t.Setenv("ADKIT_POSTGRES_MAX_CONNS", "9")
	t.Setenv("ADKIT_RECOMMEND_BLOCKED_BANNERS", "1, 2,3")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://file/adkit", cfg.Postgres.DSN)
	assert.Equal(t, 9, cfg.Postgres.MaxConns, "环境变量优先于配置文件")
	assert.Equal(t, 1500*time.Millisecond, cfg.Recommend.Timeout)
	assert.Equal(t, 10, cfg.Recommend.TopK)
	assert.Equal(t, "banner.price >= 1.0", cfg.Recommend.Filter)
	assert.Equal(t, []int64{1, 2, 3}, cfg.Recommend.BlockedBanners)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "missing dsn", yaml: "log:\n  level: info\n"},
		{
			name: "unknown embedding provider",
			yaml: "postgres:\n  dsn: x\nembedding:\n  provider: magic\n",
		},
		{
			name: "http embedding without base_url",
			yaml: "postgres:\n  dsn: x\nembedding:\n  provider: http\n",
		},
		{
			name: "lr ranker without model_path",
			yaml: "postgres:\n  dsn: x\nranker:\n  type: lr\n",
		},
		{
			name: "tolerance out of range",
			yaml: "postgres:\n  dsn: x\nrecommend:\n  tolerance: 1.5\n",
		},
		{
			name: "bad blocked banner id",
			yaml: "postgres:\n  dsn: x\n",
			env:  map[string]string{"ADKIT_RECOMMEND_BLOCKED_BANNERS": "1,abc"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFile(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"ADKIT_REDIS_ADDR":             "redis.addr",
		"ADKIT_POSTGRES_MAX_CONNS":     "postgres.max_conns",
		"ADKIT_CACHE_BREAKER_FAILURES": "cache.breaker_failures",
		"ADKIT_DEBUG":                  "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envTransformFunc(in), in)
	}
}
