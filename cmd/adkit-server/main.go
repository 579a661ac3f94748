// adkit-server 提供 banner 推荐 HTTP 服务。
//
// 配置见 config 包：默认值 -> config.yaml（或 CONFIG_PATH）-> ADKIT_ 环境变量。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/rushteam/adkit/config"
	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/embedding"
	"github.com/rushteam/adkit/filter"
	"github.com/rushteam/adkit/model"
	"github.com/rushteam/adkit/pkg/logging"
	"github.com/rushteam/adkit/rank"
	"github.com/rushteam/adkit/recall"
	"github.com/rushteam/adkit/recommend"
	"github.com/rushteam/adkit/repository"
	"github.com/rushteam/adkit/store"
	"github.com/rushteam/adkit/transport/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorw("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	cache, err := newCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	repo, err := repository.Open(ctx, repository.Options{
		DSN:             cfg.Postgres.DSN,
		MaxConns:        cfg.Postgres.MaxConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}
	provider := embedding.NewCachedProvider(embedder, cache, cfg.Cache.TTL, logger)
	provider.BatchSize = cfg.Embedding.BatchSize

	rankModel, err := newRankModel(cfg.Ranker)
	if err != nil {
		return err
	}
	filters, err := newFilters(cfg.Recommend)
	if err != nil {
		return err
	}

	svc, err := recommend.New(recommend.Options{
		Platforms:  repo,
		Assembler:  recall.NewAssembler(cache, repo, cfg.Cache.TTL, logger),
		Embeddings: provider,
		Scorer:     rank.NewScorer(rankModel, logger),
		Filters:    filters,
		Settings:   cfg.RecommendSettings(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: httpapi.NewRouter(svc, httpapi.Options{
			RateLimit: cfg.Server.RateLimit,
			Health:    repo.Ping,
			Logger:    logger,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("http server listening", "addr", cfg.Server.Addr,
			"cache", cache.Name(), "embedder", embedder.Name(), "ranker", cfg.Ranker.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Infow("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newCache 配置了 redis.addr 时使用 Redis，否则使用进程内缓存；两者都包一层熔断。
func newCache(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (core.Store, error) {
	var inner core.Store
	if cfg.Redis.Addr == "" {
		logger.Infow("redis.addr not set, using in-process cache")
		inner = store.NewMemoryStore()
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		rs, err := store.NewRedisStore(pingCtx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		inner = rs
	}

	bc := store.DefaultBreakerConfig()
	bc.FailureThreshold = cfg.Cache.BreakerFailures
	bc.Timeout = cfg.Cache.BreakerTimeout
	bc.OnStateChange = func(name string, from, to gobreaker.State) {
		logger.Warnw("cache breaker state changed", "name", name, "from", from.String(), "to", to.String())
	}
	return store.NewBreakerStore(inner, bc), nil
}

func newEmbedder(cfg config.EmbeddingConfig) (core.Embedder, error) {
	switch cfg.Provider {
	case "hash":
		return embedding.NewHashEmbedder(cfg.Dimension), nil
	case "http":
		return embedding.NewHTTPEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// newRankModel 返回 nil 表示使用启发式打分
func newRankModel(cfg config.RankerConfig) (model.RankModel, error) {
	switch cfg.Type {
	case "heuristic":
		return nil, nil
	case "lr":
		m, err := model.LoadLRModel(cfg.ModelPath)
		if err != nil {
			return nil, fmt.Errorf("load lr model: %w", err)
		}
		return m, nil
	case "rpc":
		return model.NewRPCModel("rpc", cfg.Endpoint, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ranker type %q", cfg.Type)
	}
}

func newFilters(cfg config.RecommendConfig) ([]filter.Filter, error) {
	var filters []filter.Filter
	if len(cfg.BlockedBanners) > 0 {
		filters = append(filters, filter.NewBlacklistFilter(cfg.BlockedBanners))
	}
	if cfg.Filter != "" {
		f, err := filter.NewExprFilter(cfg.Filter)
		if err != nil {
			return nil, fmt.Errorf("compile recommend.filter: %w", err)
		}
		filters = append(filters, f)
	}
	return filters, nil
}
