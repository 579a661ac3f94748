// Package httpapi 把 recommend.Service 暴露为 JSON over HTTP。
//
//	POST   /v1/recommend               {"platform_id":1,"slot_name":"x","banner_ids":[1,2]}
//	GET    /v1/banners/{id}
//	DELETE /v1/banners/{id}/cache
//	GET    /healthz
//	GET    /metrics
//
// 错误统一返回 {"kind","message"}，kind 为 core 中的错误代码。
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pkg/logging"
)

// RequestIDHeader 请求 ID 头，缺省时由服务端生成
const RequestIDHeader = "X-Request-ID"

const maxBodyBytes = 1 << 20

// Recommender 是 handler 依赖的推荐能力，recommend.Service 实现此接口。
type Recommender interface {
	Recommend(ctx context.Context, platformID int64, slot string, candidateIDs []int64) (core.Banner, error)
	Banner(ctx context.Context, id int64) (core.Banner, error)
	Invalidate(ctx context.Context, ids ...int64) error
}

// Options 配置路由
type Options struct {
	// RateLimit 每个客户端 IP 每秒请求数，0 表示不限流
	RateLimit int

	// Health 返回 nil 表示依赖可用；为 nil 时 /healthz 总是返回 200
	Health func(ctx context.Context) error

	Logger *zap.SugaredLogger
}

// RecommendRequest 是 POST /v1/recommend 的请求体
type RecommendRequest struct {
	PlatformID int64   `json:"platform_id"`
	SlotName   string  `json:"slot_name"`
	BannerIDs  []int64 `json:"banner_ids"`
}

// ErrorResponse 是错误响应体
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type handler struct {
	svc    Recommender
	health func(ctx context.Context) error
	logger *zap.SugaredLogger
}

// NewRouter 创建 chi 路由
func NewRouter(svc Recommender, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	h := &handler{svc: svc, health: opts.Health, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimit, time.Second))
		}
		r.Post("/recommend", h.recommend)
		r.Get("/banners/{id}", h.banner)
		r.Delete("/banners/{id}/cache", h.invalidate)
	})
	return r
}

// requestID 把 X-Request-ID（或新生成的 uuid）写入 ctx 和响应头
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (h *handler) recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		h.respondError(w, r, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "invalid request body: "+err.Error()))
		return
	}

	b, err := h.svc.Recommend(r.Context(), req.PlatformID, req.SlotName, req.BannerIDs)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *handler) banner(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bannerID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Banner(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (h *handler) invalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bannerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Invalidate(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logging.For(r.Context(), h.logger).Warnw("health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) bannerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, r, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput, "invalid banner id "+strconv.Quote(chi.URLParam(r, "id"))))
		return 0, false
	}
	return id, true
}

// StatusFor 把错误代码映射为 HTTP 状态码
func StatusFor(err error) int {
	switch core.KindOf(err) {
	case core.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	case core.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case core.ErrorCodeNotFound:
		return http.StatusNotFound
	case core.ErrorCodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	resp := ErrorResponse{Kind: core.KindOf(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		// 内部错误不向调用方暴露细节
		logging.For(r.Context(), h.logger).Errorw("internal error", "path", r.URL.Path, "error", err)
		resp.Message = "internal error"
	}
	respondJSON(w, status, resp)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
