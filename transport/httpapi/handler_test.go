package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/adkit/core"
	"github.com/rushteam/adkit/pkg/logging"
)

type fakeRecommender struct {
	err         error
	gotPlatform int64
	gotSlot     string
	gotIDs      []int64
	gotReqID    string
	invalidated []int64
}

func (f *fakeRecommender) Recommend(ctx context.Context, platformID int64, slot string, ids []int64) (core.Banner, error) {
	f.gotPlatform, f.gotSlot, f.gotIDs = platformID, slot, ids
	f.gotReqID = logging.RequestID(ctx)
	if f.err != nil {
		return core.Banner{}, f.err
	}
	return core.Banner{ID: ids[0], Title: "Hamster wheel", Price: decimal.RequireFromString("1.5")}, nil
}

func (f *fakeRecommender) Banner(_ context.Context, id int64) (core.Banner, error) {
	if f.err != nil {
		return core.Banner{}, f.err
	}
	return core.Banner{ID: id, Title: "Cat tree", Price: decimal.RequireFromString("2")}, nil
}

func (f *fakeRecommender) Invalidate(_ context.Context, ids ...int64) error {
	f.invalidated = append(f.invalidated, ids...)
	return f.err
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecommend_OK(t *testing.T) {
	svc := &fakeRecommender{}
	h := NewRouter(svc, Options{})

	rec := do(t, h, http.MethodPost, "/v1/recommend",
		`{"platform_id":7,"slot_name":"sidebar","banner_ids":[3,1]}`,
		map[string]string{RequestIDHeader: "req-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, int64(7), svc.gotPlatform)
	assert.Equal(t, "sidebar", svc.gotSlot)
	assert.Equal(t, []int64{3, 1}, svc.gotIDs)
	assert.Equal(t, "req-1", svc.gotReqID)

	var got core.Banner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(3), got.ID)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1.5")))
}

func TestRecommend_GeneratesRequestID(t *testing.T) {
	svc := &fakeRecommender{}
	rec := do(t, NewRouter(svc, Options{}), http.MethodPost, "/v1/recommend",
		`{"platform_id":7,"slot_name":"s","banner_ids":[1]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, rec.Header().Get(RequestIDHeader), svc.gotReqID)
}

func TestRecommend_ErrorMapping(t *testing.T) {
	tests := []struct {
		code   string
		status int
	}{
		{core.ErrorCodeInvalidInput, http.StatusBadRequest},
		{core.ErrorCodePermissionDenied, http.StatusForbidden},
		{core.ErrorCodeNotFound, http.StatusNotFound},
		{core.ErrorCodeDeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", core.NewDomainError(core.ModuleRecommend, tt.code, "boom"))
			rec := do(t, NewRouter(&fakeRecommender{err: err}, Options{}), http.MethodPost, "/v1/recommend",
				`{"platform_id":1,"slot_name":"s","banner_ids":[1]}`, nil)

			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Kind)
			assert.Contains(t, body.Message, "boom")
		})
	}
}

func TestRecommend_InternalErrorHidesDetails(t *testing.T) {
	rec := do(t, NewRouter(&fakeRecommender{err: errors.New("index dimension mismatch")}, Options{}),
		http.MethodPost, "/v1/recommend", `{"platform_id":1,"slot_name":"s","banner_ids":[1]}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, core.ErrorCodeInternalError, body.Kind)
	assert.Equal(t, "internal error", body.Message)
}

func TestRecommend_BadBody(t *testing.T) {
	rec := do(t, NewRouter(&fakeRecommender{}, Options{}), http.MethodPost, "/v1/recommend", `{"platform_id":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBannerRoutes(t *testing.T) {
	svc := &fakeRecommender{}
	h := NewRouter(svc, Options{})

	rec := do(t, h, http.MethodGet, "/v1/banners/4", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got core.Banner
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.ID)

	rec = do(t, h, http.MethodGet, "/v1/banners/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/v1/banners/4/cache", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{4}, svc.invalidated)
}

func TestHealthz(t *testing.T) {
	rec := do(t, NewRouter(&fakeRecommender{}, Options{}), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := Options{Health: func(context.Context) error { return errors.New("postgres down") }}
	rec = do(t, NewRouter(&fakeRecommender{}, down), http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(t, NewRouter(&fakeRecommender{}, Options{}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := NewRouter(&fakeRecommender{}, Options{RateLimit: 1})
	body := `{"platform_id":1,"slot_name":"s","banner_ids":[1]}`

	first := do(t, h, http.MethodPost, "/v1/recommend", body, nil)
	second := do(t, h, http.MethodPost, "/v1/recommend", body, nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
