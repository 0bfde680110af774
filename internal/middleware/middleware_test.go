package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/turngame/internal/errors"
	"github.com/wfunc/turngame/internal/models"
	"github.com/wfunc/turngame/internal/monitor"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type stubAuth struct {
	users map[string]*models.User
	err   error
}

func (s *stubAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if token == "" {
		return nil, errors.New(errors.ErrInvalidParam, errors.ReasonInvalidContent)
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, errors.New(errors.ErrAuthentication)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zap.NewNop()))
	var seen string
	r.GET("/x", func(c *gin.Context) {
		seen = GetRequestID(c)
		assert.NotNil(t, GetLogger(c, nil))
		c.Status(http.StatusNoContent)
	})

	w := serve(r, http.MethodGet, "/x", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(HeaderRequestID))

	w = serve(r, http.MethodGet, "/x", http.Header{"X-Request-Id": {"abc"}})
	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}

func TestAccessLogSkipsHealthUnlessFailing(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	healthy := true

	r := gin.New()
	r.Use(RequestID(zap.New(core)), AccessLog(zap.New(core), "/health"))
	r.GET("/health", func(c *gin.Context) {
		if healthy {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusInternalServerError)
	})
	r.GET("/games", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/health", nil)
	assert.Equal(t, 0, logs.Len())

	serve(r, http.MethodGet, "/games", nil)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, int64(http.StatusOK), entry.ContextMap()["status"])
	assert.NotEmpty(t, entry.ContextMap()["req_id"])

	healthy = false
	serve(r, http.MethodGet, "/health", nil)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "request failed", logs.All()[1].Message)
}

func TestRecoveryRendersInternalError(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(zap.NewNop()), Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", http.Header{"X-Request-Id": {"r1"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "r1", resp["request_id"])
}

func TestRequireAuth(t *testing.T) {
	auth := &stubAuth{users: map[string]*models.User{"tok": {Username: "alice"}}}
	m := NewAuthMiddleware(auth, zap.NewNop())

	r := gin.New()
	r.GET("/auth/:authToken/me", m.RequireAuth(), func(c *gin.Context) {
		user, ok := GetUser(c)
		require.True(t, ok)
		c.String(http.StatusOK, user.Username)
	})

	w := serve(r, http.MethodGet, "/auth/tok/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", w.Body.String())

	w = serve(r, http.MethodGet, "/auth/nope/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	auth.err = errors.New(errors.ErrStorageUnavailable)
	w = serve(r, http.MethodGet, "/auth/tok/me", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRespondErrorRuleRejectionIsVerbatim(t *testing.T) {
	body := []byte(`{"code":"InvalidMove","message":"too big"}`)

	r := gin.New()
	r.GET("/move", func(c *gin.Context) {
		RespondError(c, errors.Rejection(http.StatusConflict, body))
	})
	r.GET("/missing", func(c *gin.Context) {
		RespondError(c, errors.New(errors.ErrNotFound))
	})

	r.GET("/move/text", func(c *gin.Context) {
		RespondError(c, errors.Rejection(http.StatusBadRequest, []byte("number too big")).WithContentType("text/plain; charset=utf-8"))
	})

	w := serve(r, http.MethodGet, "/move", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, string(body), w.Body.String())

	w = serve(r, http.MethodGet, "/move/text", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "number too big", w.Body.String())

	w = serve(r, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp errors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrNotFound, resp.Error.Code)
}

func TestMetricsCountsByRouteTemplate(t *testing.T) {
	metrics := monitor.NewMetrics("test")
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/games/:gameId", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/games/a", nil)
	serve(r, http.MethodGet, "/games/b", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.RouteStatus.WithLabelValues("/games/:gameId", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RouteStatus.WithLabelValues("unmatched", "GET", "404")))
}
