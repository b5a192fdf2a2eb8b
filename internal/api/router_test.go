package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"customer-service/internal/api/handler/dto"
	mw "customer-service/internal/api/middleware"
	"customer-service/internal/config"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/database/memory"
	"customer-service/internal/pkg/docstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	coll := memory.NewCollection("customers", logger)
	boot := customer.NewIndexBootstrapper(coll, docstore.IndexDefinition{Unique: true}, logger)
	require.NoError(t, boot.EnsureUsernameIndex(context.Background()))

	svc := customer.NewCustomerService(coll, nil, logger)
	limiter := mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, nil, logger)
	return SetupRouter(svc, limiter, cfg, logger)
}

// unreachableCollection answers every call except Info like a healthy store.
type unreachableCollection struct {
	*memory.Collection
}

func (unreachableCollection) Info(context.Context) error {
	return errors.New("store down")
}

func TestSetupRouter_HealthReportsStoreOutage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	coll := unreachableCollection{Collection: memory.NewCollection("customers", logger)}
	svc := customer.NewCustomerService(coll, nil, logger)
	r := SetupRouter(svc, mw.NewRateLimiterMiddleware(cfg.Server.RateLimit, nil, logger), cfg, logger)

	for _, target := range []string{"/health", "/customer/health"} {
		rec := request(t, r, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code, target)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), target)
		assert.Equal(t, "document store is unreachable", resp.Error.Message, target)
		assert.NotContains(t, rec.Body.String(), `"status":"ok"`, target)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Auth: config.AuthConfig{Enabled: true, JWTSecret: "routersecret"},
		},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func request(t *testing.T, h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSetupRouter_Infrastructure(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	rec := request(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","message":"Connected to document store"}`, rec.Body.String())

	rec = request(t, r, http.MethodGet, "/customer/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(t, r, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "customer_service_http_requests_total")

	rec = request(t, r, http.MethodGet, "/swagger", "", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/swagger/index.html", rec.Header().Get("Location"))

	rec = request(t, r, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/customer/update/{id}")
}

func TestSetupRouter_TokenAuthorizesUpdate(t *testing.T) {
	r := setupTestRouter(t, testConfig())

	rec := request(t, r, http.MethodPost, "/customer/add",
		`{"_id":"876","username":"yooyo","password":"pw","firstName":"Yo","lastName":"Yo","email":"y@example.com","imageUrl":""}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/customer/876", rec.Header().Get("Location"))

	update := `{"_id":"876","username":"yooyo","password":"pw","firstName":"Yolanda","lastName":"Yo","email":"y@example.com","imageUrl":""}`

	rec = request(t, r, http.MethodPost, "/customer/update/876", update, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no token means no identity")

	rec = request(t, r, http.MethodPost, "/auth/token", `{"customerId":"876","securityContext":true}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var token dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &token))

	auth := http.Header{"Authorization": []string{"Bearer " + token.Token}}
	rec = request(t, r, http.MethodPost, "/customer/update/876", update, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated dto.CustomerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Yolanda", updated.FirstName)

	rec = request(t, r, http.MethodPost, "/customer/update/877", strings.Replace(update, "876", "877", 1), auth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetupRouter_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RPS: 1, Burst: 1, Backend: mw.BackendMemory}
	r := setupTestRouter(t, cfg)

	assert.Equal(t, http.StatusOK, request(t, r, http.MethodGet, "/health", "", nil).Code)
	rec := request(t, r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("Rate limit exceeded")))
}
