package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "pldft_test_total", Help: "test"}))

	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("healthz", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewOpsRouter(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("readyz reports failing checks", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router := NewOpsRouter(reg, map[string]Check{"postgres": healthy, "redis": down})
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body["postgres"])
		assert.Equal(t, "connection refused", body["redis"])
	})

	t.Run("metrics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewOpsRouter(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "pldft_test_total")
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewOpsRouter(reg, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
