// internal/ops/server_test.go
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safety-pipeline/internal/common/logger"
)

func TestHealthzAlwaysOK(t *testing.T) {
	s := NewServer(":0", nil, logger.NewTestLogger(t))
	rec := httptest.NewRecorder()

	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsDependencyHealth(t *testing.T) {
	checks := map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}
	s := NewServer(":0", checks, logger.NewTestLogger(t))
	rec := httptest.NewRecorder()

	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Deps map[string]string `json:"deps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Deps["postgres"])
	assert.Equal(t, "connection refused", body.Deps["redis"])
}

func TestMetricsEndpointServes(t *testing.T) {
	s := NewServer(":0", nil, logger.NewTestLogger(t))
	rec := httptest.NewRecorder()

	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}
