package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/swarmopt/internal/config"
	"github.com/copyleftdev/swarmopt/internal/logging"
	"github.com/copyleftdev/swarmopt/internal/server"
)

func TestRouter(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := logging.New(logging.InfoLevel, &buf)

	r := newRouter(cfg, logger)
	srv := server.NewServer(cfg, logger)
	defer srv.Close()
	srv.RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())

	// Metrics registered by the engine packages are exported.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "swarmopt_server_runs_started_total")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/status/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.True(t, strings.Contains(buf.String(), "request completed"))
}
