package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/billbook/internal/config"
)

func TestNew_Routes(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Secret = "s3cret"
	cfg.CORSOrigins = []string{"https://app.example"}
	srv := New(cfg, nil, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/invoices", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "api requires a token when auth is on")

	req := httptest.NewRequest(http.MethodOptions, "/v1/invoices", nil)
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNew_Address(t *testing.T) {
	cfg := config.Default()
	cfg.Port = "9090"
	assert.Equal(t, ":9090", New(cfg, nil, nil).inner.Addr)
}
