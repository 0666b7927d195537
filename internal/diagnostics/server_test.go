package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geeknik/citadel-browser/internal/security"
	"github.com/geeknik/citadel-browser/internal/settingsstore"
	"github.com/geeknik/citadel-browser/internal/tabmanager"
	"github.com/geeknik/citadel-browser/internal/zkvm"
)

func testManager() *tabmanager.Manager {
	base := security.New(settingsstore.Default())
	zcfg := func(secCtx *security.Context, private bool) zkvm.Config {
		return zkvm.Config{MaxMemoryBytes: 1 << 20, Capabilities: zkvm.NewCapabilitySet(), SecurityCtx: secCtx, IsPrivate: private}
	}
	nav := func(ctx context.Context, inst *zkvm.Instance, secCtx *security.Context, url string, publish func(tabmanager.Event)) (string, error) {
		return "Test Page", nil
	}
	return tabmanager.New(base, zcfg, nav)
}

func TestHealthzReturnsOK(t *testing.T) {
	s := NewServer(testManager(), DefaultCORSConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenTabReturnsOK(t *testing.T) {
	s := NewServer(testManager(), DefaultCORSConfig(), nil)

	openReq := httptest.NewRequest(http.MethodPost, "/tabs", strings.NewReader(`{"url":"https://example.test"}`))
	openReq.Header.Set("Content-Type", "application/json")
	openRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(openRec, openReq)
	require.Equal(t, http.StatusOK, openRec.Code)
}

func TestSecurityHeadersPresent(t *testing.T) {
	s := NewServer(testManager(), DefaultCORSConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}
