package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goran-ethernal/CardanoIndexor/internal/api/mocks"
	"github.com/goran-ethernal/CardanoIndexor/internal/common"
	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/internal/store"
	"github.com/goran-ethernal/CardanoIndexor/internal/testutil"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func testConfig(enabled bool, listen string) *config.APIConfig {
	cfg := &config.APIConfig{
		Enabled:       enabled,
		ListenAddress: listen,
		ReadTimeout:   common.Duration{Duration: 5 * time.Second},
		WriteTimeout:  common.Duration{Duration: 10 * time.Second},
		IdleTimeout:   common.Duration{Duration: 60 * time.Second},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	server := NewServer(testConfig(true, "localhost:8080"), mocks.NewDexQuerier(t), logger.NewNopLogger())

	require.NotNil(t, server.handler)
	require.Equal(t, "localhost:8080", server.server.Addr)
	require.Equal(t, 5*time.Second, server.server.ReadTimeout)
	require.Equal(t, 10*time.Second, server.server.WriteTimeout)
	require.Equal(t, 60*time.Second, server.server.IdleTimeout)
	require.Equal(t, 100, server.handler.maxAddresses)
	require.Equal(t, 1000, server.handler.maxLimit)
}

func TestServer_Start_Disabled(t *testing.T) {
	t.Parallel()

	server := NewServer(testConfig(false, ":8080"), mocks.NewDexQuerier(t), logger.NewNopLogger())

	done := make(chan error, 1)
	go func() { done <- server.Start(context.Background()) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start() did not return when server is disabled")
	}
}

func TestServer_Start_GracefulShutdown(t *testing.T) {
	t.Parallel()

	server := NewServer(testConfig(true, "localhost:0"), mocks.NewDexQuerier(t), logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownCtxTimeout + 5*time.Second):
		t.Fatal("Server did not shutdown gracefully within timeout")
	}
}

func TestServer_Routes(t *testing.T) {
	t.Parallel()

	database := testutil.NewTestDB(t, "api.db")
	cfg := testConfig(true, "localhost:8080")
	cfg.CORS = config.CORSConfig{Enabled: true, AllowedOrigins: []string{"https://app.example"}}
	h := NewServer(cfg, store.New(database, 0), logger.NewNopLogger()).Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "health on empty index", method: http.MethodGet, path: "/health", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{
			name:       "mean price with unknown until block",
			method:     http.MethodPost,
			path:       "/api/v1/dex/mean-price",
			body:       `{"addresses":[],"assetPairs":[],"untilBlock":"` + testutil.Hash(9).String() + `"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"code":2`,
		},
		{
			name:       "swap with bad body",
			method:     http.MethodPost,
			path:       "/api/v1/dex/swap",
			body:       `[`,
			wantStatus: http.StatusBadRequest,
		},
		{name: "query needs POST", method: http.MethodGet, path: "/api/v1/dex/swap", wantStatus: http.StatusMethodNotAllowed},
		{name: "swagger document", method: http.MethodGet, path: "/swagger/doc.json", wantStatus: http.StatusOK, wantBody: "/dex/mean-price"},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/indexers", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Origin", "https://app.example")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			require.Contains(t, w.Body.String(), tt.wantBody)
			require.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
