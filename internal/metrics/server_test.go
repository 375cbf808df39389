package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goran-ethernal/CardanoIndexor/internal/logger"
	"github.com/goran-ethernal/CardanoIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServer_Handler(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	cfg.ApplyDefaults()
	h := NewServer(cfg, logger.NewNopLogger()).Handler()

	LastIndexedBlockSet(42, 840)
	DexEventsAdd("sundaeswap_v1", "mean_price", 3)
	TaskSkippedInc("used_inputs")

	code, body := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "cardanoindexor_last_indexed_block 42")
	require.Contains(t, body, "cardanoindexor_last_indexed_slot 840")
	require.Contains(t, body, `cardanoindexor_dex_events_total{event="mean_price",protocol="sundaeswap_v1"}`)
	require.Contains(t, body, `cardanoindexor_tasks_skipped_total{task="used_inputs"}`)

	code, body = get(t, h, "/health")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "OK", body)
}

func TestServer_Disabled(t *testing.T) {
	t.Parallel()

	s := NewServer(&config.MetricsConfig{}, logger.NewNopLogger())
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
