// ABOUTME: End-to-end tests for the assembled gateway.

package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbus/cnc-gateway/internal/config"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testLogWriter{t}, nil))
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// newTestGateway assembles a gateway against a stub upstream.
func newTestGateway(t *testing.T, upstreamHandler http.HandlerFunc) *httptest.Server {
	t.Helper()

	stub := httptest.NewServer(upstreamHandler)
	t.Cleanup(stub.Close)

	cfg := config.Default()
	cfg.Upstream.BaseURL = stub.URL
	cfg.Upstream.APIKey = "test-key"
	cfg.Database.Path = filepath.Join(t.TempDir(), "calls.db")

	gw, err := New(cfg, testLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		ts.Close()
		gw.Shutdown(t.Context())
	})
	return ts
}

func TestGateway_RegistersAllTools(t *testing.T) {
	ts := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(ts.URL + "/tools")
	require.NoError(t, err)
	defer resp.Body.Close()

	var listed struct {
		Total int `json:"total"`
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	assert.Equal(t, 8, listed.Total)
	require.NotEmpty(t, listed.Tools)
	assert.Equal(t, "get_iot_cnc_data", listed.Tools[0].Name)
}

func TestGateway_EquipmentListScenario(t *testing.T) {
	ts := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":["EQ1","EQ2"],"count":2}`))
	})

	resp, err := http.Post(ts.URL+"/tools/call", "application/json",
		strings.NewReader(`{"name":"get_iot_equipment_list","arguments":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(body, &result))
	require.Len(t, result.Content, 1)

	text := result.Content[0].Text
	assert.Contains(t, text, "EQ1")
	assert.Contains(t, text, "EQ2")
	assert.Contains(t, text, "2")
}

func TestGateway_CallsAreLedgered(t *testing.T) {
	ts := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[],"count":0}`))
	})

	resp, err := http.Post(ts.URL+"/tools/call", "application/json",
		strings.NewReader(`{"name":"get_iot_equipment_list","arguments":{}}`))
	require.NoError(t, err)
	resp.Body.Close()

	// Ledger writes are asynchronous
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(ts.URL + "/api/stats/usage")
		require.NoError(t, err)
		var stats struct {
			Tools []struct {
				Tool  string `json:"tool"`
				Calls int64  `json:"calls"`
			} `json:"tools"`
		}
		err = json.NewDecoder(resp.Body).Decode(&stats)
		resp.Body.Close()
		require.NoError(t, err)

		if len(stats.Tools) == 1 && stats.Tools[0].Tool == "get_iot_equipment_list" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("ledger never recorded the call: %+v", stats.Tools)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGateway_RecentCallsEndpoint(t *testing.T) {
	ts := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[],"count":0}`))
	})

	resp, err := http.Get(ts.URL + "/api/calls/recent")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recent struct {
		Calls []any `json:"calls"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recent))
	assert.NotNil(t, recent.Calls, "expected calls array, got null")
}

func TestGateway_HealthThroughAssembly(t *testing.T) {
	ts := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
}
