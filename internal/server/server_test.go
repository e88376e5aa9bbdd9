package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/internal/registry"
	"github.com/dwsmith1983/faultline/internal/scheduler"
	"github.com/dwsmith1983/faultline/pkg/types"
)

type testServer struct {
	*httptest.Server
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
}

func setupTestServer(t *testing.T) testServer {
	t.Helper()
	return setupTestServerWithOpts(t, "", 0)
}

func setupTestServerWithOpts(t *testing.T, apiKey string, maxBody int64) testServer {
	t.Helper()
	reg := registry.Default()
	store, err := config.NewStore(types.DefaultGenerationConfig(), reg)
	require.NoError(t, err)
	eng := engine.New(reg, catalog.New(), store, engine.WithSeed(3))
	sched := scheduler.New(eng, nil)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "faultline_events_total 0\n")
	})
	srv := New(types.ServerConfig{Addr: ":0", APIKey: apiKey, MaxRequestBody: maxBody}, eng, sched,
		WithMetricsHandler(metrics), WithVersion("test"))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		sched.Stop(context.Background())
		ts.Close()
	})
	return testServer{Server: ts, engine: eng, scheduler: sched}
}

func do(t *testing.T, method, url, body string, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "stopped", body["generator"])
}

func TestServiceEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/services", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var services map[string][]string
	require.NoError(t, json.Unmarshal(data, &services))
	assert.Len(t, services, 4)
	assert.Equal(t, []string{"authenticate_user", "get_user_profile", "update_user_data"}, services["UserService"])

	resp, data = do(t, http.MethodGet, ts.URL+"/api/services/PaymentService", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var detail types.ServiceDetail
	require.NoError(t, json.Unmarshal(data, &detail))
	assert.Equal(t, "PaymentService", detail.Name)
	require.Len(t, detail.Operations, 3)
	assert.Equal(t, types.FaultZeroDivisionError, detail.Operations[0].FaultKind)
	assert.Equal(t, types.HealthHealthy, detail.Operations[0].Stats.Health)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/services/GhostService", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(data), "GhostService")
}

func TestFaultsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/faults", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var kinds []types.FaultKindInfo
	require.NoError(t, json.Unmarshal(data, &kinds))
	assert.Len(t, kinds, 12)
}

func TestTriggerEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bound operation", `{"service":"UserService","operation":"authenticate_user"}`, http.StatusCreated},
		{"empty body", "", http.StatusCreated},
		{"fault kind only", `{"fault_kind":"MemoryError"}`, http.StatusCreated},
		{"unknown service", `{"service":"GhostService"}`, http.StatusNotFound},
		{"unknown fault kind", `{"fault_kind":"SegFault"}`, http.StatusNotFound},
		{"operation without service", `{"operation":"authenticate_user"}`, http.StatusBadRequest},
		{"kind mismatch", `{"service":"UserService","operation":"authenticate_user","fault_kind":"KeyError"}`, http.StatusBadRequest},
		{"unknown field", `{"servce":"UserService"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := do(t, http.MethodPost, ts.URL+"/api/trigger", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
		})
	}

	resp, data := do(t, http.MethodPost, ts.URL+"/api/trigger", `{"service":"UserService","operation":"authenticate_user"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ev types.ErrorEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, types.FaultNameError, ev.FaultKind)
	assert.Equal(t, types.SourceManual, ev.Source)
	assert.Contains(t, ev.StackTrace, "Traceback (most recent call last):")
	assert.NotEmpty(t, ev.ID)
}

func TestTriggerOperationEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodPost, ts.URL+"/api/trigger/AuthService/validate_permissions", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ev types.ErrorEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, types.FaultRecursionError, ev.FaultKind)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/trigger/AuthService/validate_permissions?fault_kind=KeyError", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/trigger/AuthService/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConfigEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodPatch, ts.URL+"/api/config", `{"error_probability":1.5,"generation_interval_seconds":0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var verr struct {
		Error  string             `json:"error"`
		Fields []types.FieldError `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(data, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "error_probability", verr.Fields[0].Field)
	assert.Equal(t, "generation_interval_seconds", verr.Fields[1].Field)

	resp, data = do(t, http.MethodGet, ts.URL+"/api/config", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var cfg types.GenerationConfig
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, 0.05, cfg.ErrorProbability)

	resp, data = do(t, http.MethodPatch, ts.URL+"/api/config", `{"error_probability":0.2,"pattern_type":"burst","burst":{"burst_seconds":3}}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	require.NoError(t, json.Unmarshal(data, &cfg))
	assert.Equal(t, 0.2, cfg.ErrorProbability)
	assert.Equal(t, types.PatternBurst, cfg.PatternType)
	assert.Equal(t, 3.0, cfg.Burst.BurstSeconds)
	assert.Equal(t, 10.0, cfg.Burst.QuietSeconds)

	resp, _ = do(t, http.MethodPatch, ts.URL+"/api/config", `{"error_rate":0.2}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPatch, ts.URL+"/api/config", `{"enabled_services":["GhostService"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	for i := 0; i < 3; i++ {
		resp, _ := do(t, http.MethodPost, ts.URL+"/api/trigger", `{"service":"PaymentService"}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, data := do(t, http.MethodGet, ts.URL+"/api/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st types.Statistics
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, int64(3), st.TotalEvents)
	assert.Equal(t, int64(3), st.ByService["PaymentService"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/stats/reset", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, ts.engine.Statistics().TotalEvents)
}

func TestGeneratorEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	type status struct {
		Running bool `json:"running"`
		Changed bool `json:"changed"`
	}
	call := func(method, path string) status {
		resp, data := do(t, method, ts.URL+path, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var s status
		require.NoError(t, json.Unmarshal(data, &s))
		return s
	}

	assert.Equal(t, status{Running: false}, call(http.MethodGet, "/api/generator"))
	assert.Equal(t, status{Running: true, Changed: true}, call(http.MethodPost, "/api/generator/start"))
	assert.Equal(t, status{Running: true, Changed: false}, call(http.MethodPost, "/api/generator/start"))
	assert.True(t, ts.scheduler.Running())
	assert.Equal(t, status{Running: false, Changed: true}, call(http.MethodPost, "/api/generator/stop"))
	assert.Equal(t, status{Running: false, Changed: false}, call(http.MethodPost, "/api/generator/stop"))
}

func TestPatternEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	resp, _ := do(t, http.MethodPatch, ts.URL+"/api/config", `{"pattern_type":"ramp"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := do(t, http.MethodGet, ts.URL+"/api/pattern", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var st map[string]any
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "ramp", st["pattern"])
	assert.Equal(t, "ramping", st["phase"])

	resp, _ = do(t, http.MethodPost, ts.URL+"/api/pattern/reset", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPIKeyMiddleware(t *testing.T) {
	ts := setupTestServerWithOpts(t, "s3cret", 0)

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/services", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/services", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/services", "", "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMaxBodyMiddleware(t *testing.T) {
	ts := setupTestServerWithOpts(t, "", 32)

	resp, _ := do(t, http.MethodPatch, ts.URL+"/api/config", `{"error_probability":0.1,"warning_probability":0.1}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp, _ = do(t, http.MethodPatch, ts.URL+"/api/config", `{"error_probability":0.1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestID(t *testing.T) {
	ts := setupTestServer(t)

	resp, _ := do(t, http.MethodGet, ts.URL+"/api/health", "", "X-Request-ID", "req-42")
	assert.Equal(t, "req-42", resp.Header.Get("X-Request-ID"))

	resp, _ = do(t, http.MethodGet, ts.URL+"/api/health", "")
	assert.Len(t, resp.Header.Get("X-Request-ID"), 26)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, data := do(t, http.MethodGet, ts.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "faultline_events_total")
}

func TestServer_StopBeforeStart(t *testing.T) {
	reg := registry.Default()
	store, err := config.NewStore(types.DefaultGenerationConfig(), reg)
	require.NoError(t, err)
	eng := engine.New(reg, catalog.New(), store)
	srv := New(types.ServerConfig{Addr: "127.0.0.1:0"}, eng, scheduler.New(eng, nil))

	require.NoError(t, srv.Stop(context.Background()))
	assert.NoError(t, srv.Start())
}
