package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dwsmith1983/faultline/internal/catalog"
	"github.com/dwsmith1983/faultline/internal/config"
	"github.com/dwsmith1983/faultline/internal/engine"
	"github.com/dwsmith1983/faultline/internal/registry"
	"github.com/dwsmith1983/faultline/internal/scheduler"
	"github.com/dwsmith1983/faultline/internal/server"
	"github.com/dwsmith1983/faultline/internal/sink"
	"github.com/dwsmith1983/faultline/internal/testutil"
	"github.com/dwsmith1983/faultline/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type stack struct {
	engine     *engine.Engine
	scheduler  *scheduler.Scheduler
	dispatcher *sink.Dispatcher
	server     *httptest.Server
	logPath    string
}

func newStack(t *testing.T, gen types.GenerationConfig) *stack {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "faults.jsonl")

	reg := registry.Default()
	store, err := config.NewStore(gen, reg)
	require.NoError(t, err)

	fileSink, err := sink.NewFileSink(logPath)
	require.NoError(t, err)
	disp := sink.NewDispatcher([]sink.Sink{fileSink})
	disp.Start(context.Background())

	eng := engine.New(reg, catalog.New(), store, engine.WithSeed(99), engine.WithEmitter(disp))
	sched := scheduler.New(eng, nil)
	srv := server.New(types.ServerConfig{}, eng, sched)
	ts := httptest.NewServer(srv.Handler())

	s := &stack{engine: eng, scheduler: sched, dispatcher: disp, server: ts, logPath: logPath}
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(ctx)
		_ = disp.Close(ctx)
	})
	return s
}

// drain stops generation and flushes the sink queue.
func (s *stack) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.scheduler.Stop(ctx)
	require.NoError(t, s.dispatcher.Close(ctx))
}

func (s *stack) call(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func readRecords(t *testing.T, path string) []types.LogRecord {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var recs []types.LogRecord
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var r types.LogRecord
		require.NoError(t, json.Unmarshal(line, &r))
		recs = append(recs, r)
	}
	return recs
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// ---------------------------------------------------------------------------
// Test 1: Scheduled generation reaches the file sink
// ---------------------------------------------------------------------------

func TestIntegration_ScheduledRecordsReachSink(t *testing.T) {
	gen := types.DefaultGenerationConfig()
	gen.ErrorProbability = 1
	gen.IntervalSeconds = 0.01
	gen.EnabledServices = []string{"PaymentService"}
	s := newStack(t, gen)

	resp := s.call(t, http.MethodPost, "/api/generator/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	testutil.WaitFor(t, 5*time.Second, func() bool {
		return s.engine.Statistics().TotalEvents >= 10
	}, "ten scheduled events")
	s.drain(t)

	st := s.engine.Statistics()
	recs := readRecords(t, s.logPath)
	require.Len(t, recs, int(st.TotalEvents))

	for _, r := range recs {
		assert.Equal(t, "PaymentService", r.Service)
		assert.Equal(t, sink.ThreadScheduled, r.Thread)
		assert.Equal(t, types.SourceScheduled, r.Source)
		assert.Equal(t, r.Severity.Level(), r.Level)
		assert.Len(t, r.CorrelationID, 26)
		assert.NotEmpty(t, r.StackTrace)
		assert.NotEmpty(t, r.FunctionName)
		assert.Positive(t, r.LineNumber)
	}
	assert.Equal(t, st.TotalEvents, st.ByService["PaymentService"])
}

// ---------------------------------------------------------------------------
// Test 2: Manual trigger over HTTP is recorded once, on the main thread
// ---------------------------------------------------------------------------

func TestIntegration_ManualTriggerOverHTTP(t *testing.T) {
	gen := types.DefaultGenerationConfig()
	gen.ErrorProbability = 0
	s := newStack(t, gen)

	resp := s.call(t, http.MethodPost, "/api/trigger", types.TriggerRequest{Service: "UserService", Operation: "get_user_profile"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var ev types.ErrorEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ev))

	resp = s.call(t, http.MethodPost, "/api/trigger/UserService/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	s.drain(t)
	recs := readRecords(t, s.logPath)
	require.Len(t, recs, 1)
	assert.Equal(t, ev.ID, recs[0].CorrelationID)
	assert.Equal(t, types.FaultKeyError, recs[0].ErrorType)
	assert.Equal(t, sink.ThreadManual, recs[0].Thread)
	assert.Equal(t, int64(1), s.engine.Statistics().BySource[types.SourceManual])
}

// ---------------------------------------------------------------------------
// Test 3: Rejected config patch leaves generation untouched
// ---------------------------------------------------------------------------

func TestIntegration_RejectedPatchKeepsGenerating(t *testing.T) {
	gen := types.DefaultGenerationConfig()
	gen.ErrorProbability = 1
	gen.IntervalSeconds = 0.01
	s := newStack(t, gen)
	s.scheduler.Start(context.Background())

	resp := s.call(t, http.MethodPatch, "/api/config", map[string]any{
		"error_probability":           0,
		"generation_interval_seconds": -1,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1.0, s.engine.Config().ErrorProbability)

	before := s.engine.Statistics().TotalEvents
	testutil.WaitFor(t, 5*time.Second, func() bool {
		return s.engine.Statistics().TotalEvents > before+3
	}, "generation continues after rejected patch")

	resp = s.call(t, http.MethodPatch, "/api/config", map[string]any{"error_probability": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s.drain(t)

	settled := s.engine.Statistics().TotalEvents
	assert.Equal(t, int(settled), len(readRecords(t, s.logPath)))
}

// ---------------------------------------------------------------------------
// Test 4: Editing the project file reconfigures a running engine
// ---------------------------------------------------------------------------

func TestIntegration_HotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.05\n"), 0o644))

	s := newStack(t, types.DefaultGenerationConfig())
	w := config.NewWatcher(path, s.engine.ReplaceConfig, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		w.Stop(ctx)
	})

	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 0.4\n  pattern_type: ramp\n"), 0o644))
	testutil.WaitFor(t, 5*time.Second, func() bool {
		return s.engine.Config().PatternType == types.PatternRamp
	}, "ramp pattern loaded from file")

	assert.Equal(t, 0.4, s.engine.Config().ErrorProbability)
	assert.Equal(t, types.PatternRamp, s.engine.PatternState().Pattern)

	// An invalid edit is rejected and the previous config stays live.
	require.NoError(t, os.WriteFile(path, []byte("generation:\n  error_probability: 7\n"), 0o644))
	time.Sleep(3 * config.DefaultDebounce)
	assert.Equal(t, 0.4, s.engine.Config().ErrorProbability)
}
