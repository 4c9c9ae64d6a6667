package metrics

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewCollector("kiosk", reg, zaptest.NewLogger(t)), reg
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector_RegistersOnGivenRegistry(t *testing.T) {
	collector, reg := newTestCollector(t)
	collector.RecordTurn("completed", time.Second)

	n, err := testutil.GatherAndCount(reg, "kiosk_turns_total", "kiosk_turn_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// 同一注册表重复注册会 panic，独立注册表互不影响
	assert.Panics(t, func() { NewCollector("kiosk", reg, nil) })
	assert.NotPanics(t, func() { NewCollector("kiosk", prometheus.NewRegistry(), nil) })
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordHTTPRequest("POST", "/v1/kiosk/events", 202, 15*time.Millisecond, 64, 128)
	collector.RecordHTTPRequest("GET", "/v1/kiosk/state", 500, time.Millisecond, 0, 32)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.httpRequestsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/v1/kiosk/events", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/v1/kiosk/state", "5xx")))
}

func TestCollector_RecordStateTransition(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordStateTransition("Idle", "Recording")
	collector.RecordStateTransition("Idle", "Recording")
	collector.RecordStateTransition("Recording", "Transcribing")

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.stateTransitions.WithLabelValues("Idle", "Recording")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stateTransitions))
}

func TestCollector_RecordStageAndTurn(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordStage("stt", 300*time.Millisecond, true)
	collector.RecordStage("llm", time.Second, false)
	collector.RecordTurn("completed", 3*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.stageTotal.WithLabelValues("stt", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.stageTotal.WithLabelValues("llm", "failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stageDuration))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.turnsTotal.WithLabelValues("completed")))
}

func TestCollector_StoreCacheAndReports(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordStoreLookup("answer", true)
	collector.RecordStoreLookup("answer", false)
	collector.RecordCacheHit("answer")
	collector.RecordCacheMiss("faq")
	collector.RecordReport("stt", true)
	collector.RecordReport("tts", false)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.storeLookups.WithLabelValues("answer", "hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.storeLookups.WithLabelValues("answer", "miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheHits.WithLabelValues("answer")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("faq")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.reportsTotal.WithLabelValues("tts", "failure")))
}

func TestCollector_RecordDBConnections(t *testing.T) {
	collector, _ := newTestCollector(t)

	collector.RecordDBConnections("postgres", 10, 5)
	collector.RecordDBConnections("postgres", 8, 6)

	assert.Equal(t, float64(8), testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, float64(6), testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_ObserveCircuit(t *testing.T) {
	collector, reg := newTestCollector(t)

	states := map[string]string{"llm": "closed", "tts": "open"}
	var mu sync.Mutex
	for _, name := range []string{"llm", "tts"} {
		collector.ObserveCircuit(name, func() string {
			mu.Lock()
			defer mu.Unlock()
			return states[name]
		})
	}

	expected := `
# HELP kiosk_engine_circuit_state Engine circuit breaker state (0 closed, 1 half-open, 2 open)
# TYPE kiosk_engine_circuit_state gauge
kiosk_engine_circuit_state{engine="llm"} 0
kiosk_engine_circuit_state{engine="tts"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kiosk_engine_circuit_state"))

	mu.Lock()
	states["tts"] = "half_open"
	mu.Unlock()
	expected = strings.Replace(expected, `engine="tts"} 2`, `engine="tts"} 1`, 1)
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "kiosk_engine_circuit_state"))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector, _ := newTestCollector(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/v1/kiosk/state", 200, 100*time.Millisecond, 0, 512)
			collector.RecordStateTransition("Idle", "Recording")
			collector.RecordCacheHit("answer")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.stateTransitions.WithLabelValues("Idle", "Recording")))
	assert.Equal(t, float64(10), testutil.ToFloat64(collector.cacheHits.WithLabelValues("answer")))
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx", 204: "2xx", 301: "3xx", 404: "4xx", 429: "4xx", 503: "5xx", 100: "unknown", 0: "unknown", 600: "unknown",
	}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), code)
	}
}
