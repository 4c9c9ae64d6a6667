package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(t *testing.T, threshold int) (*breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	b := newBreaker(BreakerConfig{Threshold: threshold, ResetTimeout: 10 * time.Second}, zaptest.NewLogger(t))
	b.now = clock.now
	return b, clock
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, 2)
	transport := errors.New("connection refused")

	require.True(t, b.allow())
	b.record(transport)
	assert.Equal(t, BreakerClosed, b.current())

	require.True(t, b.allow())
	b.record(transport)
	assert.Equal(t, BreakerOpen, b.current())
	assert.False(t, b.allow())
}

func TestBreaker_HalfOpenTrialCall(t *testing.T) {
	b, clock := newTestBreaker(t, 1)
	b.record(errors.New("down"))
	require.Equal(t, BreakerOpen, b.current())

	clock.advance(9 * time.Second)
	assert.False(t, b.allow())

	clock.advance(time.Second)
	assert.True(t, b.allow())
	assert.Equal(t, BreakerHalfOpen, b.current())
	// 探测进行中，其余请求仍被拒绝
	assert.False(t, b.allow())

	b.record(nil)
	assert.Equal(t, BreakerClosed, b.current())
	assert.True(t, b.allow())
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b, clock := newTestBreaker(t, 3)
	for i := 0; i < 3; i++ {
		b.record(errors.New("down"))
	}
	clock.advance(10 * time.Second)
	require.True(t, b.allow())

	b.record(errors.New("still down"))
	assert.Equal(t, BreakerOpen, b.current())
	assert.False(t, b.allow())
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	b, _ := newTestBreaker(t, 1)

	b.record(mapHTTPError("llm", http.StatusBadRequest, "bad prompt"))
	b.record(context.Canceled)
	assert.Equal(t, BreakerClosed, b.current())

	b.record(mapHTTPError("llm", http.StatusServiceUnavailable, "loading"))
	assert.Equal(t, BreakerOpen, b.current())
}

func TestBreaker_Disabled(t *testing.T) {
	b, _ := newTestBreaker(t, 0)
	for i := 0; i < 10; i++ {
		b.record(errors.New("down"))
	}
	assert.True(t, b.allow())
	assert.Equal(t, BreakerClosed, b.current())

	var nilBreaker *breaker
	assert.True(t, nilBreaker.allow())
	nilBreaker.record(errors.New("down"))
	assert.Equal(t, BreakerClosed, nilBreaker.current())
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half_open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestLLMClient_CircuitOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "model loading")
	}))
	defer srv.Close()

	c := NewLLMClient(engineConfig(srv.URL),
		WithLogger(zaptest.NewLogger(t)),
		WithBreaker(BreakerConfig{Threshold: 2, ResetTimeout: time.Minute}))

	for i := 0; i < 2; i++ {
		_, err := c.Infer(context.Background(), "q")
		require.True(t, IsRetryable(err))
	}
	assert.Equal(t, BreakerOpen, c.CircuitState())

	_, err := c.Infer(context.Background(), "q")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLLMClient_ClientErrorsKeepCircuitClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"prompt too long"}}`)
	}))
	defer srv.Close()

	c := NewLLMClient(engineConfig(srv.URL), WithBreaker(BreakerConfig{Threshold: 1, ResetTimeout: time.Minute}))
	for i := 0; i < 3; i++ {
		_, err := c.Infer(context.Background(), "q")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrCircuitOpen)
	}
	assert.Equal(t, BreakerClosed, c.CircuitState())
}

func TestBreakerConfigFrom(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.EngineConfig
		want BreakerConfig
	}{
		{"defaults", config.EngineConfig{}, DefaultBreakerConfig()},
		{"custom", config.EngineConfig{BreakerThreshold: 5, BreakerReset: time.Minute}, BreakerConfig{Threshold: 5, ResetTimeout: time.Minute}},
		{"disabled", config.EngineConfig{BreakerThreshold: -1}, BreakerConfig{Threshold: -1, ResetTimeout: 30 * time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, breakerConfigFrom(tt.cfg))
		})
	}
}
