package reporter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

type received struct {
	path string
	body payload
}

type collector struct {
	mu           sync.Mutex
	got          []received
	contentTypes []string
	status       int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p payload
	_ = json.NewDecoder(r.Body).Decode(&p)
	c.mu.Lock()
	c.got = append(c.got, received{path: r.URL.Path, body: p})
	c.contentTypes = append(c.contentTypes, r.Header.Get("Content-Type"))
	status := c.status
	c.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
}

func (c *collector) received() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]received(nil), c.got...)
}

type observer struct {
	mu  sync.Mutex
	oks map[string]int
	bad map[string]int
}

func newObserver() *observer {
	return &observer{oks: map[string]int{}, bad: map[string]int{}}
}

func (o *observer) RecordReport(kind string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ok {
		o.oks[kind]++
	} else {
		o.bad[kind]++
	}
}

func newReporter(t *testing.T, url string, opts ...Option) *Reporter {
	t.Helper()
	r, err := New(config.ReporterConfig{BaseURL: url, Workers: 1, QueueSize: 8, Timeout: time.Second}, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return r
}

func TestReporter_PostsEachKind(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	defer srv.Close()

	obs := newObserver()
	r := newReporter(t, srv.URL, WithObserver(obs))
	r.ReportSTT("불 켜줘.", 412*time.Millisecond)
	r.ReportLLM("<jarvis_0>(enable=True)", 1500*time.Microsecond)
	r.ReportTTS("조명을 켰습니다.", 0)
	require.NoError(t, r.Close(context.Background()))

	got := c.received()
	require.Len(t, got, 3)
	assert.Equal(t, received{"/suda/stt", payload{"불 켜줘.", 412}}, got[0])
	assert.Equal(t, received{"/suda/llm", payload{"<jarvis_0>(enable=True)", 1.5}}, got[1])
	assert.Equal(t, received{"/suda/tts", payload{"조명을 켰습니다.", 0}}, got[2])
	assert.Equal(t, []string{"application/json", "application/json", "application/json"}, c.contentTypes)

	assert.Equal(t, map[string]int{KindSTT: 1, KindLLM: 1, KindTTS: 1}, obs.oks)
	assert.Equal(t, int64(3), r.Stats().Completed)
}

func TestReporter_SkipsBlankTranscript(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(c)
	defer srv.Close()

	r := newReporter(t, srv.URL+"/")
	r.ReportSTT("  \n", time.Second)
	require.NoError(t, r.Close(context.Background()))

	assert.Empty(t, c.received())
	assert.Zero(t, r.Stats().Submitted)
}

func TestReporter_FailuresAreSwallowed(t *testing.T) {
	c := &collector{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(c)
	defer srv.Close()

	obs := newObserver()
	r := newReporter(t, srv.URL, WithObserver(obs))
	r.ReportLLM("x", time.Millisecond)
	require.NoError(t, r.Close(context.Background()))

	assert.Len(t, c.received(), 1)
	assert.Equal(t, 1, obs.bad[KindLLM])
	// 发送失败不计入任务失败
	assert.Zero(t, r.Stats().Failed)
}

func TestReporter_UnreachableCollector(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	obs := newObserver()
	r := newReporter(t, url, WithObserver(obs))
	r.ReportTTS("x", time.Millisecond)
	require.NoError(t, r.Close(context.Background()))
	assert.Equal(t, 1, obs.bad[KindTTS])
}

func TestReporter_DropsAfterClose(t *testing.T) {
	obs := newObserver()
	r := newReporter(t, "http://127.0.0.1:1/", WithObserver(obs))
	require.NoError(t, r.Close(context.Background()))

	assert.NotPanics(t, func() { r.ReportLLM("late", time.Millisecond) })
	assert.Equal(t, 1, obs.bad[KindLLM])
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(config.ReporterConfig{BaseURL: " "}, nil)
	assert.Error(t, err)
}
