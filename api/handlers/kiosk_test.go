package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/api"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/testutil/fixtures"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/testutil/mocks"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

// fakeConversation 记录投递的事件并返回预置快照
type fakeConversation struct {
	mu         sync.Mutex
	events     []voice.Event
	snapshot   voice.Snapshot
	err        error
	stops      int
	interrupts int
	logs       []string
	turn       *voice.ConversationTurn

	transitions chan voice.Transition
	lines       chan string
}

func newFakeConversation() *fakeConversation {
	return &fakeConversation{
		snapshot:    voice.Snapshot{State: voice.StateIdle, Since: time.Now()},
		transitions: make(chan voice.Transition, 8),
		lines:       make(chan string, 8),
	}
}

func (f *fakeConversation) Dispatch(ctx context.Context, ev voice.Event) (voice.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.err != nil {
		return f.snapshot, f.err
	}
	if next, ok := voice.Next(f.snapshot.State, ev.Type); ok {
		f.snapshot.State = next
	}
	return f.snapshot, nil
}

func (f *fakeConversation) Stop(ctx context.Context) (voice.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.snapshot.State = voice.StateIdle
	return f.snapshot, f.err
}

func (f *fakeConversation) Interrupt(ctx context.Context) (voice.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	if f.snapshot.State.Busy() {
		f.snapshot.State = voice.StateInterrupted
	}
	return f.snapshot, f.err
}

func (f *fakeConversation) Snapshot() voice.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot
}

func (f *fakeConversation) Logs() []string { return f.logs }

func (f *fakeConversation) LastTurn() (voice.ConversationTurn, bool) {
	if f.turn == nil {
		return voice.ConversationTurn{}, false
	}
	return *f.turn, true
}

func (f *fakeConversation) Availability() map[string]bool {
	return map[string]bool{"stt": true, "llm": false, "tts": true, "output": true}
}

func (f *fakeConversation) Subscribe() (<-chan voice.Transition, func()) {
	return f.transitions, func() {}
}

func (f *fakeConversation) SubscribeLogs() (<-chan string, func()) {
	return f.lines, func() {}
}

func (f *fakeConversation) dispatched() []voice.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]voice.Event(nil), f.events...)
}

func newKioskHandler(t *testing.T, conv *fakeConversation) *KioskHandler {
	t.Helper()
	resolver := mocks.NewMockResolver().WithRecord(fixtures.LightsOn())
	return NewKioskHandler(conv, resolver, func() string { return "ko" }, zaptest.NewLogger(t))
}

func postJSON(path, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// decodeData 解出 Response.Data 到 dst
func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) Response {
	t.Helper()
	var raw struct {
		Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&raw))
	if dst != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, dst))
	}
	return raw.Response
}

// =============================================================================
// 🧪 KioskHandler 测试
// =============================================================================

func TestKioskHandler_HandleEvent(t *testing.T) {
	conv := newFakeConversation()
	h := newKioskHandler(t, conv)

	w := httptest.NewRecorder()
	h.HandleEvent(w, postJSON("/v1/kiosk/events", `{"type":"mic_pressed"}`))

	assert.Equal(t, http.StatusAccepted, w.Code)
	var state api.StateResponse
	resp := decodeData(t, w, &state)
	assert.True(t, resp.Success)
	assert.Equal(t, voice.StateRecording, state.State)

	events := conv.dispatched()
	require.Len(t, events, 1)
	assert.Equal(t, voice.EventMicPressed, events[0].Type)
}

func TestKioskHandler_HandleEvent_SystemError(t *testing.T) {
	conv := newFakeConversation()
	h := newKioskHandler(t, conv)

	w := httptest.NewRecorder()
	h.HandleEvent(w, postJSON("/v1/kiosk/events", `{"type":" SYSTEM_ERROR ","error":"speaker unplugged"}`))
	require.Equal(t, http.StatusAccepted, w.Code)

	events := conv.dispatched()
	require.Len(t, events, 1)
	assert.Equal(t, voice.EventSystemError, events[0].Type)
	assert.EqualError(t, events[0].Err, "speaker unplugged")
}

func TestKioskHandler_HandleEvent_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   string
	}{
		{"internal event", postJSON("/v1/kiosk/events", `{"type":"stt_done"}`), http.StatusBadRequest, "INVALID_EVENT"},
		{"unknown event", postJSON("/v1/kiosk/events", `{"type":"dance"}`), http.StatusBadRequest, "INVALID_EVENT"},
		{"unknown field", postJSON("/v1/kiosk/events", `{"type":"mic_pressed","x":1}`), http.StatusBadRequest, "INVALID_REQUEST"},
		{"wrong content type", httptest.NewRequest(http.MethodPost, "/v1/kiosk/events", bytes.NewBufferString(`{}`)), http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := newFakeConversation()
			w := httptest.NewRecorder()
			newKioskHandler(t, conv).HandleEvent(w, tt.req)

			assert.Equal(t, tt.status, w.Code)
			resp := decodeData(t, w, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Empty(t, conv.dispatched())
		})
	}
}

func TestKioskHandler_DispatchErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{voice.ErrClosed, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		conv := newFakeConversation()
		conv.err = tt.err
		w := httptest.NewRecorder()
		newKioskHandler(t, conv).HandleEvent(w, postJSON("/v1/kiosk/events", `{"type":"mic_pressed"}`))
		assert.Equal(t, tt.status, w.Code, tt.err.Error())
	}
}

func TestKioskHandler_StopAndInterrupt(t *testing.T) {
	conv := newFakeConversation()
	conv.snapshot.State = voice.StateInferring
	h := newKioskHandler(t, conv)

	w := httptest.NewRecorder()
	h.HandleInterrupt(w, httptest.NewRequest(http.MethodPost, "/v1/kiosk/interrupt", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var state api.StateResponse
	decodeData(t, w, &state)
	assert.Equal(t, voice.StateInterrupted, state.State)

	w = httptest.NewRecorder()
	h.HandleStop(w, httptest.NewRequest(http.MethodPost, "/v1/kiosk/stop", nil))
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &state)
	assert.Equal(t, voice.StateIdle, state.State)

	assert.Equal(t, 1, conv.stops)
	assert.Equal(t, 1, conv.interrupts)
}

func TestKioskHandler_StateLogsAndTurn(t *testing.T) {
	conv := newFakeConversation()
	conv.logs = []string{"STT ready (12ms)", "DB ready: 26 records seeded (3ms)"}
	h := newKioskHandler(t, conv)

	w := httptest.NewRecorder()
	h.HandleState(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/state", nil))
	var state api.StateResponse
	decodeData(t, w, &state)
	assert.Equal(t, voice.StateIdle, state.State)
	assert.False(t, state.Availability["llm"])

	w = httptest.NewRecorder()
	h.HandleLogs(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/logs", nil))
	var logs api.LogsResponse
	decodeData(t, w, &logs)
	assert.Equal(t, conv.logs, logs.Lines)

	w = httptest.NewRecorder()
	h.HandleLastTurn(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/turn", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	conv.turn = &voice.ConversationTurn{ID: "turn-1", ResponseText: "조명을 켰습니다."}
	w = httptest.NewRecorder()
	h.HandleLastTurn(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/turn", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var turn voice.ConversationTurn
	decodeData(t, w, &turn)
	assert.Equal(t, "turn-1", turn.ID)
}

func TestKioskHandler_HandleLogs_EmptyIsArray(t *testing.T) {
	w := httptest.NewRecorder()
	newKioskHandler(t, newFakeConversation()).HandleLogs(w, httptest.NewRequest(http.MethodGet, "/v1/kiosk/logs", nil))
	assert.Contains(t, w.Body.String(), `"lines":[]`)
}

func TestKioskHandler_HandleResolve(t *testing.T) {
	h := newKioskHandler(t, newFakeConversation())

	tests := []struct {
		name   string
		body   string
		status int
		answer string
	}{
		{"korean default", `{"token":"<jarvis_0>","params":{"enable":"True"}}`, http.StatusOK, "조명을 켰습니다."},
		{"english", `{"token":"<jarvis_0>","params":{"enable":"True"},"locale":"en"}`, http.StatusOK, "The lights have been turned on."},
		{"no match", `{"token":"<jarvis_0>","params":{"enable":"Maybe"}}`, http.StatusNotFound, ""},
		{"missing token", `{"params":{}}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleResolve(w, postJSON("/v1/kiosk/resolve", tt.body))
			require.Equal(t, tt.status, w.Code)
			if tt.answer == "" {
				return
			}
			var res api.ResolveResponse
			decodeData(t, w, &res)
			assert.Equal(t, tt.answer, res.Answer)
			assert.Equal(t, map[string]string{"enable": "True"}, res.Parameters)
		})
	}
}

func TestKioskHandler_HandleResolve_StoreFailure(t *testing.T) {
	resolver := mocks.NewMockResolver().WithError(errors.New("database is locked"))
	h := NewKioskHandler(newFakeConversation(), resolver, nil, nil)

	w := httptest.NewRecorder()
	h.HandleResolve(w, postJSON("/v1/kiosk/resolve", `{"token":"<jarvis_0>"}`))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	NewKioskHandler(newFakeConversation(), nil, nil, nil).HandleResolve(w, postJSON("/v1/kiosk/resolve", `{"token":"<jarvis_0>"}`))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
