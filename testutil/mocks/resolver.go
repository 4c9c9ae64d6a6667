package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
)

// --- MockResolver ---

// MockResolver 是 voice.AnswerResolver 的模拟实现，按 token + 规范化参数精确匹配
type MockResolver struct {
	mu       sync.Mutex
	records  map[string]store.IntentRecord
	parallel map[string]store.ParallelAnswer
	err      error
	seedErr  error
	seeded   int
	lookups  []string
}

// NewMockResolver 创建空解析器
func NewMockResolver() *MockResolver {
	return &MockResolver{
		records:  make(map[string]store.IntentRecord),
		parallel: make(map[string]store.ParallelAnswer),
	}
}

// WithRecord 登记一条应答
func (r *MockResolver) WithRecord(rec store.IntentRecord) *MockResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Token+"|"+store.CanonicalParams(rec.Parameters)] = rec
	return r
}

// WithParallelAnswer 登记一条快速路径应答
func (r *MockResolver) WithParallelAnswer(raw, ko, en string) *MockResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parallel[raw] = store.ParallelAnswer{LLMResponse: raw, AnswerKo: ko, AnswerEn: en}
	return r
}

// WithError 所有查找返回该错误
func (r *MockResolver) WithError(err error) *MockResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
	return r
}

// WithSeedError Seed 返回该错误
func (r *MockResolver) WithSeedError(err error) *MockResolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seedErr = err
	return r
}

func (r *MockResolver) Lookup(ctx context.Context, token string, params map[string]string) (store.IntentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := token + "|" + store.CanonicalParams(params)
	r.lookups = append(r.lookups, key)
	if r.err != nil {
		return store.IntentRecord{}, r.err
	}
	rec, ok := r.records[key]
	if !ok {
		return store.IntentRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (r *MockResolver) LookupParallelAnswer(ctx context.Context, raw string) (store.ParallelAnswer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pa, ok := r.parallel[raw]
	if !ok {
		return store.ParallelAnswer{}, store.ErrNotFound
	}
	return pa, nil
}

func (r *MockResolver) Seed(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seedErr != nil {
		return 0, r.seedErr
	}
	r.seeded++
	return len(r.records), nil
}

// Lookups 返回查找过的 token|params 键
func (r *MockResolver) Lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lookups))
	copy(out, r.lookups)
	return out
}

// --- MockReporter ---

// Report 一次上报
type Report struct {
	Kind    string
	Text    string
	Latency time.Duration
}

// MockReporter 记录上报内容
type MockReporter struct {
	mu      sync.Mutex
	reports []Report
}

func NewMockReporter() *MockReporter { return &MockReporter{} }

func (r *MockReporter) add(kind, text string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, Text: text, Latency: d})
}

func (r *MockReporter) ReportSTT(text string, d time.Duration) { r.add("stt", text, d) }
func (r *MockReporter) ReportLLM(text string, d time.Duration) { r.add("llm", text, d) }
func (r *MockReporter) ReportTTS(text string, d time.Duration) { r.add("tts", text, d) }

// Reports 返回指定类型的上报，kind 为空时返回全部
func (r *MockReporter) Reports(kind string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Report
	for _, rep := range r.reports {
		if kind == "" || rep.Kind == kind {
			out = append(out, rep)
		}
	}
	return out
}

// --- MockRecorder ---

// MockRecorder 记录指标调用
type MockRecorder struct {
	mu          sync.Mutex
	transitions []string
	stages      map[string]int
	turns       map[string]int
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{stages: make(map[string]int), turns: make(map[string]int)}
}

func (r *MockRecorder) RecordStateTransition(from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, from+"->"+to)
}

func (r *MockRecorder) RecordStage(stage string, d time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[stage]++
}

func (r *MockRecorder) RecordTurn(outcome string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[outcome]++
}

// Transitions 返回 from->to 记录
func (r *MockRecorder) Transitions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.transitions))
	copy(out, r.transitions)
	return out
}

// Stage 某阶段被记录的次数
func (r *MockRecorder) Stage(stage string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[stage]
}

// Turns 某结局的轮次数
func (r *MockRecorder) Turns(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turns[outcome]
}
