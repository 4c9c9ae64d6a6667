package voice

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
)

// Reporter 尽力而为地上报每轮的转写、补全和应答，实现不得阻塞调用方
type Reporter interface {
	ReportSTT(text string, latency time.Duration)
	ReportLLM(text string, latency time.Duration)
	ReportTTS(text string, firstAudio time.Duration)
}

// Recorder 记录状态迁移和阶段耗时，由 metrics.Collector 实现
type Recorder interface {
	RecordStateTransition(from, to string)
	RecordStage(stage string, d time.Duration, ok bool)
	RecordTurn(outcome string, d time.Duration)
}

// AnswerResolver 按意图和参数解析应答，store.Store 与 store.CachedResolver 都满足
type AnswerResolver interface {
	Lookup(ctx context.Context, token string, params map[string]string) (store.IntentRecord, error)
}

// ParallelAnswerSource 以原始补全为键的快速路径
type ParallelAnswerSource interface {
	LookupParallelAnswer(ctx context.Context, llmResponse string) (store.ParallelAnswer, error)
}

// Seeder 初始化阶段写入内置应答目录
type Seeder interface {
	Seed(ctx context.Context) (int, error)
}

type nopReporter struct{}

func (nopReporter) ReportSTT(string, time.Duration) {}
func (nopReporter) ReportLLM(string, time.Duration) {}
func (nopReporter) ReportTTS(string, time.Duration) {}

type nopRecorder struct{}

func (nopRecorder) RecordStateTransition(string, string)    {}
func (nopRecorder) RecordStage(string, time.Duration, bool) {}
func (nopRecorder) RecordTurn(string, time.Duration)        {}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithReporter 设置遥测上报
func WithReporter(r Reporter) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.reporter = r
		}
	}
}

// WithRecorder 设置指标记录
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracer 设置轮次追踪
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithParallelAnswers 启用原始补全快速路径
func WithParallelAnswers(src ParallelAnswerSource) Option {
	return func(o *Orchestrator) { o.parallel = src }
}

// WithSeeder 初始化时写入应答目录
func WithSeeder(s Seeder) Option {
	return func(o *Orchestrator) { o.seeder = s }
}

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("voice")
}
