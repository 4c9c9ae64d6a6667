package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
)

// 应答来源
const (
	ResolutionAnswer       = "answer"
	ResolutionParallel     = "parallel"
	ResolutionParseFailed  = "parse_failed"
	ResolutionNoMatch      = "no_match"
	ResolutionLookupFailed = "lookup_failed"
)

// 轮次结局
const (
	OutcomeCompleted   = "completed"
	OutcomeCancelled   = "cancelled"
	OutcomeInterrupted = "interrupted"
	OutcomeClosed      = "closed"
)

// Latencies 各阶段耗时
type Latencies struct {
	STT           time.Duration `json:"stt"`
	LLM           time.Duration `json:"llm"`
	TTSFirstAudio time.Duration `json:"tts_first_audio"`
}

// ConversationTurn 一轮对话的临时记录，不落库
type ConversationTurn struct {
	ID                 string            `json:"id"`
	StartedAt          time.Time         `json:"started_at"`
	EndedAt            time.Time         `json:"ended_at"`
	Outcome            string            `json:"outcome"`
	RawTranscript      string            `json:"raw_transcript"`
	NormalizedQuery    string            `json:"normalized_query"`
	LLMRawOutput       string            `json:"llm_raw_output"`
	Echo               bool              `json:"echo"`
	ResolvedToken      string            `json:"resolved_token,omitempty"`
	ResolvedParameters map[string]string `json:"resolved_parameters,omitempty"`
	Resolution         string            `json:"resolution"`
	ResponseText       string            `json:"response_text"`
	Latencies          Latencies         `json:"latencies"`
}

func (t *ConversationTurn) clone() ConversationTurn {
	cp := *t
	if t.ResolvedParameters != nil {
		cp.ResolvedParameters = make(map[string]string, len(t.ResolvedParameters))
		for k, v := range t.ResolvedParameters {
			cp.ResolvedParameters[k] = v
		}
	}
	return cp
}

// inference 是推理任务的产出，由事件循环写回 ConversationTurn
type inference struct {
	normalized string
	output     string
	echo       bool
	llmLatency time.Duration
	token      string
	params     map[string]string
	response   string
	resolution string
	logs       []string
}

func (inf *inference) logf(format string, args ...any) {
	inf.logs = append(inf.logs, fmt.Sprintf(format, args...))
}

func (inf *inference) fallback(resolution string) {
	inf.response = inf.normalized
	inf.resolution = resolution
}

func (inf *inference) applyTo(t *ConversationTurn) {
	t.NormalizedQuery = inf.normalized
	t.LLMRawOutput = inf.output
	t.Echo = inf.echo
	t.Latencies.LLM = inf.llmLatency
	t.ResolvedToken = inf.token
	t.ResolvedParameters = inf.params
	t.Resolution = inf.resolution
	t.ResponseText = inf.response
}

// infer 执行 规范化 → LLM → 快速路径 → 解析 → 应答库 查找，任何失败都以回退文本结束
func (o *Orchestrator) infer(ctx context.Context, transcript string, settings config.VoiceConfig) inference {
	var inf inference

	filtered := PreprocessQuery(transcript)
	inf.normalized = NormalizeQuery(filtered)
	if filtered != inf.normalized {
		inf.logf("NORMALIZED: %s", inf.normalized)
	}

	prompt := BuildPrompt(settings.PromptTemplate, inf.normalized)
	inf.output, inf.llmLatency, inf.echo = o.complete(ctx, prompt, inf.normalized)
	inf.logf("LLM: %s (%dms)", inf.output, inf.llmLatency.Milliseconds())
	o.reporter.ReportLLM(inf.output, inf.llmLatency)

	o.resolve(ctx, &inf, settings.Locale)
	return inf
}

func (o *Orchestrator) complete(ctx context.Context, prompt, query string) (string, time.Duration, bool) {
	if !o.avail.llm.Load() {
		o.logger.Warn("language model unavailable, echoing query")
		return query, 0, true
	}

	ctx, span := o.tracer.Start(ctx, "llm")
	defer span.End()

	start := time.Now()
	out, err := o.caps.LLM.Infer(ctx, prompt)
	latency := time.Since(start)
	o.recorder.RecordStage("llm", latency, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("inference failed, echoing query", zap.Error(err))
		return query, 0, true
	}
	return out, latency, false
}

func (o *Orchestrator) resolve(ctx context.Context, inf *inference, locale string) {
	ctx, span := o.tracer.Start(ctx, "resolve")
	start := time.Now()
	defer func() {
		found := inf.resolution == ResolutionAnswer || inf.resolution == ResolutionParallel
		o.recorder.RecordStage("resolve", time.Since(start), found)
		span.SetAttributes(attribute.String("resolution", inf.resolution), attribute.String("token", inf.token))
		span.End()
	}()

	if o.parallel != nil {
		pa, err := o.parallel.LookupParallelAnswer(ctx, inf.output)
		switch {
		case err == nil && pa.Answer(locale) != "":
			inf.response = pa.Answer(locale)
			inf.resolution = ResolutionParallel
			return
		case err != nil && !errors.Is(err, store.ErrNotFound):
			o.logger.Warn("parallel answer lookup failed", zap.Error(err))
		}
	}

	call, err := ParseIntent(inf.output)
	if err != nil {
		o.logger.Debug("completion not parseable, falling back to query", zap.String("output", inf.output), zap.Error(err))
		inf.fallback(ResolutionParseFailed)
		return
	}
	inf.token, inf.params = call.Token, call.Params
	inf.logf("TOKEN: %s %s", call.Token, store.CanonicalParams(call.Params))

	if o.resolver == nil {
		inf.fallback(ResolutionNoMatch)
		return
	}
	rec, err := o.resolver.Lookup(ctx, call.Token, call.Params)
	switch {
	case errors.Is(err, store.ErrNotFound):
		o.logger.Info("no answer for intent", zap.String("token", call.Token), zap.Any("params", call.Params))
		inf.fallback(ResolutionNoMatch)
	case err != nil:
		span.RecordError(err)
		o.logger.Error("answer lookup failed", zap.String("token", call.Token), zap.Error(err))
		inf.fallback(ResolutionLookupFailed)
	default:
		inf.params = rec.Parameters
		inf.response = rec.Answer(locale)
		inf.resolution = ResolutionAnswer
		if inf.response == "" {
			inf.fallback(ResolutionNoMatch)
		}
	}
}
