package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/ctxkeys"
)

// =============================================================================
// 🎯 对话编排器
// =============================================================================

type requestKind int

const (
	kindEvent requestKind = iota
	kindNote
	kindPlaying
	kindReady
	kindFail
	kindStop
	kindInterrupt
	kindSettings
)

// request 投递给事件循环；gen 为 0 表示外部请求，不做轮次校验
type request struct {
	kind     requestKind
	ev       Event
	gen      uint64
	apply    func(*ConversationTurn)
	err      error
	settings config.VoiceConfig
	done     chan Snapshot
}

// Orchestrator 语音对话状态机，唯一的状态所有者是内部事件循环
type Orchestrator struct {
	caps     Capabilities
	resolver AnswerResolver
	parallel ParallelAnswerSource
	seeder   Seeder
	pipeline *SynthesisPipeline

	logger   *zap.Logger
	reporter Reporter
	recorder Recorder
	tracer   trace.Tracer

	logs        *LogBook
	transitions *broadcaster[Transition]
	logFeed     *broadcaster[string]

	avail struct {
		stt, llm, tts, output atomic.Bool
	}
	initialized atomic.Bool
	initial     config.VoiceConfig

	snapshot atomic.Pointer[Snapshot]
	lastTurn atomic.Pointer[ConversationTurn]

	qmu   sync.Mutex
	queue []request
	wake  chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	loopDone  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool

	// 以下字段只由事件循环访问
	state      State
	cause      string
	settings   config.VoiceConfig
	gen        uint64
	turn       *ConversationTurn
	turnCtx    context.Context
	turnCancel context.CancelFunc
	turnSpan   trace.Span
	sttStarted bool
}

// NewOrchestrator 创建编排器并启动事件循环，初始状态为 Init
func NewOrchestrator(caps Capabilities, resolver AnswerResolver, settings config.VoiceConfig, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		caps:     caps,
		resolver: resolver,
		logger:   zap.NewNop(),
		reporter: nopReporter{},
		recorder: nopRecorder{},
		tracer:   defaultTracer(),
		initial:  settings,
		settings: settings,
		wake:     make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
		state:    StateInit,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	o.logs = NewLogBook(settings.LogCapacity)
	o.transitions = newBroadcaster[Transition](32)
	o.logFeed = newBroadcaster[string](64)
	o.pipeline = NewSynthesisPipeline(caps.Synthesizer, caps.Output, o.logger)
	o.snapshot.Store(&Snapshot{State: StateInit, Since: time.Now()})

	go o.loop()
	return o
}

// =============================================================================
// 🚀 初始化
// =============================================================================

// Initialize 预热 STT/LLM/TTS、初始化音频输出并写入应答目录，完成后进入 Idle。
//
// 预热失败的能力标记为不可用，不中断初始化。写库失败时进入 Error 并
// 通过 SystemError 自愈回 Idle，同时返回该错误。
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.closed.Load() {
		return ErrClosed
	}
	if !o.initialized.CompareAndSwap(false, true) {
		return ErrAlreadyInitialized
	}

	o.addLog("Initializing kiosk voice engines...")

	var g errgroup.Group
	warm := func(name string, c any, flag *atomic.Bool) {
		g.Go(func() error {
			start := time.Now()
			if err := warmup(ctx, c); err != nil {
				o.logger.Warn("capability unavailable", zap.String("capability", name), zap.Error(err))
				o.addLog(fmt.Sprintf("%s unavailable: %v", name, err))
				return nil
			}
			flag.Store(true)
			o.addLog(fmt.Sprintf("%s ready (%dms)", name, time.Since(start).Milliseconds()))
			return nil
		})
	}
	warm("STT", o.caps.Transcriber, &o.avail.stt)
	warm("LLM", o.caps.LLM, &o.avail.llm)
	warm("TTS", o.caps.Synthesizer, &o.avail.tts)
	_ = g.Wait()

	o.initOutput()

	if o.seeder != nil {
		start := time.Now()
		n, err := o.seeder.Seed(ctx)
		if err != nil {
			err = fmt.Errorf("seed response store: %w", err)
			o.logger.Error("initialization failed", zap.Error(err))
			o.addLog("DB init failed: " + err.Error())
			if _, cerr := o.call(ctx, request{kind: kindFail, err: err}); cerr != nil {
				return errors.Join(err, cerr)
			}
			if _, cerr := o.call(ctx, request{kind: kindEvent, ev: SystemError(err)}); cerr != nil {
				return errors.Join(err, cerr)
			}
			return err
		}
		o.addLog(fmt.Sprintf("DB ready: %d records seeded (%dms)", n, time.Since(start).Milliseconds()))
	}

	_, err := o.call(ctx, request{kind: kindReady})
	return err
}

// 音频输出的采样率跟随合成器
func (o *Orchestrator) initOutput() {
	if o.caps.Output == nil {
		o.addLog("Audio output unavailable")
		return
	}
	rate := o.initial.SampleRate
	if sr, ok := o.caps.Synthesizer.(SampleRater); ok && sr.SampleRate() > 0 {
		rate = sr.SampleRate()
	}
	if err := o.caps.Output.Reinit(rate); err != nil {
		o.logger.Warn("audio output init failed", zap.Error(err))
		o.addLog("Audio output init failed: " + err.Error())
		return
	}
	o.avail.output.Store(true)
	o.addLog(fmt.Sprintf("Audio output ready (%d Hz)", rate))
}

// =============================================================================
// 📮 公共 API
// =============================================================================

// HandleEvent 异步投递事件
func (o *Orchestrator) HandleEvent(ev Event) {
	o.post(request{kind: kindEvent, ev: ev})
}

// Dispatch 投递事件并等待事件循环处理完毕，返回处理后的快照
func (o *Orchestrator) Dispatch(ctx context.Context, ev Event) (Snapshot, error) {
	return o.call(ctx, request{kind: kindEvent, ev: ev})
}

// Stop 用户停止：取消合成与播放、释放音频输出并回到 Idle
func (o *Orchestrator) Stop(ctx context.Context) (Snapshot, error) {
	return o.call(ctx, request{kind: kindStop})
}

// Interrupt 把进行中的轮次打断为 Interrupted，之后由 UserStop 回到 Idle
func (o *Orchestrator) Interrupt(ctx context.Context) (Snapshot, error) {
	return o.call(ctx, request{kind: kindInterrupt})
}

// UpdateVoiceSettings 更新语言、说话人、语速等，从下一轮开始生效
func (o *Orchestrator) UpdateVoiceSettings(settings config.VoiceConfig) {
	o.post(request{kind: kindSettings, settings: settings})
}

// State 当前状态
func (o *Orchestrator) State() State {
	return o.snapshot.Load().State
}

// Snapshot 当前状态快照
func (o *Orchestrator) Snapshot() Snapshot {
	return *o.snapshot.Load()
}

// Logs 初始化与当前轮次日志
func (o *Orchestrator) Logs() []string {
	return o.logs.Lines()
}

// LastTurn 最近一个完成的轮次
func (o *Orchestrator) LastTurn() (ConversationTurn, bool) {
	t := o.lastTurn.Load()
	if t == nil {
		return ConversationTurn{}, false
	}
	return t.clone(), true
}

// Availability 各能力是否可用
func (o *Orchestrator) Availability() map[string]bool {
	return map[string]bool{
		"stt":    o.avail.stt.Load(),
		"llm":    o.avail.llm.Load(),
		"tts":    o.avail.tts.Load(),
		"output": o.avail.output.Load(),
	}
}

// Subscribe 订阅状态迁移；消费过慢时丢弃通知
func (o *Orchestrator) Subscribe() (<-chan Transition, func()) {
	return o.transitions.subscribe()
}

// SubscribeLogs 订阅日志行
func (o *Orchestrator) SubscribeLogs() (<-chan string, func()) {
	return o.logFeed.subscribe()
}

// Close 停止事件循环和 VAD，释放音频输出，等待后台任务退出。
// 合成在 WithoutCancel 上下文中运行，可能不响应取消；ctx 到期时不再等待，返回 ctx.Err()
func (o *Orchestrator) Close(ctx context.Context) error {
	var err error
	o.closeOnce.Do(func() {
		o.closed.Store(true)
		o.cancel()
		<-o.loopDone

		if o.turn != nil {
			o.endTurn(OutcomeClosed)
		}
		if o.caps.VAD != nil {
			o.caps.VAD.Stop()
		}
		if o.caps.Output != nil {
			o.caps.Output.Stop()
			err = o.caps.Output.Release()
		}
		defer o.transitions.close()
		defer o.logFeed.close()

		done := make(chan struct{})
		go func() {
			o.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			o.logger.Warn("orchestrator close timed out waiting for turn tasks", zap.Error(ctx.Err()))
			err = errors.Join(err, ctx.Err())
		}
	})
	return err
}

// =============================================================================
// 🔁 事件循环
// =============================================================================

func (o *Orchestrator) post(req request) {
	if o.closed.Load() {
		return
	}
	o.qmu.Lock()
	o.queue = append(o.queue, req)
	o.qmu.Unlock()

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) call(ctx context.Context, req request) (Snapshot, error) {
	if o.closed.Load() {
		return o.Snapshot(), ErrClosed
	}
	req.done = make(chan Snapshot, 1)
	o.post(req)

	select {
	case s := <-req.done:
		return s, nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	case <-o.loopDone:
		return o.Snapshot(), ErrClosed
	}
}

func (o *Orchestrator) drain() []request {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	reqs := o.queue
	o.queue = nil
	return reqs
}

func (o *Orchestrator) loop() {
	defer close(o.loopDone)
	for {
		select {
		case <-o.ctx.Done():
			return
		case <-o.wake:
		}
		for reqs := o.drain(); len(reqs) > 0; reqs = o.drain() {
			for _, req := range reqs {
				if o.ctx.Err() != nil {
					return
				}
				o.process(req)
			}
		}
	}
}

func (o *Orchestrator) process(req request) {
	defer func() {
		if req.done != nil {
			req.done <- o.current()
		}
	}()

	if req.gen != 0 && req.gen != o.gen {
		o.logger.Debug("stale turn result dropped", zap.Uint64("gen", req.gen), zap.Uint64("current", o.gen))
		return
	}
	if req.apply != nil && o.turn != nil {
		req.apply(o.turn)
	}

	switch req.kind {
	case kindEvent:
		o.handle(req.ev)
	case kindNote:
	case kindPlaying:
		if o.state == StateSynthesizing {
			o.setState(StatePlaying, "", "")
		}
	case kindReady:
		if o.state == StateInit {
			o.addLog("Ready")
			o.setState(StateIdle, "", "")
		}
	case kindFail:
		o.setState(StateError, "", req.err.Error())
	case kindStop:
		o.stop()
	case kindInterrupt:
		o.interrupt()
	case kindSettings:
		o.settings = req.settings
		o.logger.Info("voice settings updated",
			zap.String("locale", req.settings.Locale),
			zap.Int("speaker_id", req.settings.SpeakerID),
			zap.Float64("speed", req.settings.Speed))
	}
}

func (o *Orchestrator) handle(ev Event) {
	if ev.Type == EventVadSpeechEnd {
		o.onSpeechEnd(ev.Samples)
		return
	}
	if ev.Type == EventMicReleased && o.state == StateTranscribing {
		o.flushSpeech()
		return
	}

	to, ok := Next(o.state, ev.Type)
	if !ok {
		o.logger.Debug("event ignored", zap.String("state", string(o.state)), zap.String("event", string(ev.Type)))
		return
	}

	switch ev.Type {
	case EventMicPressed:
		o.startListening()
	case EventMicReleased:
		o.addLog("Mic released: 녹음 중지, 대기 상태로 전환")
		o.endTurn(OutcomeCancelled)
		o.setState(to, ev.Type, "")
	case EventVadSpeechStart:
		o.addLog("VAD: Speech detected")
		o.setState(to, ev.Type, "")
	case EventSttDone:
		o.startThinking(ev.Text)
	case EventLlmDone:
		o.startSpeaking(ev.Text)
	case EventTtsDone:
		o.endTurn(OutcomeCompleted)
		o.setState(to, ev.Type, "")
	case EventUserStop:
		o.setState(to, ev.Type, "")
	case EventSystemError:
		if ev.Err != nil {
			o.logger.Warn("recovering from system error", zap.Error(ev.Err))
		}
		o.setState(to, ev.Type, "")
	}
}

func (o *Orchestrator) current() Snapshot {
	return *o.snapshot.Load()
}

func (o *Orchestrator) setState(to State, ev EventType, cause string) {
	from := o.state
	o.state, o.cause = to, cause

	snap := &Snapshot{State: to, Cause: cause, Since: time.Now()}
	if o.turn != nil {
		snap.TurnID = o.turn.ID
	}
	o.snapshot.Store(snap)

	if from == to {
		return
	}
	o.recorder.RecordStateTransition(string(from), string(to))
	o.transitions.publish(Transition{From: from, To: to, Event: ev, Cause: cause, At: snap.Since})
	o.logger.Debug("state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(ev)))
}

func (o *Orchestrator) addLog(line string) {
	o.logs.Add(line)
	o.logFeed.publish(line)
}

// =============================================================================
// 🗣️ 轮次
// =============================================================================

func (o *Orchestrator) beginTurn() {
	o.gen++
	id := uuid.NewString()

	ctx := ctxkeys.WithTurnID(o.ctx, id)
	ctx, span := o.tracer.Start(ctx, "kiosk.turn", trace.WithAttributes(attribute.String("turn.id", id)))
	o.turnCtx, o.turnCancel = context.WithCancel(ctx)
	o.turnSpan = span
	o.turn = &ConversationTurn{ID: id, StartedAt: time.Now()}
	o.sttStarted = false
}

// endTurn 取消轮次内的后台任务并停止 VAD；旧轮次的迟到结果之后都会被丢弃
func (o *Orchestrator) endTurn(outcome string) {
	o.gen++
	if o.turnCancel != nil {
		o.turnCancel()
		o.turnCancel = nil
	}
	if o.caps.VAD != nil {
		o.caps.VAD.Stop()
	}

	t := o.turn
	if t == nil {
		return
	}
	o.turn = nil
	t.EndedAt = time.Now()
	t.Outcome = outcome
	o.recorder.RecordTurn(outcome, t.EndedAt.Sub(t.StartedAt))

	if o.turnSpan != nil {
		o.turnSpan.SetAttributes(attribute.String("turn.outcome", outcome), attribute.String("turn.resolution", t.Resolution))
		o.turnSpan.End()
		o.turnSpan = nil
	}
	if outcome == OutcomeCompleted {
		cp := t.clone()
		o.lastTurn.Store(&cp)
	}
}

// spawn 在轮次上下文中运行后台任务；任务 panic 时投递 fallback，保证状态机继续前进
func (o *Orchestrator) spawn(stage string, fallback Event, fn func(ctx context.Context) request) {
	ctx, gen := o.turnCtx, o.gen
	if ctx == nil {
		ctx = o.ctx
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		req := request{kind: kindEvent, ev: fallback}
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("turn task panicked",
					zap.String("stage", stage),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
			req.gen = gen
			o.post(req)
		}()
		req = fn(ctx)
	}()
}

func (o *Orchestrator) startListening() {
	o.logs.Clear()
	o.beginTurn()
	o.addLog("Mic pressed: 녹음 시작")
	o.setState(StateRecording, EventMicPressed, "")

	if o.caps.VAD == nil {
		o.addLog("VAD unavailable")
		return
	}
	if err := o.caps.VAD.Start(gateHandler{o: o, gen: o.gen}); err != nil {
		o.logger.Error("failed to start voice activity detection", zap.Error(err))
		o.addLog("VAD start failed: " + err.Error())
	}
}

// flushSpeech 说话中松开麦克风：停止 VAD，已缓冲的语音照常转写
//
// VAD.Stop 同步回调 OnSpeechEnd，事件先于下面的空语音段入队；
// 没有缓冲时由空语音段把轮次推进到 SttDone("")。
func (o *Orchestrator) flushSpeech() {
	if o.sttStarted {
		return
	}
	o.addLog("Mic released: 버퍼된 음성으로 STT 진행")
	if o.caps.VAD != nil {
		o.caps.VAD.Stop()
	}
	o.post(request{kind: kindEvent, ev: VadSpeechEnd(nil), gen: o.gen})
}

// onSpeechEnd 在 Transcribing 中启动一次转写，不改变状态
func (o *Orchestrator) onSpeechEnd(samples []float32) {
	if o.state != StateTranscribing || o.sttStarted {
		o.logger.Debug("speech end ignored", zap.String("state", string(o.state)))
		return
	}
	o.sttStarted = true
	if len(samples) == 0 {
		o.addLog("VAD: no buffered speech")
		o.post(request{kind: kindEvent, ev: SttDone(""), gen: o.gen})
		return
	}
	o.addLog("VAD: Speech ended, running STT...")

	rate := o.settings.SampleRate
	o.spawn("stt", SttDone(""), func(ctx context.Context) request {
		ctx, span := o.tracer.Start(ctx, "stt")
		defer span.End()

		start := time.Now()
		text, err := o.transcribe(ctx, samples, rate)
		latency := time.Since(start)
		o.recorder.RecordStage("stt", latency, err == nil)
		if err != nil {
			span.RecordError(err)
			o.logger.Warn("transcription failed", zap.Error(err))
			text = ""
		}
		if strings.TrimSpace(text) != "" {
			o.reporter.ReportSTT(text, latency)
		}

		return request{ev: SttDone(text), apply: func(t *ConversationTurn) {
			t.RawTranscript = text
			t.Latencies.STT = latency
			if text != "" {
				o.addLog(fmt.Sprintf("STT: %s (%dms)", text, latency.Milliseconds()))
			}
		}}
	})
}

func (o *Orchestrator) transcribe(ctx context.Context, samples []float32, rate int) (string, error) {
	if !o.avail.stt.Load() {
		return "", ErrCapabilityUnavailable
	}
	return o.caps.Transcriber.Transcribe(ctx, samples, rate)
}

func (o *Orchestrator) startThinking(text string) {
	if o.turn != nil {
		o.turn.RawTranscript = text
	}
	o.setState(StateInferring, EventSttDone, "")

	settings := o.settings
	fallback := LlmDone(NormalizeQuery(PreprocessQuery(text)))
	o.spawn("llm", fallback, func(ctx context.Context) request {
		inf := o.infer(ctx, text, settings)
		return request{ev: LlmDone(inf.response), apply: func(t *ConversationTurn) {
			inf.applyTo(t)
			for _, line := range inf.logs {
				o.addLog(line)
			}
		}}
	})
}

func (o *Orchestrator) startSpeaking(text string) {
	if o.turn != nil {
		o.turn.ResponseText = text
	}
	o.addLog("TTS: " + text)
	o.setState(StateSynthesizing, EventLlmDone, "")

	if !o.avail.tts.Load() {
		o.logger.Warn("synthesizer unavailable, skipping playback")
		o.post(request{kind: kindEvent, ev: TtsDone(), gen: o.gen})
		return
	}

	settings, gen := o.settings, o.gen
	o.spawn("tts", TtsDone(), func(ctx context.Context) request {
		ctx, span := o.tracer.Start(ctx, "tts")
		defer span.End()

		start := time.Now()
		res, err := o.pipeline.Speak(ctx, text,
			WithVoice(settings.SpeakerID, settings.Speed),
			WithPadding(settings.PlaybackPadding),
			OnFirstAudio(func(d time.Duration) {
				o.reporter.ReportTTS(text, d)
				o.post(request{kind: kindNote, gen: gen, apply: func(t *ConversationTurn) {
					t.Latencies.TTSFirstAudio = d
					o.addLog(fmt.Sprintf("TTS: first audio (%dms)", d.Milliseconds()))
				}})
			}),
			OnPlaybackStart(func() {
				o.post(request{kind: kindPlaying, gen: gen})
			}),
		)
		span.SetAttributes(attribute.Int("sentences", res.Sentences), attribute.Int("played", res.Played))

		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			o.logger.Debug("playback cancelled", zap.Int("played", res.Played))
		default:
			span.RecordError(err)
			o.logger.Error("synthesis failed, skipping remaining playback", zap.Error(err))
		}
		o.recorder.RecordStage("tts", time.Since(start), err == nil)
		return request{ev: TtsDone()}
	})
}

func (o *Orchestrator) stop() {
	if o.state == StateInit {
		return
	}
	o.addLog("Stop: 재생 중지")
	o.endTurn(OutcomeCancelled)
	if o.caps.Output != nil {
		o.caps.Output.Stop()
		if err := o.caps.Output.Release(); err != nil {
			o.logger.Warn("failed to release audio output", zap.Error(err))
		}
	}
	o.setState(StateIdle, EventUserStop, "")
}

func (o *Orchestrator) interrupt() {
	if !o.state.Busy() {
		return
	}
	o.addLog("Interrupted")
	o.endTurn(OutcomeInterrupted)
	if o.caps.Output != nil {
		o.caps.Output.Stop()
	}
	o.setState(StateInterrupted, "", "")
}

// gateHandler 把 VAD 回调转成带轮次代号的事件
type gateHandler struct {
	o   *Orchestrator
	gen uint64
}

func (h gateHandler) OnSpeechStart() {
	h.o.post(request{kind: kindEvent, ev: VadSpeechStart(), gen: h.gen})
}

func (h gateHandler) OnSpeechEnd(samples []float32) {
	cp := make([]float32, len(samples))
	copy(cp, samples)
	h.o.post(request{kind: kindEvent, ev: VadSpeechEnd(cp), gen: h.gen})
}
