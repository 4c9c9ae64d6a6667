package voice_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/testutil"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/testutil/fixtures"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/testutil/mocks"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

const waitTimeout = 2 * time.Second

type rig struct {
	o        *voice.Orchestrator
	stt      *mocks.MockTranscriber
	llm      *mocks.MockLanguageModel
	synth    *mocks.MockSynthesizer
	gate     *mocks.MockGate
	out      *mocks.MockOutput
	resolver *mocks.MockResolver
	reporter *mocks.MockReporter
	recorder *mocks.MockRecorder
}

type rigOptions struct {
	settings config.VoiceConfig
	noLLM    bool
	noSTT    bool
	extra    []voice.Option
}

func newRig(t *testing.T, mutate ...func(*rig, *rigOptions)) *rig {
	t.Helper()
	r := &rig{
		stt:      mocks.NewMockTranscriber("불 켜줘."),
		llm:      mocks.NewMockLanguageModel(fixtures.LightsOnCompletion),
		synth:    mocks.NewMockSynthesizer(),
		gate:     mocks.NewMockGate(),
		out:      mocks.NewMockOutput(),
		resolver: mocks.NewMockResolver().WithRecord(fixtures.LightsOn()).WithRecord(fixtures.MultiSentence()),
		reporter: mocks.NewMockReporter(),
		recorder: mocks.NewMockRecorder(),
	}
	opts := &rigOptions{settings: fixtures.VoiceSettings()}
	for _, m := range mutate {
		m(r, opts)
	}

	caps := voice.Capabilities{
		Transcriber: r.stt,
		LLM:         r.llm,
		Synthesizer: r.synth,
		VAD:         r.gate,
		Output:      r.out,
	}
	if opts.noLLM {
		caps.LLM = nil
	}
	if opts.noSTT {
		caps.Transcriber = nil
	}

	all := append([]voice.Option{
		voice.WithLogger(zaptest.NewLogger(t)),
		voice.WithReporter(r.reporter),
		voice.WithRecorder(r.recorder),
	}, opts.extra...)
	r.o = voice.NewOrchestrator(caps, r.resolver, opts.settings, all...)
	t.Cleanup(func() { _ = r.o.Close(context.Background()) })
	return r
}

func (r *rig) init(t *testing.T) {
	t.Helper()
	require.NoError(t, r.o.Initialize(testutil.TestContext(t)))
	require.Equal(t, voice.StateIdle, r.o.State())
}

// speak 按下麦克风并模拟一段完整语音
func (r *rig) speak(t *testing.T) {
	t.Helper()
	snap, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	require.Equal(t, voice.StateRecording, snap.State)
	require.True(t, r.gate.SpeechStart(testutil.Tone(1600, 0.5)))
	require.True(t, r.gate.SpeechEnd())
}

func (r *rig) lastTurn(t *testing.T) voice.ConversationTurn {
	t.Helper()
	turn, ok := r.o.LastTurn()
	require.True(t, ok, "no completed turn")
	return turn
}

func TestOrchestrator_FullTurn(t *testing.T) {
	r := newRig(t)
	r.init(t)

	ch, cancel := r.o.Subscribe()
	defer cancel()

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

	states := testutil.CollectStates(ch, voice.StateIdle, waitTimeout)
	assert.Equal(t, []voice.State{
		voice.StateRecording, voice.StateTranscribing, voice.StateInferring,
		voice.StateSynthesizing, voice.StatePlaying, voice.StateIdle,
	}, states)

	turn := r.lastTurn(t)
	assert.NotEmpty(t, turn.ID)
	assert.Equal(t, voice.OutcomeCompleted, turn.Outcome)
	assert.Equal(t, "불 켜줘.", turn.RawTranscript)
	assert.Equal(t, "불 켜줘", turn.NormalizedQuery)
	assert.Equal(t, fixtures.LightsOnCompletion, turn.LLMRawOutput)
	assert.False(t, turn.Echo)
	assert.Equal(t, "<jarvis_0>", turn.ResolvedToken)
	assert.Equal(t, map[string]string{"enable": "True"}, turn.ResolvedParameters)
	assert.Equal(t, voice.ResolutionAnswer, turn.Resolution)
	assert.Equal(t, "조명을 켰습니다.", turn.ResponseText)
	assert.False(t, turn.EndedAt.Before(turn.StartedAt))

	require.Len(t, r.stt.Calls(), 1)
	assert.Len(t, r.stt.Calls()[0], 1600)
	require.Len(t, r.llm.Prompts(), 1)
	assert.Contains(t, r.llm.Prompts()[0], "Query: 불 켜줘 Response:")
	assert.Equal(t, []string{"조명을 켰습니다."}, r.synth.Calls())
	assert.Len(t, r.out.Played(), 1)

	require.Len(t, r.reporter.Reports("stt"), 1)
	assert.Equal(t, "불 켜줘.", r.reporter.Reports("stt")[0].Text)
	require.Len(t, r.reporter.Reports("llm"), 1)
	assert.Equal(t, fixtures.LightsOnCompletion, r.reporter.Reports("llm")[0].Text)
	require.Len(t, r.reporter.Reports("tts"), 1)
	assert.Equal(t, "조명을 켰습니다.", r.reporter.Reports("tts")[0].Text)

	assert.Equal(t, 1, r.recorder.Turns(voice.OutcomeCompleted))
	assert.Equal(t, 1, r.recorder.Stage("stt"))
	assert.Equal(t, 1, r.recorder.Stage("llm"))
	assert.Equal(t, 1, r.recorder.Stage("resolve"))
	assert.Equal(t, 1, r.recorder.Stage("tts"))
	assert.Contains(t, r.recorder.Transitions(), "playing->idle")

	logs := strings.Join(r.o.Logs(), "\n")
	assert.Contains(t, logs, "Mic pressed")
	assert.Contains(t, logs, "VAD: Speech detected")
	assert.Contains(t, logs, "STT: 불 켜줘.")
	assert.Contains(t, logs, "LLM: <jarvis_0>(enable=True)")
	assert.Contains(t, logs, "TOKEN: <jarvis_0> enable=True")
	assert.Contains(t, logs, "TTS: 조명을 켰습니다.")
	assert.False(t, r.gate.Running())
}

func TestOrchestrator_InitIgnoresEvents(t *testing.T) {
	r := newRig(t)

	snap, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	assert.Equal(t, voice.StateInit, snap.State)
	assert.Zero(t, r.gate.Starts())

	snap, err = r.o.Stop(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, voice.StateInit, snap.State)
}

func TestOrchestrator_InitializeReportsAvailability(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.llm.WithWarmupError(errors.New("model file missing"))
		r.synth.WithSampleRate(22050)
	})
	r.init(t)

	assert.Equal(t, map[string]bool{"stt": true, "llm": false, "tts": true, "output": true}, r.o.Availability())
	assert.Equal(t, 22050, r.out.SampleRate())

	logs := strings.Join(r.o.Logs(), "\n")
	assert.Contains(t, logs, "STT ready")
	assert.Contains(t, logs, "LLM unavailable: model file missing")
	assert.Contains(t, logs, "Audio output ready (22050 Hz)")

	assert.ErrorIs(t, r.o.Initialize(context.Background()), voice.ErrAlreadyInitialized)
}

func TestOrchestrator_EchoWhenLanguageModelUnavailable(t *testing.T) {
	r := newRig(t, func(r *rig, o *rigOptions) {
		o.noLLM = true
		r.stt = mocks.NewMockTranscriber("에이구역에 뭐 있어?")
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

	turn := r.lastTurn(t)
	assert.True(t, turn.Echo)
	assert.Equal(t, "A구역에 뭐 있어", turn.NormalizedQuery)
	assert.Equal(t, "A구역에 뭐 있어", turn.LLMRawOutput)
	assert.Equal(t, voice.ResolutionParseFailed, turn.Resolution)
	assert.Equal(t, "A구역에 뭐 있어", turn.ResponseText)
	assert.Zero(t, turn.Latencies.LLM)
	assert.Equal(t, []string{"A구역에 뭐 있어"}, r.synth.Calls())

	require.Len(t, r.reporter.Reports("llm"), 1)
	assert.Zero(t, r.reporter.Reports("llm")[0].Latency)
	assert.Contains(t, r.o.Logs(), "NORMALIZED: A구역에 뭐 있어")
}

func TestOrchestrator_EchoWhenInferenceFails(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.llm.WithError(errors.New("out of memory"))
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

	turn := r.lastTurn(t)
	assert.True(t, turn.Echo)
	assert.Equal(t, "불 켜줘", turn.ResponseText)
}

func TestOrchestrator_FallbacksSpeakNormalizedQuery(t *testing.T) {
	tests := []struct {
		name       string
		completion string
		lookupErr  error
		want       string
	}{
		{"no match", fixtures.LightsOffCompletion, nil, voice.ResolutionNoMatch},
		{"parse failure", "죄송합니다", nil, voice.ResolutionParseFailed},
		{"lookup failure", fixtures.LightsOnCompletion, errors.New("database is locked"), voice.ResolutionLookupFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRig(t, func(r *rig, _ *rigOptions) {
				r.llm = mocks.NewMockLanguageModel(tt.completion)
				if tt.lookupErr != nil {
					r.resolver.WithError(tt.lookupErr)
				}
			})
			r.init(t)

			r.speak(t)
			testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

			turn := r.lastTurn(t)
			assert.Equal(t, tt.want, turn.Resolution)
			assert.Equal(t, "불 켜줘", turn.ResponseText)
			assert.Equal(t, []string{"불 켜줘"}, r.synth.Calls())
		})
	}
}

func TestOrchestrator_ParallelAnswerFastPath(t *testing.T) {
	const raw = "<jarvis_9>(mode=party)"
	r := newRig(t, func(r *rig, o *rigOptions) {
		r.llm = mocks.NewMockLanguageModel(raw)
		r.resolver.WithParallelAnswer(raw, "파티 모드를 시작합니다.", "Party mode on.")
		o.extra = append(o.extra, voice.WithParallelAnswers(r.resolver))
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

	turn := r.lastTurn(t)
	assert.Equal(t, voice.ResolutionParallel, turn.Resolution)
	assert.Equal(t, "파티 모드를 시작합니다.", turn.ResponseText)
	assert.Empty(t, r.resolver.Lookups())
}

func TestOrchestrator_LocaleSelection(t *testing.T) {
	r := newRig(t, func(_ *rig, o *rigOptions) {
		o.settings.Locale = "en"
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	assert.Equal(t, "The lights have been turned on.", r.lastTurn(t).ResponseText)

	settings := fixtures.VoiceSettings()
	settings.Locale = "ko"
	r.o.UpdateVoiceSettings(settings)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	testutil.AssertEventuallyTrue(t, func() bool { return len(r.synth.Calls()) == 2 }, waitTimeout)
	assert.Equal(t, "조명을 켰습니다.", r.lastTurn(t).ResponseText)
}

func TestOrchestrator_TranscriptionFailureReturnsToIdle(t *testing.T) {
	r := newRig(t, func(r *rig, o *rigOptions) {
		o.noLLM = true
		r.stt.WithError(errors.New("decoder failed"))
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)

	turn := r.lastTurn(t)
	assert.Empty(t, turn.RawTranscript)
	assert.Empty(t, turn.ResponseText)
	assert.Empty(t, r.synth.Calls())
	assert.Empty(t, r.reporter.Reports("stt"))
}

func TestOrchestrator_MicReleasedBeforeSpeech(t *testing.T) {
	r := newRig(t)
	r.init(t)

	_, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	assert.True(t, r.gate.Running())

	snap, err := r.o.Dispatch(testutil.TestContext(t), voice.MicReleased())
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)
	assert.False(t, r.gate.Running())
	assert.Empty(t, r.stt.Calls())
	assert.Equal(t, 1, r.recorder.Turns(voice.OutcomeCancelled))

	_, ok := r.o.LastTurn()
	assert.False(t, ok)
}

func TestOrchestrator_MicReleasedWhileTranscribingFlushesSpeech(t *testing.T) {
	r := newRig(t)
	r.init(t)

	_, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	require.True(t, r.gate.SpeechStart(testutil.Tone(160, 0.5)))
	testutil.AssertEventuallyState(t, r.o, voice.StateTranscribing, waitTimeout)

	_, err = r.o.Dispatch(testutil.TestContext(t), voice.MicReleased())
	require.NoError(t, err)
	assert.False(t, r.gate.Running())

	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	calls := r.stt.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0], 160)
	assert.Equal(t, "조명을 켰습니다.", r.lastTurn(t).ResponseText)

	// 已交付的语音段不会因随后的停止再次转写
	assert.False(t, r.gate.SpeechEnd())
	assert.Len(t, r.stt.Calls(), 1)
}

func TestOrchestrator_MicReleasedWithoutBufferedSpeech(t *testing.T) {
	r := newRig(t, func(_ *rig, o *rigOptions) { o.noLLM = true })
	r.init(t)

	_, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	require.True(t, r.gate.SpeechStart(nil))
	testutil.AssertEventuallyState(t, r.o, voice.StateTranscribing, waitTimeout)

	_, err = r.o.Dispatch(testutil.TestContext(t), voice.MicReleased())
	require.NoError(t, err)

	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	assert.Empty(t, r.stt.Calls())
	assert.Empty(t, r.lastTurn(t).RawTranscript)
	assert.Contains(t, strings.Join(r.o.Logs(), "\n"), "VAD: no buffered speech")
}

func TestOrchestrator_MicReleasedAfterSpeechEndIsIgnored(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) { r.stt.WithDelay(100 * time.Millisecond) })
	r.init(t)

	_, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	require.True(t, r.gate.SpeechStart(testutil.Tone(160, 0.5)))
	require.True(t, r.gate.SpeechEnd())
	testutil.AssertEventuallyTrue(t, func() bool { return len(r.stt.Calls()) == 1 }, waitTimeout)

	snap, err := r.o.Dispatch(testutil.TestContext(t), voice.MicReleased())
	require.NoError(t, err)
	assert.Equal(t, voice.StateTranscribing, snap.State)

	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	assert.Len(t, r.stt.Calls(), 1)
}

func TestOrchestrator_StopDuringPlayback(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.llm = mocks.NewMockLanguageModel(fixtures.SectionACompletion)
		// 每句 1 秒
		r.synth.WithSamples(16000)
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StatePlaying, waitTimeout)

	snap, err := r.o.Stop(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)
	assert.GreaterOrEqual(t, r.out.Releases(), 1)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, voice.StateIdle, r.o.State())
	assert.Len(t, r.out.Played(), 1)
	assert.Equal(t, 1, r.recorder.Turns(voice.OutcomeCancelled))

	_, ok := r.o.LastTurn()
	assert.False(t, ok)
}

func TestOrchestrator_InterruptThenUserStop(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.llm.WithDelay(time.Second)
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateInferring, waitTimeout)

	snap, err := r.o.Interrupt(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, voice.StateInterrupted, snap.State)

	// 被取消的推理结果迟到也不会推进状态
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, voice.StateInterrupted, r.o.State())

	snap, err = r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	assert.Equal(t, voice.StateInterrupted, snap.State)

	snap, err = r.o.Dispatch(testutil.TestContext(t), voice.UserStop())
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)
	assert.Equal(t, 1, r.recorder.Turns(voice.OutcomeInterrupted))
	assert.Empty(t, r.synth.Calls())
}

func TestOrchestrator_InterruptWhenIdleIsNoop(t *testing.T) {
	r := newRig(t)
	r.init(t)

	snap, err := r.o.Interrupt(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)
}

func TestOrchestrator_StaleTranscriptionDroppedAfterStop(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.stt.WithDelay(100 * time.Millisecond)
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyTrue(t, func() bool { return len(r.stt.Calls()) == 1 }, waitTimeout)

	snap, err := r.o.Stop(testutil.TestContext(t))
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, voice.StateIdle, r.o.State())
	assert.Empty(t, r.llm.Prompts())
}

func TestOrchestrator_SeedFailureSelfHeals(t *testing.T) {
	seedErr := errors.New("disk full")
	r := newRig(t, func(r *rig, o *rigOptions) {
		r.resolver.WithSeedError(seedErr)
		o.extra = append(o.extra, voice.WithSeeder(r.resolver))
	})

	ch, cancel := r.o.Subscribe()
	defer cancel()

	err := r.o.Initialize(testutil.TestContext(t))
	assert.ErrorIs(t, err, seedErr)
	assert.Equal(t, voice.StateIdle, r.o.State())

	states := testutil.CollectStates(ch, voice.StateIdle, waitTimeout)
	assert.Equal(t, []voice.State{voice.StateError, voice.StateIdle}, states)
	assert.Contains(t, strings.Join(r.o.Logs(), "\n"), "DB init failed")
}

func TestOrchestrator_SeedsOnInitialize(t *testing.T) {
	r := newRig(t, func(r *rig, o *rigOptions) {
		o.extra = append(o.extra, voice.WithSeeder(r.resolver))
	})
	r.init(t)
	assert.Contains(t, strings.Join(r.o.Logs(), "\n"), "DB ready: 2 records seeded")
}

func TestOrchestrator_LogsClearedOnMicPressed(t *testing.T) {
	r := newRig(t)
	r.init(t)
	require.Contains(t, strings.Join(r.o.Logs(), "\n"), "STT ready")

	lines, cancel := r.o.SubscribeLogs()
	defer cancel()

	_, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)

	logs := r.o.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "Mic pressed: 녹음 시작", logs[0])

	line, ok := testutil.WaitForChannel(lines, waitTimeout)
	require.True(t, ok)
	assert.Equal(t, "Mic pressed: 녹음 시작", line)
}

func TestOrchestrator_LanguageModelPanicRecovers(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.llm.WithPanic("native crash")
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	assert.Equal(t, []string{"불 켜줘"}, r.synth.Calls())
}

func TestOrchestrator_TranscriberPanicRecovers(t *testing.T) {
	r := newRig(t, func(r *rig, o *rigOptions) {
		o.noLLM = true
		r.stt.WithPanic("segfault")
	})
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateIdle, waitTimeout)
	assert.Empty(t, r.synth.Calls())
}

func TestOrchestrator_VadStartFailure(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) {
		r.gate.WithStartError(errors.New("mic busy"))
	})
	r.init(t)

	snap, err := r.o.Dispatch(testutil.TestContext(t), voice.MicPressed())
	require.NoError(t, err)
	assert.Equal(t, voice.StateRecording, snap.State)
	assert.Contains(t, strings.Join(r.o.Logs(), "\n"), "VAD start failed: mic busy")

	snap, err = r.o.Dispatch(testutil.TestContext(t), voice.MicReleased())
	require.NoError(t, err)
	assert.Equal(t, voice.StateIdle, snap.State)
}

func TestOrchestrator_Close(t *testing.T) {
	r := newRig(t)
	r.init(t)

	ch, _ := r.o.Subscribe()
	require.NoError(t, r.o.Close(context.Background()))
	require.NoError(t, r.o.Close(context.Background()))

	_, ok := <-ch
	assert.False(t, ok)
	assert.GreaterOrEqual(t, r.out.Releases(), 1)

	_, err := r.o.Dispatch(context.Background(), voice.MicPressed())
	assert.ErrorIs(t, err, voice.ErrClosed)
	assert.ErrorIs(t, r.o.Initialize(context.Background()), voice.ErrClosed)
}

func TestOrchestrator_CloseGivesUpOnHungSynthesis(t *testing.T) {
	r := newRig(t, func(r *rig, _ *rigOptions) { r.synth.Gated() })
	r.init(t)

	r.speak(t)
	testutil.AssertEventuallyState(t, r.o, voice.StateSynthesizing, waitTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.o.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	ch, _ := r.o.Subscribe()
	_, ok := <-ch
	assert.False(t, ok)

	// 放行挂起的合成，让后台任务退出
	r.synth.Release(1)
}
