package voice

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// 🎙️ 能力接口
// =============================================================================

var (
	// ErrCapabilityUnavailable 能力未初始化或预热失败
	ErrCapabilityUnavailable = errors.New("voice: capability unavailable")
	// ErrNoIntent LLM 输出中没有可解析的意图调用
	ErrNoIntent = errors.New("voice: no intent in completion")
	// ErrClosed 编排器已关闭
	ErrClosed = errors.New("voice: orchestrator closed")
	// ErrAlreadyInitialized Initialize 只能调用一次
	ErrAlreadyInitialized = errors.New("voice: already initialized")
)

// Audio 一段合成音频
type Audio struct {
	Samples    []float32 `json:"-"`
	SampleRate int       `json:"sample_rate"`
}

// Duration 播放时长 samples*1000/sampleRate，精确到毫秒
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(len(a.Samples))*1000/int64(a.SampleRate)) * time.Millisecond
}

// Transcriber 语音转文本
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Synthesizer 文本转语音
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, speakerID int, speed float64) (Audio, error)
}

// LanguageModel 单次补全推理
type LanguageModel interface {
	Infer(ctx context.Context, prompt string) (string, error)
}

// SpeechHandler 接收 VAD 回调
type SpeechHandler interface {
	OnSpeechStart()
	OnSpeechEnd(samples []float32)
}

// VoiceActivityDetector 监听麦克风并切分语音段。
//
// Start 之后检测到语音时调用一次 OnSpeechStart，语音结束时调用
// OnSpeechEnd 并自行停止。Stop 会把已缓冲的语音强制交给 OnSpeechEnd。
type VoiceActivityDetector interface {
	Start(h SpeechHandler) error
	Stop()
}

// AudioOutput 音频输出设备，由编排器独占
type AudioOutput interface {
	Valid() bool
	Reinit(sampleRate int) error
	Play(ctx context.Context, a Audio) error
	Stop()
	Release() error
}

// Warmer 可选：初始化阶段预热
type Warmer interface {
	Warmup(ctx context.Context) error
}

// Availability 可选：报告能力是否可用
type Availability interface {
	Available() bool
}

// SampleRater 可选：合成器的输出采样率
type SampleRater interface {
	SampleRate() int
}

// Capabilities 编排器依赖的外部能力，任一项可为 nil
type Capabilities struct {
	Transcriber Transcriber
	Synthesizer Synthesizer
	LLM         LanguageModel
	VAD         VoiceActivityDetector
	Output      AudioOutput
}

func available(c any) bool {
	if c == nil {
		return false
	}
	if a, ok := c.(Availability); ok {
		return a.Available()
	}
	return true
}

func warmup(ctx context.Context, c any) error {
	if !available(c) {
		return ErrCapabilityUnavailable
	}
	if w, ok := c.(Warmer); ok {
		return w.Warmup(ctx)
	}
	return nil
}
