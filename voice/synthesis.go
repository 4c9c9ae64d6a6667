package voice

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🔊 合成流水线
// =============================================================================

// DefaultPlaybackPadding 每段播放后额外等待的尾部时长
const DefaultPlaybackPadding = 100 * time.Millisecond

// SynthesisPipeline 逐句合成并按原顺序播放
type SynthesisPipeline struct {
	synth  Synthesizer
	out    AudioOutput
	logger *zap.Logger

	speakerID int
	speed     float64
	padding   time.Duration
}

// NewSynthesisPipeline 创建流水线
func NewSynthesisPipeline(synth Synthesizer, out AudioOutput, logger *zap.Logger) *SynthesisPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynthesisPipeline{
		synth:   synth,
		out:     out,
		logger:  logger.With(zap.String("component", "synthesis")),
		speed:   1.0,
		padding: DefaultPlaybackPadding,
	}
}

type speakOptions struct {
	speakerID     int
	speed         float64
	padding       time.Duration
	onFirstAudio  func(time.Duration)
	onPlayStarted func()
}

// SpeakOption 单次 Speak 的参数
type SpeakOption func(*speakOptions)

// WithVoice 指定说话人和语速
func WithVoice(speakerID int, speed float64) SpeakOption {
	return func(o *speakOptions) {
		o.speakerID = speakerID
		if speed > 0 {
			o.speed = speed
		}
	}
}

// WithPadding 指定每段播放后的尾部等待
func WithPadding(d time.Duration) SpeakOption {
	return func(o *speakOptions) {
		if d >= 0 {
			o.padding = d
		}
	}
}

// OnFirstAudio 首段音频就绪时回调一次
func OnFirstAudio(fn func(latency time.Duration)) SpeakOption {
	return func(o *speakOptions) { o.onFirstAudio = fn }
}

// OnPlaybackStart 第一段开始播放时回调一次
func OnPlaybackStart(fn func()) SpeakOption {
	return func(o *speakOptions) { o.onPlayStarted = fn }
}

// SpeakResult 单次 Speak 的统计
type SpeakResult struct {
	Sentences   int           `json:"sentences"`
	Synthesized int           `json:"synthesized"`
	Played      int           `json:"played"`
	FirstAudio  time.Duration `json:"first_audio"`
}

type segment struct {
	index int
	text  string
	audio Audio
}

// Speak 阻塞直到播放完成、合成失败或 ctx 取消。
//
// 取消是协作式的：正在合成的句子会完成，但不再调度后续句子。
// 合成失败中止本次朗读并返回错误；播放失败只记录日志并继续下一句。
func (p *SynthesisPipeline) Speak(ctx context.Context, text string, opts ...SpeakOption) (SpeakResult, error) {
	o := speakOptions{speakerID: p.speakerID, speed: p.speed, padding: p.padding}
	for _, opt := range opts {
		opt(&o)
	}

	sentences := SplitSentences(text)
	res := SpeakResult{Sentences: len(sentences)}
	if len(sentences) == 0 {
		return res, nil
	}
	if p.synth == nil || p.out == nil {
		return res, ErrCapabilityUnavailable
	}

	p.logger.Debug("speaking", zap.Int("sentences", len(sentences)))

	// 容量等于句数，生产者永不阻塞
	segments := make(chan segment, len(sentences))
	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	g.Go(func() error {
		defer close(segments)
		for i, s := range sentences {
			if gctx.Err() != nil {
				return nil
			}
			audio, err := p.synth.Synthesize(context.WithoutCancel(gctx), s, o.speakerID, o.speed)
			if err != nil {
				return fmt.Errorf("synthesize sentence %d: %w", i, err)
			}
			if res.Synthesized == 0 {
				res.FirstAudio = time.Since(start)
				if o.onFirstAudio != nil {
					o.onFirstAudio(res.FirstAudio)
				}
			}
			res.Synthesized++
			segments <- segment{index: i, text: s, audio: audio}
		}
		return nil
	})

	g.Go(func() error {
		started := false
		for seg := range segments {
			if gctx.Err() != nil {
				return nil
			}
			if !started {
				started = true
				if o.onPlayStarted != nil {
					o.onPlayStarted()
				}
			}
			if p.play(gctx, seg, o.padding) {
				res.Played++
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (p *SynthesisPipeline) play(ctx context.Context, seg segment, padding time.Duration) bool {
	if !p.out.Valid() {
		if ctx.Err() != nil {
			return false
		}
		if err := p.out.Reinit(seg.audio.SampleRate); err != nil {
			p.logger.Error("audio output not initialized", zap.Int("sentence", seg.index), zap.Error(err))
			return false
		}
		// 停止先取消 ctx 再释放输出；Reinit 期间被停止时由这里收尾
		if ctx.Err() != nil {
			if err := p.out.Release(); err != nil {
				p.logger.Warn("failed to release audio output", zap.Error(err))
			}
			return false
		}
	}

	p.logger.Debug("playing", zap.Int("sentence", seg.index), zap.String("text", seg.text),
		zap.Int("samples", len(seg.audio.Samples)))

	if err := p.out.Play(ctx, seg.audio); err != nil {
		p.logger.Error("audio playback failed", zap.Int("sentence", seg.index), zap.Error(err))
		return false
	}

	timer := time.NewTimer(seg.audio.Duration() + padding)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
