package engine

import (
	"errors"
	"io"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// SampleSource 按帧读取单声道 float32 采样
type SampleSource interface {
	// ReadFrame 填充 frame，返回读到的采样数；io.EOF 表示输入结束
	ReadFrame(frame []float32) (int, error)
	Close() error
}

// SourceOpener 每次开始录音时打开一个新的采样源
type SourceOpener func() (SampleSource, error)

// EnergyGate 基于 RMS 能量的语音活动检测，实现 voice.VoiceActivityDetector。
//
// 检测到第一帧语音时回调 OnSpeechStart，语音段包含之前的预录帧；
// 连续 HangoverFrames 帧静音后回调 OnSpeechEnd 并自行停止。
// 录音中途调用 Stop 时，已缓冲的语音会被强制交给 OnSpeechEnd。
type EnergyGate struct {
	open   SourceOpener
	cfg    config.VADConfig
	logger *zap.Logger

	mu  sync.Mutex
	run *gateRun
}

type gateRun struct {
	h         voice.SpeechHandler
	src       SampleSource
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// 以下字段只由 loop 写，done 关闭后可安全读取
	speaking bool
	ended    bool
	buf      []float32
}

// NewEnergyGate 创建检测器
func NewEnergyGate(open SourceOpener, cfg config.VADConfig, logger *zap.Logger) *EnergyGate {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 512
	}
	if cfg.HangoverFrames <= 0 {
		cfg.HangoverFrames = 15
	}
	if cfg.PreRollFrames < 0 {
		cfg.PreRollFrames = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnergyGate{open: open, cfg: cfg, logger: logger.With(zap.String("component", "vad"))}
}

// Available 是否配置了采样源
func (g *EnergyGate) Available() bool { return g.open != nil }

// Start 打开采样源并开始检测；已有的检测会先被停止
func (g *EnergyGate) Start(h voice.SpeechHandler) error {
	if g.open == nil {
		return ErrNotConfigured
	}
	g.Stop()

	src, err := g.open()
	if err != nil {
		return err
	}
	run := &gateRun{h: h, src: src, stop: make(chan struct{}), done: make(chan struct{})}

	g.mu.Lock()
	g.run = run
	g.mu.Unlock()

	go g.loop(run)
	return nil
}

// Stop 停止检测；正在说话时把已缓冲的语音交给 OnSpeechEnd
func (g *EnergyGate) Stop() {
	g.mu.Lock()
	run := g.run
	g.run = nil
	g.mu.Unlock()
	if run == nil {
		return
	}

	close(run.stop)
	run.closeSource()
	<-run.done

	if run.speaking && !run.ended && len(run.buf) > 0 {
		g.logger.Debug("force flushing buffered speech", zap.Int("samples", len(run.buf)))
		run.h.OnSpeechEnd(run.buf)
	}
}

func (r *gateRun) closeSource() {
	r.closeOnce.Do(func() { _ = r.src.Close() })
}

func (g *EnergyGate) loop(run *gateRun) {
	defer close(run.done)

	frame := make([]float32, g.cfg.FrameSize)
	preRoll := make([][]float32, 0, g.cfg.PreRollFrames)
	silent := 0

	for {
		select {
		case <-run.stop:
			return
		default:
		}

		n, err := run.src.ReadFrame(frame)
		if n > 0 {
			chunk := frame[:n]
			loud := RMS(chunk) >= g.cfg.Threshold

			switch {
			case !run.speaking && loud:
				run.speaking = true
				silent = 0
				for _, f := range preRoll {
					run.buf = append(run.buf, f...)
				}
				run.buf = append(run.buf, chunk...)
				g.logger.Debug("speech detected")
				run.h.OnSpeechStart()
			case run.speaking:
				run.buf = append(run.buf, chunk...)
				if loud {
					silent = 0
				} else if silent++; silent >= g.cfg.HangoverFrames {
					g.finish(run)
					return
				}
			case g.cfg.PreRollFrames > 0:
				if len(preRoll) == g.cfg.PreRollFrames {
					preRoll = append(preRoll[:0], preRoll[1:]...)
				}
				preRoll = append(preRoll, append([]float32(nil), chunk...))
			}
		}

		if err != nil {
			select {
			case <-run.stop:
				// Stop 关闭采样源导致的读取错误
			default:
				if !errors.Is(err, io.EOF) {
					g.logger.Warn("sample source failed", zap.Error(err))
				}
				if run.speaking {
					g.finish(run)
				}
			}
			return
		}
	}
}

// finish 交付语音段并停止采样源
func (g *EnergyGate) finish(run *gateRun) {
	run.ended = true
	run.closeSource()
	g.logger.Debug("speech ended", zap.Int("samples", len(run.buf)))
	run.h.OnSpeechEnd(run.buf)
}

// RMS 均方根能量
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
