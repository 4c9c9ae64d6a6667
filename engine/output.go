package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// 每次写入的采样数，写入之间检查取消
const writeChunkSamples = 4096

// SinkOpener 以指定采样率打开一个 PCM 写端
type SinkOpener func(sampleRate int) (io.WriteCloser, error)

// PCMOutput 把 float32 小端 PCM 写入外部播放器，实现 voice.AudioOutput
type PCMOutput struct {
	open   SinkOpener
	logger *zap.Logger

	mu   sync.Mutex
	w    io.WriteCloser
	rate int
}

// NewPCMOutput 创建音频输出，需调用 Reinit 后才可播放
func NewPCMOutput(open SinkOpener, logger *zap.Logger) *PCMOutput {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PCMOutput{open: open, logger: logger.With(zap.String("component", "audio_output"))}
}

func (o *PCMOutput) Available() bool { return o.open != nil }

// Valid 写端是否打开
func (o *PCMOutput) Valid() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w != nil
}

// Reinit 关闭旧写端并以新的采样率重新打开
func (o *PCMOutput) Reinit(sampleRate int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reopenLocked(sampleRate)
}

func (o *PCMOutput) reopenLocked(sampleRate int) error {
	if o.open == nil {
		return ErrNotConfigured
	}
	if sampleRate <= 0 {
		return fmt.Errorf("engine: invalid sample rate %d", sampleRate)
	}
	if o.w != nil {
		_ = o.w.Close()
		o.w = nil
	}
	w, err := o.open(sampleRate)
	if err != nil {
		return fmt.Errorf("open audio sink: %w", err)
	}
	o.w, o.rate = w, sampleRate
	o.logger.Debug("audio output opened", zap.Int("sample_rate", sampleRate))
	return nil
}

// Play 写入一段音频；采样率与当前不同时重新打开写端
func (o *PCMOutput) Play(ctx context.Context, audio voice.Audio) error {
	o.mu.Lock()
	if o.w == nil {
		o.mu.Unlock()
		return ErrOutputReleased
	}
	if audio.SampleRate > 0 && audio.SampleRate != o.rate {
		if err := o.reopenLocked(audio.SampleRate); err != nil {
			o.mu.Unlock()
			return err
		}
	}
	w := o.w
	o.mu.Unlock()

	// 写入不持锁，Stop 关闭写端会让阻塞中的写入返回错误
	buf := make([]byte, 4*writeChunkSamples)
	for start := 0; start < len(audio.Samples); start += writeChunkSamples {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+writeChunkSamples, len(audio.Samples))
		n := encodeFloat32LE(buf, audio.Samples[start:end])
		if _, err := w.Write(buf[:n]); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
	}
	return nil
}

// Stop 关闭写端，丢弃播放器中尚未播放的音频
func (o *PCMOutput) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w != nil {
		if err := o.w.Close(); err != nil {
			o.logger.Debug("close audio sink", zap.Error(err))
		}
		o.w = nil
	}
}

// Release 释放写端
func (o *PCMOutput) Release() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.w == nil {
		return nil
	}
	err := o.w.Close()
	o.w = nil
	return err
}

func encodeFloat32LE(dst []byte, samples []float32) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint32(dst[4*i:], math.Float32bits(s))
	}
	return 4 * len(samples)
}
