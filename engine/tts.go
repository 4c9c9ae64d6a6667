package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// 合成音频的上限，约为 22kHz 下 5 分钟的 16bit 单声道
const maxAudioBytes = 16 << 20

// HTTPSynthesizer 语音合成客户端，实现 voice.Synthesizer 与 voice.SampleRater
type HTTPSynthesizer struct {
	httpEngine
	sampleRate atomic.Int64
}

// NewHTTPSynthesizer 创建语音合成客户端
func NewHTTPSynthesizer(cfg config.EngineConfig, opts ...Option) *HTTPSynthesizer {
	return &HTTPSynthesizer{httpEngine: newHTTPEngine("tts", cfg, 60*time.Second, opts)}
}

type synthesisRequest struct {
	Model string  `json:"model,omitempty"`
	Text  string  `json:"text"`
	SID   int     `json:"sid"`
	Speed float64 `json:"speed"`
}

// Synthesize 合成一句话，返回解码后的采样
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string, speakerID int, speed float64) (voice.Audio, error) {
	payload, err := json.Marshal(synthesisRequest{Model: s.cfg.Model, Text: text, SID: speakerID, Speed: speed})
	if err != nil {
		return voice.Audio{}, fmt.Errorf("failed to encode tts request: %w", err)
	}

	req, err := s.newRequest(ctx, "/v1/tts", "application/json", bytes.NewReader(payload))
	if err != nil {
		return voice.Audio{}, err
	}
	req.Header.Set("Accept", "audio/wav")

	resp, err := s.do(req)
	if err != nil {
		return voice.Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return voice.Audio{}, fmt.Errorf("failed to read tts audio: %w", err)
	}
	audio, err := DecodeWAV(data)
	if err != nil {
		return voice.Audio{}, err
	}
	if audio.SampleRate > 0 && s.sampleRate.Swap(int64(audio.SampleRate)) != int64(audio.SampleRate) {
		s.logger.Info("tts sample rate detected", zap.Int("sample_rate", audio.SampleRate))
	}
	return audio, nil
}

// Warmup 合成一个短句，同时得到模型的采样率
func (s *HTTPSynthesizer) Warmup(ctx context.Context) error {
	_, err := s.Synthesize(ctx, "안녕하세요.", 0, 1.0)
	return err
}

// SampleRate 最近一次合成的采样率，未合成过时为 0
func (s *HTTPSynthesizer) SampleRate() int {
	return int(s.sampleRate.Load())
}
