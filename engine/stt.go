package engine

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/pool"
)

// HTTPTranscriber OpenAI 兼容的语音识别客户端，实现 voice.Transcriber
type HTTPTranscriber struct {
	httpEngine
	language string
}

// NewHTTPTranscriber 创建语音识别客户端；language 为空时由服务端自动检测
func NewHTTPTranscriber(cfg config.EngineConfig, language string, opts ...Option) *HTTPTranscriber {
	return &HTTPTranscriber{
		httpEngine: newHTTPEngine("stt", cfg, 60*time.Second, opts),
		language:   language,
	}
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// Transcribe 把采样编码为 WAV 上传，返回去掉首尾空白的文本
func (t *HTTPTranscriber) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	// 响应解码完成后才归还缓冲区
	buf := pool.BufferPool.Get()
	defer pool.BufferPool.Put(buf)
	writer := multipart.NewWriter(buf)

	part, err := writer.CreateFormFile("file", "speech.wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(EncodeWAV(samples, sampleRate)); err != nil {
		return "", fmt.Errorf("failed to write audio: %w", err)
	}
	if t.cfg.Model != "" {
		_ = writer.WriteField("model", t.cfg.Model)
	}
	if t.language != "" {
		_ = writer.WriteField("language", t.language)
	}
	_ = writer.WriteField("response_format", "json")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := t.newRequest(ctx, "/v1/audio/transcriptions", writer.FormDataContentType(), buf)
	if err != nil {
		return "", err
	}
	var resp transcriptionResponse
	if err := t.doJSON(req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// Warmup 上传 100ms 静音
func (t *HTTPTranscriber) Warmup(ctx context.Context) error {
	_, err := t.Transcribe(ctx, make([]float32, 1600), 16000)
	return err
}
