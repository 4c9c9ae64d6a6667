package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
)

// 补全在 <end> 处截断，防止模型继续生成下一轮对话
var defaultStop = []string{"<end>", "<|im_end|>"}

// LLMClient OpenAI 兼容的文本补全客户端，实现 voice.LanguageModel
type LLMClient struct {
	httpEngine
}

// NewLLMClient 创建 LLM 客户端
func NewLLMClient(cfg config.EngineConfig, opts ...Option) *LLMClient {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 64
	}
	return &LLMClient{httpEngine: newHTTPEngine("llm", cfg, 30*time.Second, opts)}
}

type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
}

type completionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int    `json:"index"`
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Infer 发送补全请求，返回 choices[0].text
func (c *LLMClient) Infer(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt, c.cfg.MaxTokens)
}

// Warmup 发送 1 token 的补全，让服务端加载模型
func (c *LLMClient) Warmup(ctx context.Context) error {
	_, err := c.complete(ctx, "<|im_start|>", 1)
	return err
}

func (c *LLMClient) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	payload, err := json.Marshal(completionRequest{
		Model:     c.cfg.Model,
		Prompt:    prompt,
		MaxTokens: maxTokens,
		Stop:      defaultStop,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	req, err := c.newRequest(ctx, "/v1/completions", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	var resp completionResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Text, nil
}
