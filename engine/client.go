package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/ctxkeys"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/tlsutil"
)

// Option 引擎选项
type Option func(*httpEngine)

// WithHTTPClient 替换默认 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(e *httpEngine) { e.client = c }
}

// WithBreaker 替换默认熔断配置，Threshold <= 0 关闭熔断
func WithBreaker(cfg BreakerConfig) Option {
	return func(e *httpEngine) { e.breakerCfg = cfg }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *httpEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// httpEngine 三种 HTTP 引擎共用的请求逻辑
type httpEngine struct {
	name       string
	cfg        config.EngineConfig
	client     *http.Client
	logger     *zap.Logger
	breakerCfg BreakerConfig
	breaker    *breaker
}

func newHTTPEngine(name string, cfg config.EngineConfig, defaultTimeout time.Duration, opts []Option) httpEngine {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	e := httpEngine{
		name:       name,
		cfg:        cfg,
		logger:     zap.NewNop(),
		breakerCfg: breakerConfigFrom(cfg),
	}
	for _, opt := range opts {
		opt(&e)
	}
	e.logger = e.logger.With(zap.String("engine", name))
	e.breaker = newBreaker(e.breakerCfg, e.logger)

	if e.client == nil {
		client, err := tlsutil.NewHTTPClient(timeout, tlsutil.ClientConfig{CAFile: cfg.CAFile})
		if err != nil {
			e.logger.Warn("engine CA file ignored", zap.String("ca_file", cfg.CAFile), zap.Error(err))
			client = tlsutil.DefaultHTTPClient(timeout)
		}
		e.client = client
	}
	return e
}

func breakerConfigFrom(cfg config.EngineConfig) BreakerConfig {
	bc := DefaultBreakerConfig()
	if cfg.BreakerThreshold != 0 {
		bc.Threshold = cfg.BreakerThreshold
	}
	if cfg.BreakerReset > 0 {
		bc.ResetTimeout = cfg.BreakerReset
	}
	return bc
}

// Available 是否配置了服务地址
func (e *httpEngine) Available() bool {
	return strings.TrimSpace(e.cfg.BaseURL) != ""
}

func (e *httpEngine) endpoint(path string) string {
	return strings.TrimRight(e.cfg.BaseURL, "/") + path
}

func (e *httpEngine) newRequest(ctx context.Context, path, contentType string, body io.Reader) (*http.Request, error) {
	if !e.Available() {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}
	if id, ok := ctxkeys.TurnID(ctx); ok {
		req.Header.Set("X-Turn-ID", id)
	}
	return req, nil
}

// CircuitState 当前熔断状态
func (e *httpEngine) CircuitState() BreakerState {
	return e.breaker.current()
}

// do 发送请求，非 2xx 时返回 *Error；调用方负责关闭 Body
func (e *httpEngine) do(req *http.Request) (*http.Response, error) {
	if !e.breaker.allow() {
		return nil, fmt.Errorf("%s: %w", e.name, ErrCircuitOpen)
	}
	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		e.breaker.record(err)
		return nil, fmt.Errorf("%s request failed: %w", e.name, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := readErrorMessage(resp.Body)
		e.logger.Warn("engine returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg),
			zap.Duration("latency", time.Since(start)))
		herr := mapHTTPError(e.name, resp.StatusCode, msg)
		e.breaker.record(herr)
		return nil, herr
	}
	e.breaker.record(nil)
	e.logger.Debug("engine request done",
		zap.String("url", req.URL.Path),
		zap.Duration("latency", time.Since(start)))
	return resp, nil
}

// doJSON 发送请求并把响应解码到 out
func (e *httpEngine) doJSON(req *http.Request, out any) error {
	resp, err := e.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", e.name, err)
	}
	return nil
}
