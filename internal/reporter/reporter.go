package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/config"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/pool"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/internal/tlsutil"
)

// 上报类型，同时是收集端路径的最后一段
const (
	KindSTT = "stt"
	KindLLM = "llm"
	KindTTS = "tts"
)

const pathPrefix = "suda/"

// DeliveryObserver 记录上报结果，由 metrics.Collector 实现
type DeliveryObserver interface {
	RecordReport(kind string, ok bool)
}

// payload 收集端请求体
type payload struct {
	Data         string  `json:"data"`
	ResponseTime float64 `json:"response_time"`
}

// Reporter 异步上报器
type Reporter struct {
	baseURL  string
	client   *http.Client
	pool     *pool.GoroutinePool
	observer DeliveryObserver
	logger   *zap.Logger
}

// Option 配置 Reporter
type Option func(*Reporter)

// WithHTTPClient 替换 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(r *Reporter) {
		if c != nil {
			r.client = c
		}
	}
}

// WithObserver 设置上报结果观察者
func WithObserver(o DeliveryObserver) Option {
	return func(r *Reporter) { r.observer = o }
}

// New 创建上报器；BaseURL 为空时返回错误
func New(cfg config.ReporterConfig, logger *zap.Logger, opts ...Option) (*Reporter, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("reporter: base_url is required")
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := &Reporter{
		baseURL: base,
		client:  tlsutil.DefaultHTTPClient(timeout),
		logger:  logger.With(zap.String("component", "reporter")),
	}
	for _, opt := range opts {
		opt(r)
	}

	poolCfg := pool.DefaultGoroutinePoolConfig()
	if cfg.Workers > 0 {
		poolCfg.MaxWorkers = cfg.Workers
	}
	if cfg.QueueSize > 0 {
		poolCfg.QueueSize = cfg.QueueSize
	}
	poolCfg.TaskTimeout = timeout
	poolCfg.PanicHandler = func(v any) {
		r.logger.Error("report task panicked", zap.Any("panic", v))
	}
	r.pool = pool.NewGoroutinePool(poolCfg)
	return r, nil
}

// ReportSTT 上报转写结果，空白文本不上报
func (r *Reporter) ReportSTT(text string, latency time.Duration) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.enqueue(KindSTT, text, latency)
}

// ReportLLM 上报原始补全
func (r *Reporter) ReportLLM(text string, latency time.Duration) {
	r.enqueue(KindLLM, text, latency)
}

// ReportTTS 上报应答文本与首段音频耗时
func (r *Reporter) ReportTTS(text string, firstAudio time.Duration) {
	r.enqueue(KindTTS, text, firstAudio)
}

func (r *Reporter) enqueue(kind, text string, latency time.Duration) {
	p := payload{Data: text, ResponseTime: float64(latency.Microseconds()) / 1000}
	err := r.pool.Submit(func(ctx context.Context) error {
		err := r.send(ctx, kind, p)
		r.observe(kind, err == nil)
		if err != nil {
			// 收集端不可达是常态，不升级为错误日志
			r.logger.Debug("report skipped", zap.String("kind", kind), zap.Error(err))
			return nil
		}
		r.logger.Debug("report sent", zap.String("kind", kind), zap.String("data", text))
		return nil
	})
	if err != nil {
		r.observe(kind, false)
		r.logger.Warn("report dropped", zap.String("kind", kind), zap.Error(err))
	}
}

func (r *Reporter) send(ctx context.Context, kind string, p payload) error {
	buf := pool.BufferPool.Get()
	defer pool.BufferPool.Put(buf)
	if err := json.NewEncoder(buf).Encode(p); err != nil {
		return fmt.Errorf("encode %s report: %w", kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+pathPrefix+kind, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}

func (r *Reporter) observe(kind string, ok bool) {
	if r.observer != nil {
		r.observer.RecordReport(kind, ok)
	}
}

// Stats 返回队列统计
func (r *Reporter) Stats() pool.GoroutinePoolStats {
	return r.pool.Stats()
}

// Close 等待排队中的上报发送完毕，ctx 到期后放弃剩余上报
func (r *Reporter) Close(ctx context.Context) error {
	return r.pool.Close(ctx)
}
