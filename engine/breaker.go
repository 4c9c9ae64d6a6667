package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrCircuitOpen 引擎连续失败后熔断，请求不再发出
var ErrCircuitOpen = errors.New("engine: circuit open")

// BreakerState 熔断器状态
type BreakerState int

const (
	// BreakerClosed 正常放行
	BreakerClosed BreakerState = iota
	// BreakerOpen 熔断中，直接失败
	BreakerOpen
	// BreakerHalfOpen 放行一个探测请求
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	// Threshold 连续失败多少次后熔断，<= 0 关闭熔断
	Threshold int
	// ResetTimeout 熔断后多久放行探测请求
	ResetTimeout time.Duration
}

// DefaultBreakerConfig 连续 3 次失败熔断 30 秒
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Threshold: 3, ResetTimeout: 30 * time.Second}
}

// breaker 只统计传输错误与可重试的 HTTP 错误；4xx 说明服务在线，取消不计入
type breaker struct {
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool
}

func newBreaker(cfg BreakerConfig, logger *zap.Logger) *breaker {
	return &breaker{cfg: cfg, logger: logger, now: time.Now}
}

// allow 判断本次请求能否发出
func (b *breaker) allow() bool {
	if b == nil || b.cfg.Threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return false
		}
		b.setState(BreakerHalfOpen)
		b.probing = true
		return true
	case BreakerHalfOpen:
		// 同一时间只有一个探测请求
		if b.probing {
			return false
		}
		b.probing = true
		return true
	default:
		return true
	}
}

// record 记录请求结果
func (b *breaker) record(err error) {
	if b == nil || b.cfg.Threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if !countsAsFailure(err) {
		b.failures = 0
		if b.state != BreakerClosed {
			b.setState(BreakerClosed)
		}
		return
	}

	b.failures++
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.Threshold {
		b.openedAt = b.now()
		if b.state != BreakerOpen {
			b.setState(BreakerOpen)
		}
	}
}

func (b *breaker) current() BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *breaker) setState(to BreakerState) {
	b.logger.Info("engine circuit state changed",
		zap.String("from", b.state.String()),
		zap.String("to", to.String()),
		zap.Int("failures", b.failures))
	b.state = to
}

func countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return true
}
