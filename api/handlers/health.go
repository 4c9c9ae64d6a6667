package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// 就绪检查整体超时
const readyTimeout = 3 * time.Second

// 健康状态取值
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthCheck 单项依赖检查，database.PoolManager 与 cache.Manager 直接满足
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

type registeredCheck struct {
	HealthCheck
	critical bool
}

// HealthHandler 存活与就绪探针
type HealthHandler struct {
	logger  *zap.Logger
	started time.Time

	mu     sync.RWMutex
	checks []registeredCheck
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status   string `json:"status"` // "pass", "fail", "warn"
	Critical bool   `json:"critical"`
	Message  string `json:"message,omitempty"`
	Latency  string `json:"latency,omitempty"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{logger: logger, started: time.Now()}
}

// Register 注册关键检查，失败时就绪探针返回 503
func (h *HealthHandler) Register(check HealthCheck) {
	h.add(check, true)
}

// RegisterOptional 注册可降级的检查，失败时状态为 degraded 但仍返回 200
func (h *HealthHandler) RegisterOptional(check HealthCheck) {
	h.add(check, false)
}

func (h *HealthHandler) add(check HealthCheck, critical bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, registeredCheck{HealthCheck: check, critical: critical})
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleLive 存活探针，进程能响应即健康
// @Summary 存活探针
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "进程存活"
// @Router /health [get]
// @Router /healthz [get]
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
	})
}

// HandleReady 就绪探针，并发执行全部检查
// @Summary 就绪探针
// @Description 关键依赖失败返回 503，可选依赖失败标记为 degraded
// @Tags 健康
// @Produce json
// @Success 200 {object} HealthStatus "可以接待顾客"
// @Failure 503 {object} HealthStatus "关键依赖不可用"
// @Router /ready [get]
// @Router /readyz [get]
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	status := h.evaluate(r.Context())
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	WriteJSON(w, code, status)
}

func (h *HealthHandler) evaluate(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	h.mu.RLock()
	checks := append([]registeredCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			res := CheckResult{Status: "pass", Critical: c.critical, Latency: time.Since(start).String()}
			if err != nil {
				res.Status = "warn"
				if c.critical {
					res.Status = "fail"
				}
				res.Message = err.Error()
				h.logger.Warn("health check failed",
					zap.String("check", c.Name()),
					zap.Bool("critical", c.critical),
					zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Truncate(time.Second).String(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	for i, c := range checks {
		status.Checks[c.Name()] = results[i]
		switch results[i].Status {
		case "fail":
			status.Status = StatusUnhealthy
		case "warn":
			if status.Status == StatusHealthy {
				status.Status = StatusDegraded
			}
		}
	}
	return status
}

// HandleVersion 处理 /version 请求
// @Summary 版本信息
// @Tags 健康
// @Produce json
// @Success 200 {object} map[string]string "版本信息"
// @Router /version [get]
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	info := map[string]string{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, info)
	}
}

// =============================================================================
// 🔧 内置检查
// =============================================================================

// CheckFunc 以函数实现的健康检查
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewCheck 创建健康检查
func NewCheck(name string, fn func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string                    { return c.name }
func (c *CheckFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// VoiceReadyCheck 编排器完成初始化后才就绪
func VoiceReadyCheck(state func() voice.State) *CheckFunc {
	return NewCheck("voice", func(context.Context) error {
		if s := state(); s == voice.StateInit {
			return fmt.Errorf("orchestrator still in %s", s)
		}
		return nil
	})
}

// EnginesCheck 列出不可用的引擎；缺引擎时对话会降级为部分流程
func EnginesCheck(availability func() map[string]bool) *CheckFunc {
	return NewCheck("engines", func(context.Context) error {
		var down []string
		for name, ok := range availability() {
			if !ok {
				down = append(down, name)
			}
		}
		if len(down) == 0 {
			return nil
		}
		sort.Strings(down)
		return fmt.Errorf("unavailable: %s", strings.Join(down, ", "))
	})
}
