package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/api"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/types"
)

// =============================================================================
// 🛠️ 管理端 Handler
// =============================================================================

// Catalogue 应答目录的管理能力，*store.Store 满足
type Catalogue interface {
	Seed(ctx context.Context) (int, error)
	Intents(ctx context.Context) []store.IntentRecord
	Stats() store.Stats
}

// Invalidator 清空应答缓存，*store.CachedResolver 满足
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// AdminHandler 管理端处理器，路由由 JWT 中间件保护
type AdminHandler struct {
	catalogue Catalogue
	cache     Invalidator
	logger    *zap.Logger
}

// NewAdminHandler 创建管理端处理器；cache 可为 nil
func NewAdminHandler(catalogue Catalogue, cache Invalidator, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{catalogue: catalogue, cache: cache, logger: logger.With(zap.String("handler", "admin"))}
}

// HandleSeed 处理 POST /v1/admin/seed
// @Summary 写入内置应答目录（幂等）
// @Tags 管理
// @Produce json
// @Success 200 {object} Response
// @Security BearerAuth
// @Router /v1/admin/seed [post]
func (h *AdminHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalogue.Seed(r.Context())
	if err != nil {
		WriteError(w, types.NewInternalError("seed failed").WithCause(err), h.logger)
		return
	}
	if n > 0 && h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("answer cache invalidation failed", zap.Error(err))
		}
	}
	h.logger.Info("catalogue seeded", zap.Int("inserted", n))
	WriteSuccess(w, api.SeedResponse{Inserted: n, Stats: h.catalogue.Stats()})
}

// HandleIntents 处理 GET /v1/admin/intents
// @Summary 列出应答目录
// @Tags 管理
// @Produce json
// @Success 200 {object} Response
// @Security BearerAuth
// @Router /v1/admin/intents [get]
func (h *AdminHandler) HandleIntents(w http.ResponseWriter, r *http.Request) {
	intents := h.catalogue.Intents(r.Context())
	if intents == nil {
		intents = []store.IntentRecord{}
	}
	WriteSuccess(w, api.IntentsResponse{Intents: intents, Total: len(intents)})
}
