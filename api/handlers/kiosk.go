package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/api"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/types"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// =============================================================================
// 🎙️ 终端对话 Handler
// =============================================================================

// 等待事件循环处理事件的上限
const dispatchTimeout = 3 * time.Second

// Conversation 编排器对控制面暴露的能力，*voice.Orchestrator 满足
type Conversation interface {
	Dispatch(ctx context.Context, ev voice.Event) (voice.Snapshot, error)
	Stop(ctx context.Context) (voice.Snapshot, error)
	Interrupt(ctx context.Context) (voice.Snapshot, error)
	Snapshot() voice.Snapshot
	Logs() []string
	LastTurn() (voice.ConversationTurn, bool)
	Availability() map[string]bool
}

// KioskHandler 终端对话处理器
type KioskHandler struct {
	conv     Conversation
	resolver voice.AnswerResolver
	locale   func() string
	logger   *zap.Logger
}

// NewKioskHandler 创建终端对话处理器；locale 返回当前配置的应答语言
func NewKioskHandler(conv Conversation, resolver voice.AnswerResolver, locale func() string, logger *zap.Logger) *KioskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locale == nil {
		locale = func() string { return "ko" }
	}
	return &KioskHandler{
		conv:     conv,
		resolver: resolver,
		locale:   locale,
		logger:   logger.With(zap.String("handler", "kiosk")),
	}
}

// 外部可投递的事件；VAD/STT/LLM/TTS 事件只由编排器内部产生
var externalEvents = map[voice.EventType]bool{
	voice.EventMicPressed:  true,
	voice.EventMicReleased: true,
	voice.EventUserStop:    true,
	voice.EventSystemError: true,
}

// HandleEvent 处理 POST /v1/kiosk/events
// @Summary 投递对话事件
// @Tags 终端
// @Accept json
// @Produce json
// @Param request body api.EventRequest true "事件"
// @Success 202 {object} Response "事件已处理"
// @Failure 400 {object} Response "无效事件"
// @Router /v1/kiosk/events [post]
func (h *KioskHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.EventRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	ev, ok := toEvent(req)
	if !ok {
		WriteError(w, types.NewError(types.ErrInvalidEvent, "unsupported event type: "+req.Type), h.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	snap, err := h.conv.Dispatch(ctx, ev)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	WriteSuccessStatus(w, http.StatusAccepted, api.NewStateResponse(snap, nil))
}

func toEvent(req api.EventRequest) (voice.Event, bool) {
	t := voice.EventType(strings.ToLower(strings.TrimSpace(req.Type)))
	if !externalEvents[t] {
		return voice.Event{}, false
	}
	switch t {
	case voice.EventSystemError:
		msg := req.Error
		if msg == "" {
			msg = "reported by kiosk UI"
		}
		return voice.SystemError(errors.New(msg)), true
	default:
		return voice.Event{Type: t}, true
	}
}

// HandleStop 处理 POST /v1/kiosk/stop
// @Summary 停止播报
// @Tags 终端
// @Produce json
// @Success 200 {object} Response
// @Router /v1/kiosk/stop [post]
func (h *KioskHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	snap, err := h.conv.Stop(ctx)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	WriteSuccess(w, api.NewStateResponse(snap, nil))
}

// HandleInterrupt 处理 POST /v1/kiosk/interrupt
// @Summary 打断当前轮次
// @Tags 终端
// @Produce json
// @Success 200 {object} Response
// @Router /v1/kiosk/interrupt [post]
func (h *KioskHandler) HandleInterrupt(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), dispatchTimeout)
	defer cancel()
	snap, err := h.conv.Interrupt(ctx)
	if err != nil {
		h.writeDispatchError(w, err)
		return
	}
	WriteSuccess(w, api.NewStateResponse(snap, nil))
}

// HandleState 处理 GET /v1/kiosk/state
func (h *KioskHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, api.NewStateResponse(h.conv.Snapshot(), h.conv.Availability()))
}

// HandleLogs 处理 GET /v1/kiosk/logs
func (h *KioskHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	lines := h.conv.Logs()
	if lines == nil {
		lines = []string{}
	}
	WriteSuccess(w, api.LogsResponse{Lines: lines})
}

// HandleLastTurn 处理 GET /v1/kiosk/turn
func (h *KioskHandler) HandleLastTurn(w http.ResponseWriter, r *http.Request) {
	turn, ok := h.conv.LastTurn()
	if !ok {
		WriteError(w, types.NewNotFoundError("no completed turn yet"), h.logger)
		return
	}
	WriteSuccess(w, turn)
}

// HandleResolve 处理 POST /v1/kiosk/resolve
// @Summary 解析应答（仅文本，不播报）
// @Tags 终端
// @Accept json
// @Produce json
// @Param request body api.ResolveRequest true "意图与参数"
// @Success 200 {object} Response
// @Failure 404 {object} Response "无匹配应答"
// @Router /v1/kiosk/resolve [post]
func (h *KioskHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	if h.resolver == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "response store is not configured"), h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}
	var req api.ResolveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		WriteError(w, types.NewInvalidRequestError("token is required"), h.logger)
		return
	}
	locale := req.Locale
	if locale == "" {
		locale = h.locale()
	}

	rec, err := h.resolver.Lookup(r.Context(), token, req.Params)
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, types.NewError(types.ErrNoMatch, strings.TrimSpace("no answer for "+token+" "+store.CanonicalParams(req.Params))), h.logger)
		return
	case err != nil:
		WriteError(w, types.NewInternalError("lookup failed").WithCause(err), h.logger)
		return
	}
	WriteSuccess(w, api.NewResolveResponse(rec, locale))
}

func (h *KioskHandler) writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, voice.ErrClosed):
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "orchestrator is closed").WithCause(err), h.logger)
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, types.NewError(types.ErrTimeout, "event loop did not respond").WithCause(err).WithRetryable(true), h.logger)
	default:
		WriteError(w, types.NewInternalError("dispatch failed").WithCause(err), h.logger)
	}
}
