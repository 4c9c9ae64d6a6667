package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/api"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// =============================================================================
// 📡 状态推流 Handler
// =============================================================================

// 单帧写超时，超时视为客户端失联
const frameWriteTimeout = 5 * time.Second

// Broadcaster 状态与日志订阅源，*voice.Orchestrator 满足
type Broadcaster interface {
	Snapshot() voice.Snapshot
	Subscribe() (<-chan voice.Transition, func())
	SubscribeLogs() (<-chan string, func())
}

// StreamHandler 通过 WebSocket 向终端 UI 推送状态迁移与日志
type StreamHandler struct {
	source         Broadcaster
	originPatterns []string
	logger         *zap.Logger
}

// NewStreamHandler 创建推流处理器；originPatterns 为空时只允许同源
func NewStreamHandler(source Broadcaster, originPatterns []string, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{
		source:         source,
		originPatterns: originPatterns,
		logger:         logger.With(zap.String("handler", "stream")),
	}
}

// HandleStream 处理 GET /v1/kiosk/stream
// @Summary 状态与日志推流（WebSocket）
// @Tags 终端
// @Router /v1/kiosk/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		// Accept 已写入错误响应
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	transitions, cancelStates := h.source.Subscribe()
	defer cancelStates()
	lines, cancelLogs := h.source.SubscribeLogs()
	defer cancelLogs()

	// 只推不收，CloseRead 在客户端关闭时取消 ctx
	ctx := conn.CloseRead(r.Context())

	snap := h.source.Snapshot()
	if err := h.write(ctx, conn, api.StreamFrame{Type: api.FrameState, State: snap.State, Cause: snap.Cause, At: snap.Since}); err != nil {
		return
	}

	for {
		var frame api.StreamFrame
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case t, ok := <-transitions:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "orchestrator closed")
				return
			}
			frame = api.StreamFrame{Type: api.FrameState, State: t.To, From: t.From, Event: string(t.Event), Cause: t.Cause, At: t.At}
		case line, ok := <-lines:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "orchestrator closed")
				return
			}
			frame = api.StreamFrame{Type: api.FrameLog, Line: line, At: time.Now()}
		}
		if err := h.write(ctx, conn, frame); err != nil {
			return
		}
	}
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, frame api.StreamFrame) error {
	ctx, cancel := context.WithTimeout(ctx, frameWriteTimeout)
	defer cancel()
	err := wsjson.Write(ctx, conn, frame)
	if err != nil && !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
		h.logger.Debug("stream write failed", zap.Error(err))
	}
	return err
}
