package api

import (
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/store"
	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// =============================================================================
// 终端事件类型
// =============================================================================

// EventRequest 终端 UI 投递的外部事件。
// @Description 外部事件请求结构
type EventRequest struct {
	// 事件类型：mic_pressed、mic_released、user_stop、system_error
	Type string `json:"type" example:"mic_pressed" binding:"required"`
	// system_error 的原因描述
	Error string `json:"error,omitempty" example:"audio device lost"`
}

// StateResponse 当前状态。
// @Description 对话状态快照
type StateResponse struct {
	State        voice.State     `json:"state" example:"idle"`
	Cause        string          `json:"cause,omitempty"`
	TurnID       string          `json:"turn_id,omitempty"`
	Since        time.Time       `json:"since"`
	Availability map[string]bool `json:"availability,omitempty"`
}

// NewStateResponse 由快照构造状态响应
func NewStateResponse(s voice.Snapshot, availability map[string]bool) StateResponse {
	return StateResponse{
		State:        s.State,
		Cause:        s.Cause,
		TurnID:       s.TurnID,
		Since:        s.Since,
		Availability: availability,
	}
}

// LogsResponse 初始化与轮次日志。
type LogsResponse struct {
	Lines []string `json:"lines"`
}

// =============================================================================
// 应答解析类型
// =============================================================================

// ResolveRequest 不经语音链路直接解析应答。
// @Description 应答解析请求结构
type ResolveRequest struct {
	// 意图 token
	Token string `json:"token" example:"<jarvis_0>" binding:"required"`
	// LLM 侧参数
	Params map[string]string `json:"params,omitempty"`
	// 应答语言，缺省使用终端配置
	Locale string `json:"locale,omitempty" example:"ko"`
}

// ResolveResponse 解析结果。
type ResolveResponse struct {
	RecordID   uint              `json:"record_id"`
	Token      string            `json:"token"`
	Method     string            `json:"method,omitempty"`
	Parameters map[string]string `json:"parameters"`
	Locale     string            `json:"locale"`
	Answer     string            `json:"answer"`
}

// NewResolveResponse 由应答记录构造解析结果
func NewResolveResponse(rec store.IntentRecord, locale string) ResolveResponse {
	return ResolveResponse{
		RecordID:   rec.ID,
		Token:      rec.Token,
		Method:     rec.Method,
		Parameters: rec.Parameters,
		Locale:     locale,
		Answer:     rec.Answer(locale),
	}
}

// =============================================================================
// 推流帧类型
// =============================================================================

// 推流帧类型
const (
	FrameState = "state"
	FrameLog   = "log"
)

// StreamFrame WebSocket 推送的 JSON 帧。
type StreamFrame struct {
	Type  string      `json:"type"`
	State voice.State `json:"state,omitempty"`
	From  voice.State `json:"from,omitempty"`
	Event string      `json:"event,omitempty"`
	Cause string      `json:"cause,omitempty"`
	Line  string      `json:"line,omitempty"`
	At    time.Time   `json:"at"`
}

// =============================================================================
// 管理端类型
// =============================================================================

// SeedResponse 写入内置目录的结果。
type SeedResponse struct {
	Inserted int         `json:"inserted"`
	Stats    store.Stats `json:"stats"`
}

// IntentsResponse 应答目录列表。
type IntentsResponse struct {
	Intents []store.IntentRecord `json:"intents"`
	Total   int                  `json:"total"`
}
