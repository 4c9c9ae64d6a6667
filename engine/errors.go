package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrNotConfigured 引擎未配置 BaseURL
	ErrNotConfigured = errors.New("engine: not configured")
	// ErrEmptyResponse 服务返回了空结果
	ErrEmptyResponse = errors.New("engine: empty response")
	// ErrOutputReleased 音频输出已释放，需要先 Reinit
	ErrOutputReleased = errors.New("engine: audio output released")
)

// Error HTTP 引擎返回的错误
type Error struct {
	Engine     string
	HTTPStatus int
	Message    string
	Retryable  bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: status=%d: %s", e.Engine, e.HTTPStatus, e.Message)
}

// mapHTTPError 将状态码映射为 *Error；429 与 5xx 可重试
func mapHTTPError(engine string, status int, msg string) *Error {
	retryable := status == http.StatusTooManyRequests || status >= 500
	return &Error{Engine: engine, HTTPStatus: status, Message: msg, Retryable: retryable}
}

// readErrorMessage 优先解析 OpenAI 风格的错误体，失败时返回原文
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return "failed to read error response"
	}

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return string(data)
}

// IsRetryable 判断错误是否值得重试
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
