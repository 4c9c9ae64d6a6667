// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertEventuallyState(t, o, voice.StateIdle, 2*time.Second)
// =============================================================================
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Seojiyoung8683/llm-based-unmanned-store-kiosk-sub000/voice"
)

// 轮询间隔
const pollInterval = 2 * time.Millisecond

// TestContext 返回 30 秒超时的测试上下文
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()
	if !poll(condition, timeout) {
		t.Errorf("condition did not become true within %v", timeout)
	}
}

// AssertEventuallyState 等待编排器进入指定状态
func AssertEventuallyState(t *testing.T, o interface{ State() voice.State }, want voice.State, timeout time.Duration) {
	t.Helper()
	if !poll(func() bool { return o.State() == want }, timeout) {
		t.Errorf("state did not become %q within %v, last state: %q", want, timeout, o.State())
	}
}

func poll(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(pollInterval)
	}
	return condition()
}

// =============================================================================
// 🔁 通道与状态迁移
// =============================================================================

// WaitForChannel 等待通道接收值或超时
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// CollectStates 从订阅通道收集目标状态，直到出现 until 或超时
func CollectStates(ch <-chan voice.Transition, until voice.State, timeout time.Duration) []voice.State {
	var states []voice.State
	deadline := time.After(timeout)
	for {
		select {
		case tr, ok := <-ch:
			if !ok {
				return states
			}
			states = append(states, tr.To)
			if tr.To == until {
				return states
			}
		case <-deadline:
			return states
		}
	}
}

// =============================================================================
// 🎙️ 音频
// =============================================================================

// Tone 生成 n 个幅度为 amp 的方波采样，RMS 恰为 amp
func Tone(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}
