/*
Package testutil 提供售货亭测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，避免重复实现
相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / AssertEventuallyState，超时轮询
  - 通道与状态迁移: WaitForChannel / CollectStates
  - 音频: Tone 构造固定 RMS 的采样

# 子包

  - testutil/mocks: 能力替身，包括 MockTranscriber、MockLanguageModel、
    MockSynthesizer、MockGate（VAD）、MockOutput（音频输出）、
    MockResolver（应答库）、MockReporter、MockRecorder，
    均支持 Builder 模式与错误注入
  - testutil/fixtures: 预置补全、应答记录与测试用语音配置

# 使用示例

	gate := mocks.NewMockGate()
	o := voice.NewOrchestrator(voice.Capabilities{VAD: gate}, resolver, fixtures.VoiceSettings())
	require.NoError(t, o.Initialize(testutil.TestContext(t)))
*/
package testutil
