/*
包 voice 实现无人售货亭的语音对话编排：轮次状态机、VAD 门控采集、
STT → LLM → 应答解析的分阶段推理，以及逐句流水线合成与播放。

# 状态机

状态为 Init、Idle、Recording、Transcribing、Inferring、Synthesizing、
Playing、Interrupted、Error。Next 是纯函数形式的迁移表，表外的
(状态, 事件) 组合一律忽略，状态保持不变：

	Idle         + MicPressed     → Recording
	Recording    + VadSpeechStart → Transcribing
	Recording    + MicReleased    → Idle
	Transcribing + SttDone        → Inferring
	Inferring    + LlmDone        → Synthesizing
	Synthesizing + TtsDone        → Idle
	Playing      + TtsDone        → Idle
	Interrupted  + UserStop       → Idle
	Error        + SystemError    → Idle

Transcribing 状态下收到 VadSpeechEnd 会启动一次转写，但不改变状态。

# 编排器

Orchestrator 由单个事件循环 goroutine 独占状态。VAD 回调、后台
STT/LLM/TTS 任务、HTTP 控制面都只向循环投递请求，不直接修改状态。
每个轮次有递增的代号，Stop / Interrupt 之后旧轮次的迟到结果会被丢弃。
观察者通过 Subscribe / SubscribeLogs 订阅，慢消费者丢弃通知而不阻塞
循环。

# 降级

任一能力不可用都不会中断轮次：STT 失败得到空转写，LLM 不可用时回显
规范化后的查询，解析失败或应答库未命中时朗读规范化查询，合成失败
只记录日志并结束播放。最终状态总是回到 Idle。

# 合成流水线

SynthesisPipeline 按句切分应答文本，生产者逐句合成、消费者按原顺序
播放，二者由 errgroup 汇合。首句就绪延迟每次 Speak 只上报一次。
*/
package voice
