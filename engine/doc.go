// Package engine 提供 voice 包能力接口的具体实现。
//
// 语音识别、语言模型与语音合成都以本机或局域网 HTTP 服务的形式运行：
//
//   - LLMClient：OpenAI 兼容的 /v1/completions 文本补全
//   - HTTPTranscriber：OpenAI 兼容的 /v1/audio/transcriptions，上传 16bit WAV
//   - HTTPSynthesizer：POST /v1/tts，返回 WAV 音频
//
// 音频 I/O 则基于外部进程的管道：
//
//   - EnergyGate：基于 RMS 能量的语音活动检测，带静音拖尾与预录缓冲
//   - PCMOutput：把 float32 小端 PCM 写入播放进程的 stdin
//
// 未配置 BaseURL 的引擎 Available() 返回 false，编排器据此降级。
package engine
