/*
包 reporter 把每轮对话的转写、补全与应答连同耗时尽力而为地上报给
远端收集服务。

# 概述

Reporter 实现 voice.Reporter。每次上报封装为一个任务提交到有界
goroutine 池，调用方永远不会被网络阻塞；队列满、服务不可达或返回
非 2xx 时只记录日志，不向编排器传播错误。

# 协议

	POST {base_url}suda/stt   {"data": "...", "response_time": 412.0}
	POST {base_url}suda/llm
	POST {base_url}suda/tts

response_time 单位为毫秒。
*/
package reporter
