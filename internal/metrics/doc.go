// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的自助终端指标采集能力，覆盖
HTTP、对话状态机、应答库、上报、缓存、数据库与引擎熔断。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标。指标注册到
调用方传入的 Registerer（nil 时为默认注册表），测试可各用独立注册表。Collector 同时满足
voice.Recorder、store.LookupObserver 与 store.CacheObserver，
可直接注入编排器与应答库。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 对话指标：状态迁移计数、各阶段 (stt/llm/resolve/tts) 耗时、轮次结局。
  - 应答库指标：按 kind 统计命中与未命中。
  - 上报指标：按 kind/status 统计对外上报结果。
  - 缓存与数据库指标：命中计数、连接池 Gauge。
  - 引擎熔断：ObserveCircuit 以 GaugeFunc 导出 stt/llm/tts 熔断状态。
*/
package metrics
