// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供无人商店终端控制面 HTTP API 的请求处理器实现。

# 概述

handlers 包把语音编排器、应答目录与健康检查暴露为 HTTP 端点。
所有 Handler 均遵循标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - KioskHandler   — 投递麦克风/停止/打断事件，查询状态、日志、最近轮次，文本解析应答
  - StreamHandler  — WebSocket 推送状态迁移与日志行
  - AdminHandler   — 写入内置应答目录、列出意图（JWT 保护）
  - HealthHandler  — 服务健康检查（/health, /healthz, /ready）
  - Response       — 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo      — 结构化错误信息，含 code、message、retryable 标记

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
  - 外部只能投递 mic_pressed / mic_released / user_stop / system_error，
    其余事件由编排器内部产生
*/
package handlers
