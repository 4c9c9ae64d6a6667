// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供无人商店语音终端守护进程 kioskd 的程序入口。

# 概述

kioskd 持有语音对话编排器与应答库，并在本地暴露一个小型 HTTP 控制面，
供终端 UI 投递麦克风事件、订阅状态推流、查询日志与最近一轮对话。
程序支持 YAML 配置文件加载（KIOSK_ 前缀环境变量覆盖）、结构化日志（zap）、
Prometheus 指标与 OpenTelemetry 链路追踪。

# 核心类型

  - Server      — 组装数据库、缓存、上报、引擎与编排器，管理 HTTP、Metrics 双端口
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、seed、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、Metrics、
    OTelTracing、CORS、RateLimiter（基于 IP）、APIKeyAuth（/v1/kiosk/*）
  - 管理端点 /v1/admin/* 由 JWTAuth（HS256）保护，未配置密钥时不注册
  - 配置热更新：voice 段变更即时推送给编排器
  - 优雅关闭：信号监听 → 关闭 HTTP → 逆序执行关闭钩子（后台任务、Metrics、
    编排器、上报、缓存、数据库、遥测）
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
