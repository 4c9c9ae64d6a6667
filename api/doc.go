// Package api 定义 kioskd 本地控制面的请求与响应类型。
//
// 控制面只监听在终端本机，供终端 UI 使用：
//   - 对话事件投递、停止与打断
//   - 状态、日志与最近一轮的查询
//   - WebSocket 状态与日志推流
//   - 应答解析诊断与管理端目录写入
//
// # Authentication
//
// /v1/kiosk/* 需要 X-API-Key 请求头（配置为空时不校验）：
//
//	X-API-Key: your-api-key
//
// /v1/admin/* 需要 HS256 签名的 Bearer JWT。
//
// # Base URL
//
//	http://localhost:8080
package api
