// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package tlsutil 构建 kioskd 访问引擎服务与上报端点使用的 HTTP 客户端。

TLS 统一加固为 1.2+ 且仅 AEAD 密码套件；局域网内的 STT/TTS/LLM 服务
常用自签证书，可通过 ClientConfig.CAFile 追加信任。
*/
package tlsutil
