// Package config 提供 kiosk 守护进程的配置管理功能。
//
// 包含配置加载、默认值、校验以及 voice 段的运行时重载。
// 支持从 YAML 文件和 KIOSK_ 前缀的环境变量加载配置。
package config
