// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 kioskd 本地控制面的 HTTP 服务器生命周期管理，支持
非阻塞启动、优雅关闭、停止钩子与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小与优雅关闭超时，
    可由 FromServerConfig 从守护进程配置生成。

# 主要能力

  - 停止钩子：OnShutdown 注册的钩子在 HTTP 服务停止后按逆序执行，
    用于依次关闭编排器、上报器与数据库。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM 与 ctx 取消。
  - 状态查询：ListenAddr 返回实际端口，便于以随机端口启动测试。
*/
package server
