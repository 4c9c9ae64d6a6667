/*
包 database 负责应答库的连接建立与连接池管理。

# 概述

Open 根据 config.DatabaseConfig 选择 GORM 方言：sqlite 使用纯 Go 的
glebarez 驱动（设备本地文件，默认），sqlite3 使用 cgo 驱动，
postgres / mysql 用于集中部署的应答库。SQLite 连接会开启外键约束，
以保证参数行随意图记录级联删除。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB()、Ping()、
    Stats()、Close()，并实现 Name()/Check() 供健康检查使用。
  - PoolConfig：连接池配置，Validate 校验连接数上下限。
  - TransactionFunc：事务回调。

# 事务

WithTransaction 单次执行；WithTransactionRetry 对 SQLite 写锁、
死锁、序列化失败等瞬时错误做指数退避重试。
*/
package database
