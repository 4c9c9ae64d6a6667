/*
包 migration 管理应答库的 Schema 迁移，支持 SQLite、PostgreSQL 与
MySQL，基于 golang-migrate 实现。

# 概述

各方言的 SQL 文件通过 embed.FS 内嵌在二进制中，000001_response_store
创建意图记录（api_call）、API 参数、LLM 参数、并行应答、多轮应答及其
参数共六张表，参数表通过外键级联删除。Config.MigrationsPath 可指定
磁盘目录替代内嵌文件。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/
    Version/Status/Info/Close。
  - CLI：kioskd migrate 子命令的格式化输出。
  - DatabaseURL：把 config.DatabaseConfig 转为迁移连接串（转义凭据）。
  - NewMigratorFromDatabaseConfig / NewMigratorFromURL：创建迁移器。
*/
package migration
