/*
包 store 实现参数化应答库：给定意图 token 与一组 (key, value) 约束，
返回匹配的本地化应答及其完整参数集。

# 概述

持久化层为六张表：意图记录 api_call，两张参数子表 llm_param / api_param，
快速路径 parallel_answer，多轮应答 multiturn_answer 及其参数表
multiturn_llm_param。表结构由 internal/migration 的 SQL 迁移或 AutoMigrate
创建。

查询不拼接动态 SQL，而是读取内存中的 父记录 → 参数行 索引：N 个约束
必须各自被同一父记录下的某一参数行满足，N = 0 表示该 token 下任意记录。
多条记录同时满足时按 ID 升序返回第一条，这是已知限制，不做歧义纠正。

# 写入

Insert / InsertMultiTurn / InsertParallelAnswer 在单个事务中写入父记录与
全部参数行，已存在等价记录时静默跳过。Seed 写入内置的 <jarvis_0>..
<jarvis_7> 目录，重复调用无副作用。

# 缓存

CachedResolver 以 kiosk:answer:<token>:<k=v&...> 为键把命中的结果写入
Redis，token 与参数均经 URL 转义；缓存异常时直接查库。
*/
package store
