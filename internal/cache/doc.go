/*
包 cache 封装 go-redis，为应答库提供已解析答案的缓存。

Manager 负责连接生命周期（初始化 Ping、后台健康检查、关闭），提供
Get/Set/GetJSON/SetJSON/Delete/DeletePrefix 等读写接口，并统计本进程
的命中与未命中次数。未命中统一返回 ErrCacheMiss，调用方据此回源。
*/
package cache
