// Package introspect 提供本地诊断 HTTP 服务
//
// 服务运行在本地端口，导出 Prometheus 指标与 JSON 格式的诊断信息。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /metrics                   - Prometheus 指标
//	GET /debug/introspect          - 完整诊断报告 (JSON)
//	GET /debug/introspect/traffic  - 字节统计
//	GET /debug/introspect/runtime  - Go 运行时信息
//	GET /debug/pprof/*             - Go pprof 端点
//	GET /health                    - 健康检查
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:    "127.0.0.1:6060",
//	    Traffic: reporter,
//	})
//	server.Start(ctx)
//	defer server.Stop(ctx)
//
// 通过 config.Metrics.ListenAddr 配置启用。
package introspect
