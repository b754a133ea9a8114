// Package interfaces 定义 go-mcproto 的公共接口
//
// 一个接口文件对应一个实现目录：
//   - transform.go - 变换阶段（internal/core/transform/*、internal/core/pipeline）
//   - auth.go      - 认证提供者（internal/core/auth）
//   - plugin.go    - 插件与插件能力对象（internal/core/plugin）
//   - metrics.go   - 指标上报（internal/core/metrics）
package interfaces
