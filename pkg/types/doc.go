// Package types 定义 go-mcproto 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - enums.go    - State, Direction, Role 以及握手意图映射
//   - versions.go - 支持的协议版本列表与默认版本
//   - packet.go   - Packet, Metadata, Params
//   - errors.go   - 错误分类（帧、压缩、加密、编解码、传输）
package types
