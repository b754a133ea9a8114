// Package codec 实现数据包 schema 的编译与进程级缓存
//
// # 概述
//
// 每个协议版本的基础 schema 以 YAML 形式嵌入（data/<version>.yaml），
// 调用方可以按主版本号提供自定义数据包覆盖层，合并后编译为 Codec。
// Codec 以 (state, direction, version, customPacketsDigest) 为键缓存在
// 进程级 Cache 中：首次使用时创建，之后只读，不会被修改或淘汰。
//
// # 数据类型
//
//	varint varlong bool i8 u8 i16 u16 i32 i64 f32 f64
//	string uuid buffer restBuffer
//	option(of) array(of) container(fields)
//
// # 使用示例
//
//	c, err := codec.Default().Get(codec.Key{
//	    State:     types.StatePlay,
//	    Direction: types.ToClient,
//	    Version:   "1.16.4",
//	}, nil)
//	raw, err := c.Encode("keep_alive", types.Params{"keepAliveId": 42})
//	pkt, err := c.Decode(raw)
//
// # 并发安全
//
// Cache 基于 sync.Map，同一键的并发编译由 singleflight 合并为一次。
// Codec 编译后不可变，可被任意多个连接共享。
package codec
