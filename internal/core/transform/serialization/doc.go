// Package serialization 实现数据包序列化阶段
//
// Serializer（输出方向）把 *types.Packet{Name, Params} 编码为 packetId + 字段；
// Deserializer（输入方向）把字节解码为 *types.Packet，并保留原始字节。
// 两者都通过 codec.Cache 获取 (state, direction, version, digest) 对应的
// Codec，state/version/customPackets/hideErrors 可以热更新，更新时只重新
// 查询 Codec，不重建阶段。
//
// 编解码失败返回 *types.CodecError，属于非致命错误：Pipeline 把它交给
// 错误处理器后继续处理后续帧。
package serialization
