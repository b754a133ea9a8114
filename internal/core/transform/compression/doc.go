// Package compression 实现压缩阶段
//
// 启用压缩后，帧体为 varint(uncompressedLength) + body：
//
//	uncompressedLength == 0  body 为原始字节
//	uncompressedLength  > 0  body 为 zlib 流，解压长度必须等于 uncompressedLength
//
// 阈值被限制在 [24, 1460]（以太网最小/最大 TCP 负载），负数表示禁用：
// 禁用时两个方向都不做任何变换，帧体就是序列化后的原始字节。
//
// 阈值、hideErrors 都支持热更新；Pipeline 只在阶段仍是直通占位时才构造新实例。
package compression
