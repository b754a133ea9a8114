// Package framing 实现帧阶段
//
// 线上每个帧为 varint(payloadLength) + payload。
//
//   - Splitter（输入）：把任意切分的字节流还原为完整帧体，不输出残缺帧；
//     握手状态下识别旧版单字节状态查询（0xFE）并合成标准帧。
//   - Framer（输出）：为任意字节块加上 varint 长度前缀。
package framing
