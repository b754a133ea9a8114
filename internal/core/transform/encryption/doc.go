// Package encryption 实现加密阶段
//
// 两个方向都是 AES-128 的 8 位反馈模式（CFB8）流加密，密钥为登录时
// 协商出的 16 字节共享密钥，同时用作 IV。
//
// 加密阶段每个连接只安装一次，之后不能更换密钥；任何加密失败都是致命的。
package encryption
