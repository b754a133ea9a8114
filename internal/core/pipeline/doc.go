// Package pipeline 实现变换阶段的有序组合
//
// # 阶段顺序
//
// 输出管道：serialization → compression → framing → encryption
// 输入管道：encryption → framing → compression → serialization
//
// 四个阶段总是存在：被禁用的阶段以直通阶段占位，保持管道形状不变。
//
// # 热更新与替换
//
// Update(name, opts) 对可热更新的存活阶段逐字段比较新旧选项，只把变化的
// 字段交给 HotReloader.Apply；否则把新选项合并到上次的选项上，重新构造
// 实例并原子地替换。替换在帧边界生效：阶段的下游在 push 时才解析，
// 正在处理的数据块之后的帧会进入新实例。
//
// # 写入与取消
//
// Write 同步地把一个数据块推过所有阶段，返回时数据块已经被完全消费。
// 同一管道的写入按 FIFO 串行执行。所有阶段共享一个取消信号，Abort
// 触发后后续写入返回 ErrAborted，所有阶段在空闲时被关闭。
package pipeline
