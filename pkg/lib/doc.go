// Package lib 存放不依赖协议组件的基础库
//
// 目前只有 log：按组件命名的 slog 包装，默认输出可在运行时替换，
// 包级 logger 变量因此可以在 init 阶段声明。
//
//	var logger = log.Logger("core/conn")
//
// 协议相关的公共类型在 pkg/types，组件接口在 pkg/interfaces。
package lib
