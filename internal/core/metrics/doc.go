// Package metrics 提供连接级 Prometheus 指标
//
// Reporter 实现 interfaces.Reporter，由 conn 在 socket 读写、数据包编解码、
// 状态迁移和连接终止时调用。所有方法并发安全且不阻塞；nil *Reporter 是
// 合法的空实现，指标关闭时连接代码无需判空。
//
// # 指标
//
//	<ns>_socket_bytes_total{direction="in|out"}
//	<ns>_socket_byte_rate{direction="in|out"}        最近 60 秒平均速率
//	<ns>_packets_total{direction,state,name}
//	<ns>_codec_errors_total{direction,state}
//	<ns>_state_transitions_total{from,to}
//	<ns>_connection_ends_total{reason}
//	<ns>_codec_cache_entries                         提供 Sizer 时注册
//
// # 快速开始
//
//	reg := prometheus.NewRegistry()
//	r, err := metrics.NewReporter(reg, "mcproto", codec.Default())
//	if err != nil {
//	    return err
//	}
//	conn := conn.New(types.RoleClient, conn.WithReporter(r))
package metrics
