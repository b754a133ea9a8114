package metrics

import "sync/atomic"

// Stats 进程内协议流量快照
//
// 字节速率为最近 60 秒的平均值（字节/秒）。
type Stats struct {
	BytesIn  int64
	BytesOut int64
	RateIn   float64
	RateOut  float64

	// 按数据包方向计数，与本端角色无关
	PacketsToClient int64
	PacketsToServer int64

	CodecErrors int64
	Ends        int64
}

// packetCounts 不带标签的累计计数，供 Stats 快照使用
type packetCounts struct {
	toClient    atomic.Int64
	toServer    atomic.Int64
	codecErrors atomic.Int64
	ends        atomic.Int64
}
