package types

// Params 数据包的结构化负载
//
// 字段名与 schema 中的字段名一致；嵌套容器为 Params，数组为 []any。
type Params = map[string]any

// Metadata 数据包元信息
type Metadata struct {
	// Name 数据包名称
	Name string

	// State 解码时的协议状态
	State State

	// Direction 数据包方向
	Direction Direction

	// Size 序列化后的字节数（不含帧头）
	Size int
}

// Packet 一个已解码或待编码的数据包
//
// Packet 是临时对象：每条消息构造一次，分发完成后不再保留。
type Packet struct {
	// Name 数据包名称
	Name string

	// Params 结构化负载
	Params Params

	// Raw 序列化后的原始字节（含包 ID）
	Raw []byte

	// Meta 元信息
	Meta Metadata
}

// MaxPacketSize 协议规定的帧/负载绝对上限（2 MiB）
//
// 超过该值的声明长度属于协议违规，会终止连接。
const MaxPacketSize = 2097152
