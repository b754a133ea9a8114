package compression

// 阈值边界
//
//	64B (ETH)  - 20B (IPv4) - 20B (TCP) = 24B
//	1500B (MTU) - 20B (IPv4) - 20B (TCP) = 1460B
const (
	MinThreshold = 64 - 20 - 20
	MaxThreshold = 1500 - 20 - 20

	// Disabled 禁用压缩的阈值
	Disabled = -1
)

// 选项字段
const (
	OptThreshold  = "threshold"
	OptHideErrors = "hideErrors"
	OptStrict     = "strict"
)

// EffectiveThreshold 返回生效的阈值
//
// 负数返回 Disabled；其余值被夹在 [MinThreshold, MaxThreshold]。
func EffectiveThreshold(v int) int {
	if v < 0 {
		return Disabled
	}
	return min(max(v, MinThreshold), MaxThreshold)
}
