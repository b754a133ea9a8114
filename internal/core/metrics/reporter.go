package metrics

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("core/metrics")

// Sizer 报告缓存条目数量（codec.Cache 满足此接口）
type Sizer interface {
	Len() int
}

// Reporter Prometheus 指标上报器
type Reporter struct {
	bytes       *prometheus.CounterVec
	packets     *prometheus.CounterVec
	codecErrors *prometheus.CounterVec
	transitions *prometheus.CounterVec
	ends        *prometheus.CounterVec

	inRate  *RateMeter
	outRate *RateMeter
	counts  packetCounts
}

var _ interfaces.Reporter = (*Reporter)(nil)

// NewReporter 创建并注册指标
//
// reg 为 nil 时使用 prometheus.DefaultRegisterer；cache 为 nil 时不注册
// 缓存条目指标。
func NewReporter(reg prometheus.Registerer, namespace string, cache Sizer) (*Reporter, error) {
	return newReporter(reg, namespace, cache, nil)
}

func newReporter(reg prometheus.Registerer, namespace string, cache Sizer, clk clock.Clock) (*Reporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	r := &Reporter{
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "socket_bytes_total",
			Help:      "Bytes read from or written to the socket",
		}, []string{"direction"}),

		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Packets encoded or decoded successfully",
		}, []string{"direction", "state", "name"}),

		codecErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codec_errors_total",
			Help:      "Non-fatal serialization and deserialization errors",
		}, []string{"direction", "state"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Protocol state transitions",
		}, []string{"from", "to"}),

		ends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_ends_total",
			Help:      "Connection terminations by reason",
		}, []string{"reason"}),

		inRate:  NewRateMeter(clk),
		outRate: NewRateMeter(clk),
	}

	// 多个 Reporter 共享同一个 Registerer 时复用已注册的向量
	for _, vec := range []**prometheus.CounterVec{&r.bytes, &r.packets, &r.codecErrors, &r.transitions, &r.ends} {
		existing, err := registerVec(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = existing
	}

	gauges := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "socket_byte_rate",
			Help:        "Average socket byte rate over the last 60 seconds",
			ConstLabels: prometheus.Labels{"direction": "in"},
		}, r.inRate.Rate),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "socket_byte_rate",
			Help:        "Average socket byte rate over the last 60 seconds",
			ConstLabels: prometheus.Labels{"direction": "out"},
		}, r.outRate.Rate),
	}
	if cache != nil {
		gauges = append(gauges, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "codec_cache_entries",
			Help:      "Compiled codecs held by the process-wide cache",
		}, func() float64 { return float64(cache.Len()) }))
	}
	for _, g := range gauges {
		if err := reg.Register(g); err != nil && !isAlreadyRegistered(err) {
			return nil, fmt.Errorf("metrics: register gauge: %w", err)
		}
	}

	logger.Debug("指标已注册", "namespace", namespace, "cache", cache != nil)
	return r, nil
}

// registerVec 注册计数器向量，已存在时返回已注册的实例
func registerVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	err := reg.Register(vec)
	if err == nil {
		return vec, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("metrics: register counter: %w", err)
}

func isAlreadyRegistered(err error) bool {
	var are prometheus.AlreadyRegisteredError
	return errors.As(err, &are)
}

// LogRecvBytes 记录从 socket 读取的字节数
func (r *Reporter) LogRecvBytes(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.WithLabelValues("in").Add(float64(n))
	r.inRate.Add(int64(n))
}

// LogSentBytes 记录写入 socket 的字节数
func (r *Reporter) LogSentBytes(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.bytes.WithLabelValues("out").Add(float64(n))
	r.outRate.Add(int64(n))
}

// LogPacket 记录一个编码或解码成功的数据包
func (r *Reporter) LogPacket(dir types.Direction, state types.State, name string) {
	if r == nil {
		return
	}
	r.packets.WithLabelValues(dir.String(), state.String(), name).Inc()
	if dir == types.ToClient {
		r.counts.toClient.Add(1)
	} else {
		r.counts.toServer.Add(1)
	}
}

// LogCodecError 记录一个非致命编解码错误
func (r *Reporter) LogCodecError(dir types.Direction, state types.State) {
	if r == nil {
		return
	}
	r.codecErrors.WithLabelValues(dir.String(), state.String()).Inc()
	r.counts.codecErrors.Add(1)
}

// LogStateTransition 记录状态迁移
func (r *Reporter) LogStateTransition(from, to types.State) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// LogEnd 记录连接终止原因
func (r *Reporter) LogEnd(reason string) {
	if r == nil {
		return
	}
	r.ends.WithLabelValues(reason).Inc()
	r.counts.ends.Add(1)
}

// Stats 返回流量快照
func (r *Reporter) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return Stats{
		BytesIn:         r.inRate.Total(),
		BytesOut:        r.outRate.Total(),
		RateIn:          r.inRate.Rate(),
		RateOut:         r.outRate.Rate(),
		PacketsToClient: r.counts.toClient.Load(),
		PacketsToServer: r.counts.toServer.Load(),
		CodecErrors:     r.counts.codecErrors.Load(),
		Ends:            r.counts.ends.Load(),
	}
}
