package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-mcproto/internal/core/metrics"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 未指定地址时的监听地址，只绑定回环
const DefaultAddr = "127.0.0.1:6060"

const shutdownTimeout = 5 * time.Second

// Config 诊断服务配置
type Config struct {
	Addr string

	// Version 协议版本，仅用于展示
	Version string

	// Gatherer 为空时使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Traffic 和 Cache 可为空，对应字段不输出
	Traffic TrafficReporter
	Cache   Sizer

	// CustomHandlers 额外挂载的路径
	CustomHandlers map[string]http.HandlerFunc
}

// TrafficReporter 流量快照来源（*metrics.Reporter）
type TrafficReporter interface {
	Stats() metrics.Stats
}

// Sizer 缓存条目数来源（*codec.Cache）
type Sizer interface {
	Len() int
}

// Server 本地诊断 HTTP 服务
//
// 提供 Prometheus 指标、协议流量快照、Go 运行时信息和 pprof。
type Server struct {
	cfg Config

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	started time.Time
}

// New 创建诊断服务，不监听
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{cfg: cfg}
}

// Handler 返回全部路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{
		ErrorLog: promErrorLog{},
	}))

	mux.Handle("/health", getJSON(s.health))
	mux.Handle("/debug/introspect", getJSON(s.report))
	mux.Handle("/debug/introspect/traffic", getJSON(func() any {
		if t := s.traffic(); t != nil {
			return t
		}
		return &TrafficInfo{}
	}))
	mux.Handle("/debug/introspect/runtime", getJSON(func() any { return readRuntime() }))

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	for path, h := range s.cfg.CustomHandlers {
		mux.HandleFunc(path, h)
	}
	return mux
}

// Start 开始监听，重复调用无效
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("introspect: listen %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// pprof profile 默认采样 30 秒
		WriteTimeout: 60 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("诊断服务异常退出", "error", err)
		}
	}()

	s.srv, s.ln = srv, ln
	s.started = time.Now()
	logger.Info("诊断服务已启动", "addr", ln.Addr().String())
	return nil
}

// Stop 关闭服务，最多等待 5 秒
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	s.srv = nil
	if err != nil {
		return fmt.Errorf("introspect: shutdown: %w", err)
	}
	logger.Info("诊断服务已停止")
	return nil
}

// Running 报告服务是否在监听
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr 返回实际监听地址，未启动时返回配置地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.cfg.Addr
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started).Truncate(time.Millisecond)
}

// ============================================================================
//                              响应
// ============================================================================

// IntrospectResponse /debug/introspect 的响应
type IntrospectResponse struct {
	Timestamp time.Time    `json:"timestamp"`
	Uptime    string       `json:"uptime"`
	Version   string       `json:"version,omitempty"`
	Traffic   *TrafficInfo `json:"traffic,omitempty"`
	Cache     *CacheInfo   `json:"cache,omitempty"`
	Runtime   *RuntimeInfo `json:"runtime"`
}

// TrafficInfo 协议流量统计
type TrafficInfo struct {
	BytesIn         int64   `json:"bytes_in"`
	BytesOut        int64   `json:"bytes_out"`
	RateIn          float64 `json:"rate_in"`
	RateOut         float64 `json:"rate_out"`
	PacketsToClient int64   `json:"packets_to_client"`
	PacketsToServer int64   `json:"packets_to_server"`
	CodecErrors     int64   `json:"codec_errors"`
	Ends            int64   `json:"ends"`
}

// CacheInfo 编解码缓存
type CacheInfo struct {
	Entries int `json:"entries"`
}

// RuntimeInfo Go 运行时
type RuntimeInfo struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	GOMAXPROCS int    `json:"gomaxprocs"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	PauseTotal string `json:"gc_pause_total"`
}

// HealthResponse /health 的响应
//
// 指标关闭时没有流量来源，状态为 degraded。
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) health() any {
	status := "ok"
	if s.cfg.Traffic == nil {
		status = "degraded"
	}
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Uptime:    s.uptime().String(),
	}
}

func (s *Server) report() any {
	resp := IntrospectResponse{
		Timestamp: time.Now(),
		Uptime:    s.uptime().String(),
		Version:   s.cfg.Version,
		Traffic:   s.traffic(),
		Runtime:   readRuntime(),
	}
	if s.cfg.Cache != nil {
		resp.Cache = &CacheInfo{Entries: s.cfg.Cache.Len()}
	}
	return resp
}

func (s *Server) traffic() *TrafficInfo {
	if s.cfg.Traffic == nil {
		return nil
	}
	st := s.cfg.Traffic.Stats()
	return &TrafficInfo{
		BytesIn:         st.BytesIn,
		BytesOut:        st.BytesOut,
		RateIn:          st.RateIn,
		RateOut:         st.RateOut,
		PacketsToClient: st.PacketsToClient,
		PacketsToServer: st.PacketsToServer,
		CodecErrors:     st.CodecErrors,
		Ends:            st.Ends,
	}
}

func readRuntime() *RuntimeInfo {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &RuntimeInfo{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		GOMAXPROCS: runtime.GOMAXPROCS(0),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		NumGC:      ms.NumGC,
		PauseTotal: time.Duration(ms.PauseTotalNs).String(),
	}
}

// getJSON 只接受 GET，把 fn 的结果编码为 JSON
func getJSON(fn func() any) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := json.MarshalIndent(fn(), "", "  ")
		if err != nil {
			logger.Error("诊断响应编码失败", "path", r.URL.Path, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		_, _ = w.Write(append(body, '\n'))
	})
}

// promErrorLog 把 promhttp 的采集错误转到组件日志
type promErrorLog struct{}

func (promErrorLog) Println(v ...any) {
	logger.Warn("指标采集失败", "error", fmt.Sprint(v...))
}
