// Package main 提供 mcproto 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcproto "github.com/dep2p/go-mcproto"
	"github.com/dep2p/go-mcproto/pkg/lib/log"
	"github.com/dep2p/go-mcproto/pkg/types"
)

var logger = log.Logger("mcproto/cmd")

// errUsage 参数错误，已打印帮助
var errUsage = errors.New("usage")

// commonFlags 各子命令共享的参数
type commonFlags struct {
	configFile string
	version    string
	logLevel   string
	diagAddr   string
	timeout    time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "JSON 配置文件路径")
	fs.StringVar(&c.version, "version", "", "协议版本（默认取配置文件或 "+types.DefaultVersion+"）")
	fs.StringVar(&c.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	fs.StringVar(&c.diagAddr, "diag", "", "本地诊断 HTTP 服务地址，如 127.0.0.1:6060")
	fs.DurationVar(&c.timeout, "timeout", 10*time.Second, "连接与握手超时")
}

// options 合成配置：配置文件 < 环境变量 < 命令行参数
func (c *commonFlags) options(fs *flag.FlagSet, preset string) ([]mcproto.Option, error) {
	cfg, err := loadConfig(c.configFile, preset)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if isFlagSet(fs, "version") {
		cfg.Protocol.Version = c.version
	}
	if isFlagSet(fs, "log-level") {
		cfg.Log.Level = c.logLevel
	}
	if isFlagSet(fs, "diag") {
		cfg.Metrics.ListenAddr = c.diagAddr
	}
	return []mcproto.Option{
		mcproto.WithConfig(cfg),
		mcproto.WithLogOutput(os.Stderr),
	}, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		printHelp(out)
		return errUsage
	}

	switch args[0] {
	case "ping":
		return runPing(args[1:], out)
	case "login":
		return runLogin(args[1:], out)
	case "serve":
		return runServe(args[1:], out)
	case "version":
		fmt.Fprintln(out, mcproto.VersionInfo())
		return nil
	case "help", "-h", "--help":
		printHelp(out)
		return nil
	default:
		printHelp(out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// ============================================================================
//                              ping
// ============================================================================

func runPing(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ping", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(out, "用法: mcproto ping [参数] <host[:port]>")
		return errUsage
	}
	opts, err := common.options(fs, mcproto.PresetClient)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), common.timeout)
	defer cancel()

	client, err := mcproto.NewClient(opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Connect(ctx, fs.Arg(0)); err != nil {
		return err
	}
	res, err := client.Ping(ctx)
	if err != nil {
		return err
	}

	st := res.Status
	fmt.Fprintf(out, "版本:   %s (协议 %d)\n", st.Version.Name, st.Version.Protocol)
	fmt.Fprintf(out, "描述:   %s\n", st.Description.Text)
	fmt.Fprintf(out, "玩家:   %d/%d\n", st.Players.Online, st.Players.Max)
	fmt.Fprintf(out, "延迟:   %s\n", res.Latency)
	return nil
}

// ============================================================================
//                              login
// ============================================================================

func runLogin(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	username := fs.String("username", "Player", "玩家名")
	stay := fs.Bool("stay", false, "登录后保持连接直到 Ctrl+C")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(out, "用法: mcproto login [参数] <host[:port]>")
		return errUsage
	}
	opts, err := common.options(fs, mcproto.PresetClient)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), common.timeout)
	defer cancel()

	client, err := mcproto.Dial(ctx, fs.Arg(0), *username, opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	prof := client.Profile()
	fmt.Fprintf(out, "已登录: %s (%s)\n", prof.Name, prof.ID)
	fmt.Fprintf(out, "压缩:   %d, 加密: %v\n", client.CompressionThreshold(), client.Encrypted())

	if !*stay {
		return nil
	}

	ended := make(chan string, 1)
	if _, err := client.OnEnd(func(reason string) {
		select {
		case ended <- reason:
		default:
		}
	}); err != nil {
		return err
	}
	_, _ = client.OnPacket("chat", false, func(p types.Params) {
		logger.Info("收到聊天", "message", p["message"])
	})

	sigCtx, stop := signalContext()
	defer stop()
	select {
	case reason := <-ended:
		fmt.Fprintf(out, "连接已结束: %s\n", reason)
	case <-sigCtx.Done():
	}
	return nil
}

// ============================================================================
//                              serve
// ============================================================================

func runServe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	addr := fs.String("addr", fmt.Sprintf(":%d", mcproto.DefaultPort), "监听地址")
	online := fs.Bool("online", false, "在线模式（加密并校验会话）")
	threshold := fs.Int("compression", 256, "压缩阈值，-1 关闭")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	opts, err := common.options(fs, mcproto.PresetServer)
	if err != nil {
		return err
	}
	if isFlagSet(fs, "online") {
		opts = append(opts, mcproto.WithOnlineMode(*online))
	}
	if isFlagSet(fs, "compression") {
		opts = append(opts, mcproto.WithCompressionThreshold(*threshold))
	}

	ctx, stop := signalContext()
	defer stop()
	srv, err := mcproto.Listen(ctx, *addr, handlePlayer, opts...)
	if err != nil {
		return err
	}
	logger.Info("启动 mcproto 服务器", "version", mcproto.Version, "commit", mcproto.GitCommit)
	fmt.Fprintf(out, "服务器已监听 %s，按 Ctrl+C 退出\n", srv.Addr())

	<-ctx.Done()
	fmt.Fprintln(out, "正在关闭服务器...")
	return srv.Close()
}

// handlePlayer 记录玩家聊天，连接保持到客户端断开
func handlePlayer(_ context.Context, sc *mcproto.ServerConn) {
	prof := sc.Profile()
	logger.Info("玩家已登录", "name", prof.Name, "uuid", prof.ID)
	_, _ = sc.OnPacket("chat", false, func(p types.Params) {
		logger.Info("玩家聊天", "name", prof.Name, "message", p["message"])
	})
}

// ============================================================================
//                              辅助函数
// ============================================================================

// signalContext 在收到 SIGINT/SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printHelp(out io.Writer) {
	fmt.Fprint(out, `mcproto - Minecraft 协议工具

用法:
  mcproto <命令> [参数]

命令:
  ping    查询服务器状态
  login   以离线或在线身份登录服务器
  serve   启动一个只完成登录握手的服务器
  version 显示版本信息

通用参数:
  -config     JSON 配置文件
  -version    协议版本
  -log-level  日志级别
  -diag       诊断 HTTP 服务地址
  -timeout    连接与握手超时

环境变量（优先级低于命令行参数）:
  MCPROTO_VERSION, MCPROTO_AUTH, MCPROTO_ONLINE_MODE,
  MCPROTO_COMPRESSION_THRESHOLD, MCPROTO_DIAG_ADDR
`)
}
