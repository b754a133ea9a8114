package conn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dep2p/go-mcproto/internal/core/eventbus"
	"github.com/dep2p/go-mcproto/internal/core/pipeline"
	"github.com/dep2p/go-mcproto/internal/core/transform"
	"github.com/dep2p/go-mcproto/pkg/interfaces"
	"github.com/dep2p/go-mcproto/pkg/types"
)

// ErrAlreadyConnected 连接已接入 socket
var ErrAlreadyConnected = errors.New("conn: socket already set")

// SetSocket 接入 socket 并启动读循环
//
// 上一个 socket 终止后可以再次调用。
func (c *Conn) SetSocket(sock net.Conn) error {
	if sock == nil {
		return ErrNotConnected
	}

	c.mu.Lock()
	if !c.ended {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	stale := c.input.Aborted() || c.output.Aborted()
	c.mu.Unlock()

	if stale {
		if err := c.reset(); err != nil {
			return err
		}
	}
	if tcp, ok := sock.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	c.mu.Lock()
	c.socket = sock
	c.ended = false
	c.ending = false
	c.endReason = ""
	in, out := c.input, c.output
	c.mu.Unlock()

	out.SetSink(c.socketSink(sock))
	go c.readLoop(sock, in)

	logger.Debug("socket 已接入", "role", c.role, "remote", remoteAddr(sock))
	c.bus.Emit(eventbus.TopicConnect)
	return nil
}

// socketSink 把输出管道的字节写入 socket
func (c *Conn) socketSink(sock net.Conn) interfaces.Push {
	return func(chunk any) error {
		b, err := transform.Bytes(chunk)
		if err != nil {
			return err
		}
		n, err := sock.Write(b)
		if r := c.reporter(); r != nil {
			r.LogSentBytes(n)
		}
		if err != nil {
			return types.Fatal("socket", fmt.Errorf("%w: %v", types.ErrTransport, err))
		}
		return nil
	}
}

// readLoop 把 socket 读到的字节写入输入管道
func (c *Conn) readLoop(sock net.Conn, in *pipeline.Pipeline) {
	buf := make([]byte, readBufferSize)
	for {
		// socket 截止时间只接受墙上时钟
		if d := c.opts.idleTimeout; d > 0 {
			_ = sock.SetReadDeadline(time.Now().Add(d))
		}
		n, err := sock.Read(buf)
		if n > 0 {
			if r := c.reporter(); r != nil {
				r.LogRecvBytes(n)
			}
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if werr := in.Write(chunk); werr != nil && !errors.Is(werr, pipeline.ErrAborted) {
				c.fail(werr)
			}
		}
		if err != nil {
			c.finish(sock, classify(err), err)
			return
		}
	}
}

func classify(err error) string {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ReasonSocketTimeout
	}
	return ReasonSocketClosed
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// ============================================================================
//                              终止
// ============================================================================

// End 以指定原因终止连接
//
// 两条管道立即取消，socket 半关闭；对端在关闭超时内没有关闭时强制销毁。
// 可以在事件回调内部调用，重复调用无效。reason 为空时终止原因取决于
// socket 最终如何关闭。
func (c *Conn) End(reason string) {
	c.mu.Lock()
	if c.ending {
		c.mu.Unlock()
		return
	}
	in, out := c.input, c.output
	sock := c.socket
	connected := !c.ended && sock != nil
	if connected {
		c.ending = true
		c.endReason = reason
		timeout := c.opts.closeTimeout
		c.closeTimer = c.opts.clock.AfterFunc(timeout, func() {
			logger.Debug("关闭超时，强制销毁 socket", "timeout", timeout)
			_ = sock.Close()
		})
	}
	c.mu.Unlock()

	in.Abort()
	out.Abort()
	if !connected {
		return
	}

	logger.Debug("正在终止连接", "reason", reason)
	if hc, ok := sock.(interface{ CloseWrite() error }); ok {
		if err := hc.CloseWrite(); err != nil {
			logger.Debug("半关闭失败", "err", err)
		}
	}
}

// finish socket 关闭后的收尾
//
// 先复位状态与管道，再发出 end 事件。
func (c *Conn) finish(sock net.Conn, reason string, cause error) {
	c.mu.Lock()
	if c.ended || c.socket != sock {
		c.mu.Unlock()
		return
	}
	explicit := c.ending
	if explicit && c.endReason != "" {
		reason = c.endReason
	}
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	c.ended = true
	c.ending = false
	c.endReason = ""
	c.socket = nil
	in, out := c.input, c.output
	c.mu.Unlock()

	in.Abort()
	out.Abort()
	_ = sock.Close()

	if cause != nil && !explicit && !isClosed(cause) && reason != ReasonSocketTimeout {
		c.emitError(types.Fatal("socket", fmt.Errorf("%w: %v", types.ErrTransport, cause)))
	}

	if err := c.reset(); err != nil {
		logger.Warn("复位连接失败", "err", err)
	}

	logger.Debug("连接已终止", "reason", reason, "role", c.role)
	if r := c.reporter(); r != nil {
		r.LogEnd(reason)
	}
	c.bus.Emit(eventbus.TopicEnd, reason)
}

// fail 处理致命错误：上报后终止连接
func (c *Conn) fail(err error) {
	c.emitError(err)
	reason := ReasonProtocolError
	if errors.Is(err, types.ErrTransport) {
		reason = ReasonSocketClosed
	}
	c.End(reason)
}

func remoteAddr(sock net.Conn) string {
	if a := sock.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}
