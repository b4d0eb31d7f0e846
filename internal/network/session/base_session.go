package session

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/framer"
	"github.com/foxssake/nohub/pkg/log"
)

// BaseSession 提供了 Session 接口的基础实现。
//
// 设计目标：
//   - 封装最小但完整的会话能力：ID、Context、地址信息、发送与关闭；
//   - 所有写操作都在独立的发送协程中完成，避免多 goroutine 并发写 conn 导致的报文交叉。
type BaseSession struct {
	id uint64

	ctx    context.Context
	cancel context.CancelFunc

	conn  net.Conn
	codec codec.Codec

	remoteAddr net.Addr
	localAddr  net.Addr

	// sendQueue 为待发送命令的对象级队列。
	//   - Send 仅负责将命令投递到该队列；
	//   - 独立的发送协程从队列中取出命令，编码后写入底层连接。
	sendQueue chan *codec.Command

	writeTimeout time.Duration

	mu         sync.Mutex
	attachment any

	closeOnce sync.Once
	done      chan struct{}

	logger *log.MLogger
}

// 确保 BaseSession 实现了 Session 接口。
var _ Session = (*BaseSession)(nil)

const (
	// DefaultSendQueueSize 为每个会话的发送队列容量。
	DefaultSendQueueSize = 1024

	// defaultWriteTimeout 为单次写出的超时时间，避免对端停止读取时发送协程永久阻塞。
	defaultWriteTimeout = 10 * time.Second
)

// Option 用于配置 BaseSession。
type Option func(*BaseSession)

// WithSendQueueSize 设置发送队列容量。
func WithSendQueueSize(size int) Option {
	return func(s *BaseSession) {
		if size > 0 {
			s.sendQueue = make(chan *codec.Command, size)
		}
	}
}

// WithWriteTimeout 设置单次写出的超时时间，0 表示不设置。
func WithWriteTimeout(d time.Duration) Option {
	return func(s *BaseSession) {
		s.writeTimeout = d
	}
}

// NewBaseSession 创建一个基于 net.Conn 的基础 Session 实例。
//
// 参数：
//   - parent：会话所属的上层上下文（例如 Acceptor 的 Serve ctx）；若为 nil，则使用 context.Background()；
//   - id    ：会话 ID，应在调用侧保证唯一；
//   - conn  ：底层网络连接；
//   - c     ：用于该连接的 Codec。
func NewBaseSession(parent context.Context, id uint64, conn net.Conn, c codec.Codec, opts ...Option) *BaseSession {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	s := &BaseSession{
		id:           id,
		ctx:          ctx,
		cancel:       cancel,
		conn:         conn,
		codec:        c,
		remoteAddr:   conn.RemoteAddr(),
		localAddr:    conn.LocalAddr(),
		sendQueue:    make(chan *codec.Command, DefaultSendQueueSize),
		writeTimeout: defaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With(log.FieldModule("network"), log.FieldComponent("session"), zap.Uint64("connID", id)).
		WithRateGroup("network.session.send", 1, 60)

	go s.sendLoop()
	return s
}

// ID 实现 Session.ID。
func (s *BaseSession) ID() uint64 {
	return s.id
}

// Context 实现 Session.Context。
func (s *BaseSession) Context() context.Context {
	return s.ctx
}

// RemoteAddr 实现 Session.RemoteAddr。
func (s *BaseSession) RemoteAddr() net.Addr {
	return s.remoteAddr
}

// LocalAddr 实现 Session.LocalAddr。
func (s *BaseSession) LocalAddr() net.Addr {
	return s.localAddr
}

// Send 实现 Session.Send。
func (s *BaseSession) Send(cmd *codec.Command) error {
	if s.ctx.Err() != nil {
		return network.ErrSessionClosed
	}
	select {
	case s.sendQueue <- cmd:
		return nil
	default:
		s.logger.RatedWarn(1, "send queue full, dropping command",
			zap.Stringer("remote", s.remoteAddr), zap.Int("queueSize", cap(s.sendQueue)))
		return network.ErrSendQueueFull
	}
}

// Close 实现 Session.Close。
//
// 仅取消上下文，真正的连接关闭由发送协程在写出剩余命令后完成，因此不会阻塞调用方。
func (s *BaseSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	return nil
}

// Done 在底层连接真正关闭后被关闭。
func (s *BaseSession) Done() <-chan struct{} {
	return s.done
}

// Attach 实现 Session.Attach。
func (s *BaseSession) Attach(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attachment = v
}

// Attachment 实现 Session.Attachment。
func (s *BaseSession) Attachment() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachment
}

// sendLoop 为每个会话启动的专职发送协程。
//
// 行为：
//   - 从 sendQueue 中按顺序取出待发送命令，编码到带缓冲的 writer；
//   - 队列暂时为空时刷新 writer，减少小包写出次数；
//   - 上下文取消后写出队列中剩余的命令，然后关闭连接。
func (s *BaseSession) sendLoop() {
	defer close(s.done)
	w := bufio.NewWriter(s.conn)

	for {
		select {
		case <-s.ctx.Done():
			s.drain(w)
			_ = s.conn.Close()
			return
		case cmd := <-s.sendQueue:
			if err := s.write(w, cmd); err != nil {
				s.logger.Debug("failed to write command, closing session", zap.Error(err))
				s.cancel()
				_ = s.conn.Close()
				return
			}
			if len(s.sendQueue) == 0 {
				if err := s.flush(w); err != nil {
					s.logger.Debug("failed to flush, closing session", zap.Error(err))
					s.cancel()
					_ = s.conn.Close()
					return
				}
			}
		}
	}
}

func (s *BaseSession) write(w *bufio.Writer, cmd *codec.Command) error {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	err := s.codec.Encode(w, cmd)
	if errors.IsAny(err, codec.ErrMalformed, framer.ErrFrameTooLarge) {
		// 无法编码的命令只丢弃本条，不影响连接。
		s.logger.Warn("failed to encode command", zap.Error(err))
		return nil
	}
	return err
}

func (s *BaseSession) flush(w *bufio.Writer) error {
	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	return w.Flush()
}

func (s *BaseSession) drain(w *bufio.Writer) {
	for {
		select {
		case cmd := <-s.sendQueue:
			_ = s.write(w, cmd)
		default:
			_ = s.flush(w)
			return
		}
	}
}
