package acceptor

import (
	"context"
	"net"
	"time"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/session"
)

// Config 描述 Acceptor 在会话层面的配置。
//
// 说明：
//   - SendQueueSize 控制每个连接的发送队列大小；
//   - ReadTimeout/WriteTimeout 控制单次读写的超时时间（为 0 表示不设置 deadline）；
//   - MaxConnections 为同时在线的连接上限，0 表示不限；
//   - MaxFrameSize 为单行命令的最大字节数，0 表示使用默认值；
//   - Path 仅对 WebSocket 接入器生效，控制升级路径（如 "/ws"）；
//   - WorkerExpiry 为 TCP 连接协程池回收空闲 worker 的周期。
type Config struct {
	SendQueueSize int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration

	MaxConnections int
	MaxFrameSize   int

	Path string

	WorkerExpiry time.Duration
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		SendQueueSize: session.DefaultSendQueueSize,
		WriteTimeout:  10 * time.Second,
		Path:          "/ws",
		WorkerExpiry:  time.Minute,
	}
}

func (c Config) sessionOptions() []session.Option {
	return []session.Option{
		session.WithSendQueueSize(c.SendQueueSize),
		session.WithWriteTimeout(c.WriteTimeout),
	}
}

// Handler 由使用者实现，用于在连接生命周期的各个阶段插入业务逻辑。
//
// 同一连接上的 OnConnected、OnMessage、OnClosed 在该连接的读协程中按顺序调用，
// 实现方应尽快返回，耗时操作请投递到自己的协程。
type Handler interface {
	// OnConnected 在连接建立并完成会话注册后被调用。
	OnConnected(sess session.Session)

	// OnMessage 在成功解码出一条命令后被调用。
	OnMessage(sess session.Session, cmd *codec.Command)

	// OnClosed 在连接生命周期结束时被调用，正常关闭时 err 为 nil。
	OnClosed(sess session.Session, err error)

	// OnError 在各个阶段出现可恢复的错误时被调用，sess 可能为 nil。
	OnError(sess session.Session, stage network.Stage, err error)
}

// Acceptor 抽象了服务器侧的接入层。
//
// 职责：
//   - 监听端口并接受连接；
//   - 为每个连接创建 Session，驱动解码并回调 Handler；
//   - 维护当前活跃会话，停止时关闭全部连接。
type Acceptor interface {
	// Serve 启动服务，阻塞直至 ctx 取消、Close 被调用或出现致命错误。
	// 正常停止时返回 nil。
	Serve(ctx context.Context, h Handler) error

	// Close 停止接受新连接，并关闭全部活跃会话。
	Close() error

	// Addr 返回实际监听的地址。
	Addr() net.Addr

	// Sessions 返回会话管理器。
	Sessions() session.SessionManager
}
