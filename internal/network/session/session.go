package session

import (
	"context"
	"net"

	"github.com/foxssake/nohub/internal/network/codec"
)

// Session 抽象了一条网络会话/连接。
//
// 约定：
//   - 每个 Session 对应一条底层连接（一个 TCP 连接或 WebSocket 会话）。
//   - Session ID 使用 64 位无符号整型，由接入层分配，在进程内唯一。
//   - 网络层只关心连接本身，业务层的会话记录通过 Attach 挂在连接上。
type Session interface {
	// ID 返回该会话在网络层的唯一标识。
	ID() uint64

	// Context 返回与该会话关联的上下文，会话关闭时触发 Done()。
	Context() context.Context

	// RemoteAddr 返回远端地址（客户端地址）。
	//
	// 说明：
	//   - 对于 TCP 连接，通常为 "ip:port"。
	//   - 主要用于按地址限流以及 whereami 命令。
	RemoteAddr() net.Addr

	// LocalAddr 返回本端地址（服务器监听地址）。
	LocalAddr() net.Addr

	// Send 向该会话发送一条命令。
	//
	// 行为：
	//   - 仅将命令投递到发送队列，不阻塞调用方；
	//   - 队列已满时丢弃该命令并返回 ErrSendQueueFull；
	//   - 会话已关闭时返回 ErrSessionClosed。
	Send(cmd *codec.Command) error

	// Close 关闭该会话。
	//
	// 说明：
	//   - 已经进入发送队列的命令会在关闭连接前尽量写出；
	//   - 多次调用是幂等的。
	Close() error

	// Attach 将业务对象挂到会话上，Attachment 读取它。
	Attach(v any)
	Attachment() any
}
