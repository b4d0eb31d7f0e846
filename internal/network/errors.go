package network

import "github.com/cockroachdb/errors"

// Stage 表示网络收发链路中的处理阶段。
//
// 主要用于在回调中标记错误发生的位置，便于监控与排查。
type Stage string

const (
	StageAccept   Stage = "accept"   // 接入连接（含 WebSocket 升级）
	StageDecode   Stage = "decode"   // 行 -> Command
	StageDispatch Stage = "dispatch" // Command -> 业务处理
	StageEncode   Stage = "encode"   // Command -> 行
	StageSend     Stage = "send"     // 写入底层连接
)

// 统一的错误码常量。
//
// 注意：这些是用于日志/监控的稳定字符串，真正的 error 对象在下面通过 errors.New 构造。
const (
	ErrCodeAcceptFailed   = "network:accept_failed"
	ErrCodeDecodeFailed   = "network:decode_failed"
	ErrCodeSendQueueFull  = "network:send_queue_full"
	ErrCodeSessionClosed  = "network:session_closed"
	ErrCodeDispatchFailed = "network:dispatch_failed"
)

var (
	// ErrAcceptFailed 表示接入连接失败（例如 WebSocket 升级失败）。
	ErrAcceptFailed = errors.New(ErrCodeAcceptFailed)

	// ErrDecodeFailed 表示无法将收到的行解析为命令。
	ErrDecodeFailed = errors.New(ErrCodeDecodeFailed)

	// ErrSendQueueFull 表示会话发送队列已满，消息被丢弃。
	ErrSendQueueFull = errors.New(ErrCodeSendQueueFull)

	// ErrSessionClosed 表示会话已经关闭。
	ErrSessionClosed = errors.New(ErrCodeSessionClosed)

	// ErrDispatchFailed 表示将命令交给业务处理时失败（例如事件循环已停止）。
	ErrDispatchFailed = errors.New(ErrCodeDispatchFailed)
)
