package router

import (
	"net"

	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// CommandError 为非请求命令失败时推送的命令名。
const CommandError = "error"

// Conn 是 Exchange 所需的最小连接能力，network/session.Session 满足该接口。
type Conn interface {
	RemoteAddr() net.Addr
	Attach(v any)
	Attachment() any
	Send(cmd *codec.Command) error
}

// Exchange 表示一次命令交互：收到的命令以及回复它所用的连接。
type Exchange struct {
	Conn    Conn
	Command *codec.Command
}

// NewExchange 创建一次交互。
func NewExchange(conn Conn, cmd *codec.Command) *Exchange {
	return &Exchange{Conn: conn, Command: cmd}
}

// IsRequest 判断收到的命令是否需要回复。
func (ex *Exchange) IsRequest() bool {
	return ex.Command.Kind == codec.KindRequest
}

// RequireRequest 要求收到的命令是请求。
func (ex *Exchange) RequireRequest() error {
	if !ex.IsRequest() {
		return merr.WrapErrInvalidCommand("Command must be a request!")
	}
	return nil
}

// RequireParam 返回第 i 个位置参数，缺失或为空时以 message 作为 InvalidCommandError 返回。
func (ex *Exchange) RequireParam(i int, message string) (string, error) {
	param := ex.Command.Param(i)
	if param == "" {
		return "", merr.WrapErrInvalidCommand(message)
	}
	return param, nil
}

// Reply 发送成功回复：`.xid params...`。
func (ex *Exchange) Reply(params ...string) error {
	return ex.Conn.Send(ex.Command.ReplyTo(codec.KindReply, params...))
}

// ReplyOrSend 对请求发送成功回复，对普通命令则推送一条名为 name 的命令。
func (ex *Exchange) ReplyOrSend(name string, params ...string) error {
	if ex.IsRequest() {
		return ex.Reply(params...)
	}
	return ex.Conn.Send(codec.NewCommand(name, params...))
}

// Stream 发送一段流式回复：`|xid params... k=v...`。
func (ex *Exchange) Stream(params []string, kv []codec.Pair) error {
	chunk := ex.Command.ReplyTo(codec.KindStream, params...)
	chunk.KV = kv
	return ex.Conn.Send(chunk)
}

// FinishStream 结束流式回复：`|xid`。
func (ex *Exchange) FinishStream() error {
	return ex.Conn.Send(ex.Command.ReplyTo(codec.KindStreamEnd))
}

// Fail 把 err 作为失败信息发给对端。
//
// 请求收到 `!xid ErrorName message`，普通命令收到 `error ErrorName message`。
func (ex *Exchange) Fail(err error) error {
	name, message := merr.Name(err), merr.Message(err)
	if ex.IsRequest() {
		return ex.Conn.Send(ex.Command.ReplyTo(codec.KindError, name, message))
	}
	return ex.Conn.Send(codec.NewCommand(CommandError, name, message))
}
