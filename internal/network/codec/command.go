package codec

import (
	"strings"
)

// Kind 表示一条命令在交互中的角色。
type Kind uint8

const (
	// KindCommand 是不需要回复的普通命令：`name args...`。
	KindCommand Kind = iota
	// KindRequest 是需要回复的请求：`name?xid args...`。
	KindRequest
	// KindReply 是成功回复：`.xid args...`。
	KindReply
	// KindError 是失败回复：`!xid args...`。
	KindError
	// KindStream 是流式回复中的一段：`|xid args...`。
	KindStream
	// KindStreamEnd 结束一个流式回复：`|xid`。
	KindStreamEnd
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindRequest:
		return "request"
	case KindReply:
		return "reply"
	case KindError:
		return "error"
	case KindStream:
		return "stream"
	case KindStreamEnd:
		return "stream-end"
	default:
		return "unknown"
	}
}

// IsReply 判断是否是对某个请求的回复（包括流式回复）。
func (k Kind) IsReply() bool {
	return k == KindReply || k == KindError || k == KindStream || k == KindStreamEnd
}

// Pair 是命令参数中的一个 key=value 对。
type Pair struct {
	Key   string
	Value string
}

// Command 是协议层的一条消息。
//
// 回复类消息没有名称，通过 ExchangeID 与请求关联。
type Command struct {
	Name       string
	Kind       Kind
	ExchangeID string
	Params     []string
	KV         []Pair
}

// NewCommand 创建一条普通命令。
func NewCommand(name string, params ...string) *Command {
	return &Command{Name: name, Kind: KindCommand, Params: params}
}

// NewRequest 创建一条请求。
func NewRequest(name, exchangeID string, params ...string) *Command {
	return &Command{Name: name, Kind: KindRequest, ExchangeID: exchangeID, Params: params}
}

// Param 返回第 i 个位置参数，不存在时返回空字符串。
func (c *Command) Param(i int) string {
	if c == nil || i < 0 || i >= len(c.Params) {
		return ""
	}
	return c.Params[i]
}

// Text 返回位置参数以空格拼接后的文本，主要用于错误信息。
func (c *Command) Text() string {
	return strings.Join(c.Params, " ")
}

// ReplyTo 基于请求构造一条同交互 ID 的回复。
func (c *Command) ReplyTo(kind Kind, params ...string) *Command {
	return &Command{Kind: kind, ExchangeID: c.ExchangeID, Params: params}
}

func (c *Command) String() string {
	line, err := Marshal(c)
	if err != nil {
		return "<invalid command: " + err.Error() + ">"
	}
	return string(line)
}
