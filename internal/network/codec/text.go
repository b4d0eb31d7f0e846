package codec

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMalformed 表示无法解析的命令行。
var ErrMalformed = errors.New("codec: malformed command")

const (
	headReply  = '.'
	headError  = '!'
	headStream = '|'
	headXid    = '?'
)

// Marshal 将命令编码为一行文本（不含换行符）。
//
// 格式：
//
//	name args...         普通命令
//	name?xid args...     请求
//	.xid args...         成功回复
//	!xid args...         失败回复
//	|xid args...         流式回复片段
//	|xid                 流式回复结束
//
// 参数以空格分隔，位置参数在前，key=value 对在后。
// 空字符串或包含空格、引号、反斜杠、'=' 或控制字符的参数会加双引号并转义。
func Marshal(cmd *Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.Wrap(ErrMalformed, "command is nil")
	}

	var sb strings.Builder
	switch cmd.Kind {
	case KindCommand, KindRequest:
		if !validName(cmd.Name) {
			return nil, errors.Wrapf(ErrMalformed, "invalid command name %q", cmd.Name)
		}
		sb.WriteString(cmd.Name)
		if cmd.Kind == KindRequest {
			sb.WriteByte(headXid)
			sb.WriteString(cmd.ExchangeID)
		}
	case KindReply:
		sb.WriteByte(headReply)
		sb.WriteString(cmd.ExchangeID)
	case KindError:
		sb.WriteByte(headError)
		sb.WriteString(cmd.ExchangeID)
	case KindStream:
		if len(cmd.Params) == 0 && len(cmd.KV) == 0 {
			return nil, errors.Wrap(ErrMalformed, "stream chunk without arguments")
		}
		sb.WriteByte(headStream)
		sb.WriteString(cmd.ExchangeID)
	case KindStreamEnd:
		sb.WriteByte(headStream)
		sb.WriteString(cmd.ExchangeID)
		return []byte(sb.String()), nil
	default:
		return nil, errors.Wrapf(ErrMalformed, "unknown kind %d", cmd.Kind)
	}
	if !validXid(cmd.ExchangeID) {
		return nil, errors.Wrapf(ErrMalformed, "invalid exchange id %q", cmd.ExchangeID)
	}

	for _, param := range cmd.Params {
		sb.WriteByte(' ')
		writeToken(&sb, param)
	}
	for _, pair := range cmd.KV {
		sb.WriteByte(' ')
		writeToken(&sb, pair.Key)
		sb.WriteByte('=')
		writeToken(&sb, pair.Value)
	}
	return []byte(sb.String()), nil
}

// Unmarshal 解析一行文本。
func Unmarshal(line []byte) (*Command, error) {
	text := strings.TrimRight(string(line), "\r\n")
	head, rest, _ := strings.Cut(text, " ")
	if head == "" {
		return nil, errors.Wrap(ErrMalformed, "missing command head")
	}

	cmd := &Command{}
	switch head[0] {
	case headReply:
		cmd.Kind = KindReply
		cmd.ExchangeID = head[1:]
	case headError:
		cmd.Kind = KindError
		cmd.ExchangeID = head[1:]
	case headStream:
		cmd.Kind = KindStream
		cmd.ExchangeID = head[1:]
	default:
		name, xid, isRequest := strings.Cut(head, string(headXid))
		if !validName(name) {
			return nil, errors.Wrapf(ErrMalformed, "invalid command name %q", name)
		}
		cmd.Name = name
		cmd.Kind = KindCommand
		if isRequest {
			cmd.Kind = KindRequest
			cmd.ExchangeID = xid
		}
	}
	if !validXid(cmd.ExchangeID) {
		return nil, errors.Wrapf(ErrMalformed, "invalid exchange id %q", cmd.ExchangeID)
	}

	tokens, err := tokenize(rest)
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		if tok.isPair {
			cmd.KV = append(cmd.KV, Pair{Key: tok.key, Value: tok.value})
		} else {
			cmd.Params = append(cmd.Params, tok.key)
		}
	}

	if cmd.Kind == KindStream && len(tokens) == 0 {
		cmd.Kind = KindStreamEnd
	}
	return cmd, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case headReply, headError, headStream:
		return false
	}
	return !strings.ContainsFunc(name, func(r rune) bool {
		return r == ' ' || r == '"' || r == '=' || r == headXid || isControl(r)
	})
}

func validXid(xid string) bool {
	return !strings.ContainsFunc(xid, func(r rune) bool {
		return r == ' ' || r == '"' || isControl(r)
	})
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func needsQuote(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsFunc(s, func(r rune) bool {
		return r == ' ' || r == '"' || r == '\\' || r == '=' || isControl(r)
	})
}

func writeToken(sb *strings.Builder, s string) {
	if !needsQuote(s) {
		sb.WriteString(s)
		return
	}
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
}

type token struct {
	key    string
	value  string
	isPair bool
}

// tokenize 按空格切分参数。引号内的空格与 '=' 不参与切分。
func tokenize(s string) ([]token, error) {
	var (
		tokens  []token
		current strings.Builder
		tok     token
		started bool
	)

	flush := func() {
		if !started {
			return
		}
		if tok.isPair {
			tok.value = current.String()
		} else {
			tok.key = current.String()
		}
		tokens = append(tokens, tok)
		tok = token{}
		current.Reset()
		started = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ':
			flush()
		case c == '"':
			started = true
			end, err := readQuoted(s, i+1, &current)
			if err != nil {
				return nil, err
			}
			i = end
		case c == '=' && !tok.isPair:
			started = true
			tok.isPair = true
			tok.key = current.String()
			current.Reset()
		default:
			started = true
			current.WriteByte(c)
		}
	}
	flush()
	return tokens, nil
}

// readQuoted 从 start 开始读取引号内的内容，返回结束引号的位置。
func readQuoted(s string, start int, out *strings.Builder) (int, error) {
	for i := start; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return i, nil
		case '\\':
			if i+1 >= len(s) {
				return 0, errors.Wrap(ErrMalformed, "dangling escape")
			}
			i++
			switch s[i] {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			default:
				out.WriteByte(s[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return 0, errors.Wrap(ErrMalformed, "unterminated quote")
}
