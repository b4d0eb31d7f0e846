package codec

import (
	"bufio"
	"fmt"
	"io"

	"github.com/foxssake/nohub/internal/network/framer"
)

// Codec 抽象了“从命令到网络帧，以及从网络帧回到命令”的完整编解码流程。
//
// Pipeline（写出 Encode）：
//
//	*Command --> Marshal --> framer.WriteFrame
//
// Pipeline（读入 Decode）：
//
//	framer.ReadFrame --> Unmarshal --> *Command
type Codec interface {
	// Encode 将命令编码并写入到底层流。
	Encode(w io.Writer, cmd *Command) error

	// Decode 从底层流中读取一帧并解析为命令。
	//
	// 返回的错误若满足 errors.Is(err, ErrMalformed)，说明该帧无法解析，
	// 但流本身仍然可用，调用方可以选择跳过该帧继续读取。
	Decode(r *bufio.Reader) (*Command, error)
}

type codec struct {
	framer framer.Framer
}

var _ Codec = (*codec)(nil)

// New 创建一个基于给定 Framer 的文本 Codec，framer 为 nil 时使用默认的行帧编码器。
func New(f framer.Framer) Codec {
	if f == nil {
		f = framer.NewLineFramer(0)
	}
	return &codec{framer: f}
}

// Encode 实现 Codec.Encode。
func (c *codec) Encode(w io.Writer, cmd *Command) error {
	if w == nil {
		return fmt.Errorf("codec: writer is nil")
	}
	line, err := Marshal(cmd)
	if err != nil {
		return err
	}
	if err := c.framer.WriteFrame(w, line); err != nil {
		return fmt.Errorf("codec: write frame failed: %w", err)
	}
	return nil
}

// Decode 实现 Codec.Decode。空行会被跳过。
func (c *codec) Decode(r *bufio.Reader) (*Command, error) {
	if r == nil {
		return nil, fmt.Errorf("codec: reader is nil")
	}
	for {
		line, err := c.framer.ReadFrame(r)
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}
		return Unmarshal(line)
	}
}
