package framer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
)

// ErrFrameTooLarge 表示读取到的行超过了允许的最大长度。
var ErrFrameTooLarge = errors.New("framer: frame too large")

// Framer 抽象了基于行的打包/解包能力。
//
// 约定：
//   - 一帧数据为一行文本，以 '\n' 结尾，读取时同时接受 "\r\n"；
//   - 帧内容不包含结尾的换行符。
type Framer interface {
	// WriteFrame 将一帧数据写入 w，并追加换行符。
	WriteFrame(w io.Writer, frame []byte) error

	// ReadFrame 从 r 中读取一帧数据，返回值不包含换行符。
	ReadFrame(r *bufio.Reader) ([]byte, error)
}

// LineFramer 使用换行符作为帧边界，适用于 TCP 文本流与 WebSocket 文本消息。
type LineFramer struct {
	// MaxFrameSize 为允许的最大帧大小（不含换行符），单位字节。
	// 为 0 时使用默认值 DefaultMaxFrameSize。
	MaxFrameSize int
}

// DefaultMaxFrameSize 为默认的最大帧大小。
const DefaultMaxFrameSize = 64 * 1024

var _ Framer = (*LineFramer)(nil)

// NewLineFramer 创建一个行帧编码器。
// maxFrameSize 为 0 时使用默认值。
func NewLineFramer(maxFrameSize int) *LineFramer {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &LineFramer{MaxFrameSize: maxFrameSize}
}

// WriteFrame 写入一行数据。帧内容中不允许出现换行符。
func (f *LineFramer) WriteFrame(w io.Writer, frame []byte) error {
	if bytes.IndexByte(frame, '\n') >= 0 {
		return fmt.Errorf("framer: frame contains a line break")
	}
	if len(frame) > f.effectiveMaxSize() {
		return errors.Wrapf(ErrFrameTooLarge, "frame size %d exceeds max %d", len(frame), f.effectiveMaxSize())
	}

	buf := make([]byte, 0, len(frame)+1)
	buf = append(buf, frame...)
	buf = append(buf, '\n')
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("framer: write frame failed: %w", err)
	}
	return nil
}

// ReadFrame 读取一行数据。流在行中间结束时，已读取的部分作为最后一帧返回。
func (f *LineFramer) ReadFrame(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return line, nil
			}
			return nil, err
		}
		if len(line)+len(chunk) > f.effectiveMaxSize() {
			return nil, errors.Wrapf(ErrFrameTooLarge, "frame exceeds max %d", f.effectiveMaxSize())
		}
		// ReadLine 返回的切片会被下一次读取覆盖，需要复制。
		line = append(line, chunk...)
		if !isPrefix {
			if line == nil {
				line = []byte{}
			}
			return line, nil
		}
	}
}

func (f *LineFramer) effectiveMaxSize() int {
	if f == nil || f.MaxFrameSize <= 0 {
		return DefaultMaxFrameSize
	}
	return f.MaxFrameSize
}
