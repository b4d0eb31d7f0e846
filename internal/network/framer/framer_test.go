package framer

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFrame(t *testing.T) {
	f := NewLineFramer(0)
	r := bufio.NewReader(strings.NewReader("whereami\r\nlobby/list?1\n\npartial"))

	frame, err := f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "whereami", string(frame))

	frame, err = f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "lobby/list?1", string(frame))

	frame, err = f.ReadFrame(r)
	require.NoError(t, err)
	assert.Empty(t, frame)

	frame, err = f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, "partial", string(frame))

	_, err = f.ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameLongerThanBuffer(t *testing.T) {
	f := NewLineFramer(0)
	long := strings.Repeat("x", 10000)
	r := bufio.NewReaderSize(strings.NewReader(long+"\n"), 16)

	frame, err := f.ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, long, string(frame))
}

func TestReadFrameTooLarge(t *testing.T) {
	f := NewLineFramer(8)
	r := bufio.NewReaderSize(strings.NewReader("0123456789\n"), 16)

	_, err := f.ReadFrame(r)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestWriteFrame(t *testing.T) {
	f := NewLineFramer(8)
	var buf bytes.Buffer

	require.NoError(t, f.WriteFrame(&buf, []byte("ok")))
	assert.Equal(t, "ok\n", buf.String())

	assert.Error(t, f.WriteFrame(&buf, []byte("a\nb")))
	assert.ErrorIs(t, f.WriteFrame(&buf, []byte("0123456789")), ErrFrameTooLarge)
}
