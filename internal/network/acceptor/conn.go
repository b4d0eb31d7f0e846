package acceptor

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/framer"
	"github.com/foxssake/nohub/internal/network/session"
)

// connIDs 为进程内所有接入器共享的连接 ID 生成器。
var connIDs atomic.Uint64

func newCodec(cfg Config) codec.Codec {
	return codec.New(framer.NewLineFramer(cfg.MaxFrameSize))
}

// serveConn 处理单个连接的完整生命周期，在连接关闭后返回。
//
// 流程：
//  1. 创建 BaseSession 并注册到 SessionManager；
//  2. 回调 Handler.OnConnected；
//  3. 在当前协程中循环读取并解码命令，按顺序回调 Handler.OnMessage；
//  4. 读取结束后关闭会话、注销，并回调 Handler.OnClosed。
func serveConn(ctx context.Context, conn net.Conn, cfg Config, c codec.Codec, sm session.SessionManager, h Handler) {
	sess := session.NewBaseSession(ctx, connIDs.Inc(), conn, c, cfg.sessionOptions()...)
	if err := sm.Register(sess); err != nil {
		_ = sess.Close()
		h.OnError(sess, network.StageAccept, errors.Mark(err, network.ErrAcceptFailed))
		return
	}
	h.OnConnected(sess)

	err := readLoop(sess, conn, cfg, c, h)

	_ = sess.Close()
	sm.Unregister(sess.ID())
	h.OnClosed(sess, err)
}

func readLoop(sess session.Session, conn net.Conn, cfg Config, c codec.Codec, h Handler) error {
	r := bufio.NewReader(conn)
	for {
		if cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		}

		cmd, err := c.Decode(r)
		switch {
		case err == nil:
			h.OnMessage(sess, cmd)
		case errors.Is(err, codec.ErrMalformed):
			h.OnError(sess, network.StageDecode, errors.Mark(err, network.ErrDecodeFailed))
		case isClosedErr(err) || sess.Context().Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// isClosedErr 判断读取错误是否表示连接被正常关闭。
func isClosedErr(err error) bool {
	return errors.IsAny(err, io.EOF, net.ErrClosed, io.ErrClosedPipe)
}
