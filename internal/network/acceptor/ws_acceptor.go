package acceptor

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/framer"
	"github.com/foxssake/nohub/internal/network/session"
	"github.com/foxssake/nohub/pkg/log"
)

// WSAcceptor 是基于 coder/websocket 的接入器。
//
// 每条 WebSocket 文本消息承载一行或多行命令，行格式与 TCP 完全一致。
// 升级完成后的连接通过 websocket.NetConn 转换为 net.Conn，复用 TCP 的读写流程。
type WSAcceptor struct {
	log.Binder

	ln       net.Listener
	cfg      Config
	codec    codec.Codec
	sessions session.SessionManager
	server   *http.Server

	// ctx 与 handler 在 Serve 启动 HTTP 服务之前写入，之后只读。
	ctx     context.Context
	handler Handler

	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Acceptor = (*WSAcceptor)(nil)

// NewWSAcceptor 在给定地址上监听 HTTP，并在 cfg.Path 上接受 WebSocket 升级。
func NewWSAcceptor(addr string, cfg Config) (*WSAcceptor, error) {
	if addr == "" {
		return nil, errors.New("acceptor: addr is empty")
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "acceptor: listen on %s", addr)
	}

	a := &WSAcceptor{
		ln:       ln,
		cfg:      cfg,
		codec:    newCodec(cfg),
		sessions: session.NewBaseSessionManager(cfg.MaxConnections),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, a.handleUpgrade)
	a.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.Bind("network", "ws-acceptor", zap.Stringer("addr", ln.Addr()), zap.String("path", cfg.Path))
	return a, nil
}

// Serve 实现 Acceptor.Serve。
func (a *WSAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("acceptor: handler is nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctx = ctx
	a.handler = h

	go func() {
		<-ctx.Done()
		_ = a.Close()
	}()

	a.Logger().Info("websocket acceptor started")
	err := a.server.Serve(a.ln)

	a.sessions.CloseAll()
	a.wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		a.Logger().Info("websocket acceptor stopped")
		return nil
	}
	return errors.Wrap(err, "acceptor: websocket serve failed")
}

// Close 实现 Acceptor.Close。
func (a *WSAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.server.Close()
		a.sessions.CloseAll()
	})
	return err
}

// Addr 实现 Acceptor.Addr。
func (a *WSAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Sessions 实现 Acceptor.Sessions。
func (a *WSAcceptor) Sessions() session.SessionManager {
	return a.sessions
}

func (a *WSAcceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if a.sessions.Full() {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		a.handler.OnError(nil, network.StageAccept, errors.Wrapf(network.ErrAcceptFailed, "connection limit %d reached", a.cfg.MaxConnections))
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		a.Logger().Warn("websocket accept error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		a.handler.OnError(nil, network.StageAccept, errors.Mark(err, network.ErrAcceptFailed))
		return
	}
	ws.SetReadLimit(int64(newFrameLimit(a.cfg)))

	a.wg.Add(1)
	defer a.wg.Done()

	conn := &wsConn{
		Conn:   websocket.NetConn(a.ctx, ws, websocket.MessageText),
		remote: parseRemoteAddr(r.RemoteAddr),
	}
	serveConn(a.ctx, conn, a.cfg, a.codec, a.sessions, a.handler)
}

// wsConn 覆盖 RemoteAddr，使其返回 HTTP 请求中的对端地址。
type wsConn struct {
	net.Conn
	remote net.Addr
}

func (c *wsConn) RemoteAddr() net.Addr {
	if c.remote == nil {
		return c.Conn.RemoteAddr()
	}
	return c.remote
}

func parseRemoteAddr(addr string) net.Addr {
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return nil
	}
	return net.TCPAddrFromAddrPort(ap)
}

// newFrameLimit 返回单条 WebSocket 消息允许的最大字节数。
func newFrameLimit(cfg Config) int {
	if cfg.MaxFrameSize > 0 {
		return cfg.MaxFrameSize + 1
	}
	return framer.DefaultMaxFrameSize + 1
}
