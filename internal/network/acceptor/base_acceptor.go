package acceptor

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/session"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/conc"
)

// BaseAcceptor 是 Acceptor 接口的 TCP 实现。
//
// 设计目标：
//   - 对外只暴露 Acceptor 接口和 Handler 回调，不绑定具体业务逻辑；
//   - 内部负责：监听端口、接受连接、创建 Session、驱动解码并回调 Handler；
//   - 每个连接在协程池中的一个协程里串行读取，保证同一连接上的回调按顺序执行；
//   - 协程池容量即连接上限，池满时直接拒绝新连接。
type BaseAcceptor struct {
	log.Binder

	ln       net.Listener
	cfg      Config
	codec    codec.Codec
	sessions session.SessionManager
	pool     *conc.Pool[struct{}]

	closeOnce sync.Once
}

// 确保 BaseAcceptor 实现了 Acceptor 接口。
var _ Acceptor = (*BaseAcceptor)(nil)

// NewBaseAcceptor 使用已有的 Listener 创建一个 TCP 接入器。
func NewBaseAcceptor(ln net.Listener, cfg Config) (*BaseAcceptor, error) {
	if ln == nil {
		return nil, errors.New("acceptor: listener is nil")
	}
	pool, err := conc.NewPool[struct{}](cfg.MaxConnections,
		conc.WithName("tcp-conn"),
		conc.WithNonBlocking(true),
		conc.WithConcealPanic(true),
		conc.WithExpiryDuration(cfg.WorkerExpiry),
	)
	if err != nil {
		return nil, err
	}

	a := &BaseAcceptor{
		ln:       ln,
		cfg:      cfg,
		codec:    newCodec(cfg),
		sessions: session.NewBaseSessionManager(cfg.MaxConnections),
		pool:     pool,
	}
	a.Bind("network", "tcp-acceptor", zap.Stringer("addr", ln.Addr()))
	return a, nil
}

// NewTCPAcceptor 在给定地址上监听 TCP，并创建接入器。
//
// addr 例如 "localhost:9980"，端口为 0 时由系统分配，可通过 Addr 获取。
func NewTCPAcceptor(addr string, cfg Config) (*BaseAcceptor, error) {
	if addr == "" {
		return nil, errors.New("acceptor: addr is empty")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "acceptor: listen on %s", addr)
	}
	a, err := NewBaseAcceptor(ln, cfg)
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return a, nil
}

// Serve 实现 Acceptor.Serve。
func (a *BaseAcceptor) Serve(ctx context.Context, h Handler) error {
	if h == nil {
		return errors.New("acceptor: handler is nil")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = a.Close()
	}()

	var wg sync.WaitGroup
	defer func() {
		if n := a.sessions.CloseAll(); n > 0 {
			a.Logger().Info("closed open sessions", zap.Int("count", n))
		}
		wg.Wait()
		a.pool.Release()
	}()

	a.Logger().Info("tcp acceptor started")
	retry := newAcceptBackOff()
	for {
		conn, err := a.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				a.Logger().Info("tcp acceptor stopped")
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				h.OnError(nil, network.StageAccept, errors.Mark(err, network.ErrAcceptFailed))
				select {
				case <-time.After(retry.NextBackOff()):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return errors.Wrap(err, "acceptor: accept failed")
		}
		retry.Reset()

		wg.Add(1)
		_, err = a.pool.TrySubmit(func() (struct{}, error) {
			defer wg.Done()
			serveConn(ctx, conn, a.cfg, a.codec, a.sessions, h)
			return struct{}{}, nil
		})
		if err != nil {
			wg.Done()
			a.Logger().Warn("rejecting connection", zap.Stringer("remote", conn.RemoteAddr()), zap.Error(err))
			_ = conn.Close()
			h.OnError(nil, network.StageAccept, errors.Mark(err, network.ErrAcceptFailed))
		}
	}
}

// Close 实现 Acceptor.Close。
func (a *BaseAcceptor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		err = a.ln.Close()
		a.sessions.CloseAll()
	})
	return err
}

// Addr 实现 Acceptor.Addr。
func (a *BaseAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// Sessions 实现 Acceptor.Sessions。
func (a *BaseAcceptor) Sessions() session.SessionManager {
	return a.sessions
}

// newAcceptBackOff 返回 Accept 临时失败时使用的退避策略，永不放弃。
func newAcceptBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
