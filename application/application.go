// Package application 是 nohub 进程的运行容器，负责初始化日志、绑定监听端口并按顺序停止各个组件。
package application

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/foxssake/nohub/internal/config"
	"github.com/foxssake/nohub/internal/hub"
	"github.com/foxssake/nohub/internal/network/acceptor"
	"github.com/foxssake/nohub/internal/version"
	zlog "github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/metrics"
)

// listener 是一个已绑定的接入端点。
type listener struct {
	name     string
	acceptor acceptor.Acceptor
}

// Application 持有配置、Hub 以及全部监听端点。
type Application struct {
	cfg *config.Config

	metrics       *metrics.Metrics
	hub           *hub.Hub
	listeners     []listener
	metricsServer *metrics.Server
	started       bool
}

// New 创建应用，cfg 应已通过 config.Load 校验。
func New(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// Config 返回应用使用的配置。
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Run 依次调用 Start 与 Serve。
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	return a.Serve(ctx)
}

// Start 初始化日志与指标，组装 Hub，并绑定 TCP、WebSocket 与指标端口。
// 任一端口绑定失败时已绑定的端口会被关闭。
func (a *Application) Start() error {
	if a.started {
		return errors.New("application: already started")
	}
	if err := a.initLogging(); err != nil {
		return err
	}

	a.metrics = metrics.New()
	a.metrics.SetBuildInfo(version.String())

	h, err := hub.New(a.cfg, hub.WithMetrics(a.metrics))
	if err != nil {
		return err
	}
	a.hub = h

	if err := a.bind(); err != nil {
		a.closeListeners()
		return err
	}
	a.started = true

	zlog.Info("nohub started", zap.String("version", version.String()), zap.Int("games", len(a.cfg.Games)))
	return nil
}

func (a *Application) bind() error {
	acc := a.cfg.AcceptorConfig()

	tcp, err := acceptor.NewTCPAcceptor(a.cfg.TCP.Addr(), acc)
	if err != nil {
		return err
	}
	a.listeners = append(a.listeners, listener{name: "tcp", acceptor: tcp})
	zlog.Info("listening for TCP connections", zap.Stringer("addr", tcp.Addr()))

	if a.cfg.WebSocket.Enabled {
		ws, err := acceptor.NewWSAcceptor(a.cfg.WebSocket.Addr(), acc)
		if err != nil {
			return err
		}
		a.listeners = append(a.listeners, listener{name: "websocket", acceptor: ws})
		zlog.Info("listening for WebSocket connections", zap.Stringer("addr", ws.Addr()), zap.String("path", acc.Path))
	}

	if a.cfg.Metrics.Enabled {
		server, err := metrics.NewServer(a.cfg.Metrics.Addr(), a.metrics)
		if err != nil {
			return err
		}
		a.metricsServer = server
		zlog.Info("serving metrics", zap.Stringer("addr", server.Addr()), zap.String("path", metrics.Path))
	}
	return nil
}

func (a *Application) closeListeners() {
	for _, l := range a.listeners {
		_ = l.acceptor.Close()
	}
}

// Serve 运行事件循环与全部监听端点，直到 ctx 取消或某个端点出错。
//
// 停止顺序：先停止接入端点并关闭全部连接，再停止事件循环，使连接关闭产生的清理任务全部执行完毕。
func (a *Application) Serve(ctx context.Context) error {
	if !a.started {
		return errors.New("application: not started")
	}

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	loopDone := make(chan error, 1)
	go func() { loopDone <- a.hub.Run(loopCtx) }()

	g, gctx := errgroup.WithContext(ctx)
	for _, l := range a.listeners {
		g.Go(func() error {
			if err := l.acceptor.Serve(gctx, a.hub); err != nil {
				return errors.Wrapf(err, "%s listener failed", l.name)
			}
			return nil
		})
	}
	if a.metricsServer != nil {
		g.Go(func() error {
			return a.metricsServer.Serve(gctx)
		})
	}

	err := g.Wait()
	zlog.Info("listeners stopped, draining event loop")
	stopLoop()
	if loopErr := <-loopDone; loopErr != nil && err == nil {
		err = loopErr
	}

	if err != nil {
		zlog.Error("nohub stopped with error", zap.Error(err))
	} else {
		zlog.Info("nohub stopped")
	}
	_ = zlog.Sync()
	return err
}

// Addr 返回指定监听端点的实际地址，name 为 tcp 或 websocket。未绑定时返回 nil。
func (a *Application) Addr(name string) net.Addr {
	for _, l := range a.listeners {
		if l.name == name {
			return l.acceptor.Addr()
		}
	}
	return nil
}

// MetricsAddr 返回指标服务的地址，未启用时返回 nil。
func (a *Application) MetricsAddr() net.Addr {
	if a.metricsServer == nil {
		return nil
	}
	return a.metricsServer.Addr()
}

// initLogging 按配置替换全局日志。
func (a *Application) initLogging() error {
	logger, props, err := zlog.InitLogger(&a.cfg.Log)
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}
