// Package hub 组装 nohub 的各个模块，并在单个事件循环中串行执行全部业务逻辑。
//
// 连接层的回调只负责把任务投递到循环中；仓库、事件总线与广播只在循环协程中访问，因此无需加锁。
package hub

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/broadcast"
	"github.com/foxssake/nohub/internal/config"
	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/games"
	"github.com/foxssake/nohub/internal/lobbies"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/acceptor"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/router"
	"github.com/foxssake/nohub/internal/network/session"
	"github.com/foxssake/nohub/internal/sessions"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/metrics"
	"github.com/foxssake/nohub/pkg/util/merr"
	"github.com/foxssake/nohub/pkg/util/typeutil"
)

// DefaultTaskQueueSize 是事件循环任务队列的默认容量。
const DefaultTaskQueueSize = 1024

// commandUnknown 是未注册命令在指标中使用的标签值。
const commandUnknown = "unknown"

// Option 用于配置 Hub。
type Option func(*Hub)

// WithMetrics 使用外部的指标集合，默认创建一份独立的集合。
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

func WithTaskQueueSize(size int) Option {
	return func(h *Hub) {
		h.queueSize = size
	}
}

// Hub 持有全部业务模块，同时实现 acceptor.Handler 与 broadcast.Reactor。
type Hub struct {
	log.Binder

	queueSize int
	tasks     chan func()
	stopped   chan struct{}
	running   atomic.Bool

	metrics  *metrics.Metrics
	router   router.Router
	commands typeutil.Set[string]
	bus      *events.Bus

	games     *games.Repository
	sessions  *sessions.Module
	lobbies   *lobbies.Module
	broadcast *broadcast.Service
}

var (
	_ acceptor.Handler  = (*Hub)(nil)
	_ broadcast.Reactor = (*Hub)(nil)
)

// New 按配置组装模块并注册全部命令。
func New(cfg *config.Config, opts ...Option) (*Hub, error) {
	h := &Hub{
		queueSize: DefaultTaskQueueSize,
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.New()
	}
	if h.queueSize <= 0 {
		h.queueSize = DefaultTaskQueueSize
	}
	h.tasks = make(chan func(), h.queueSize)
	h.Bind("hub", "")

	h.bus = events.NewBus(events.WithFailurePolicy(cfg.FailurePolicy()))

	h.games = games.NewRepository()
	if err := h.games.Import(cfg.Games); err != nil {
		return nil, errors.Wrap(err, "failed to import games")
	}

	lobbyRepo := lobbies.NewRepository()
	h.sessions = sessions.NewModule(lobbyRepo, h.games, h.bus, cfg.Sessions, sessions.WithMetrics(h.metrics))
	h.broadcast = broadcast.NewService(h.sessions.Repository, h)
	h.lobbies = lobbies.NewModule(lobbyRepo, h.sessions.Api, h.bus, cfg.Lobbies,
		lobbies.WithMetrics(h.metrics),
		lobbies.WithBroadcaster(h.broadcast),
	)

	h.router = router.New()
	if err := h.sessions.Register(h.router); err != nil {
		return nil, err
	}
	if err := h.lobbies.Register(h.router); err != nil {
		return nil, err
	}

	h.commands = typeutil.NewSet(h.router.Commands()...)

	h.Logger().Info("hub assembled",
		zap.Int("games", h.games.Count()),
		zap.Strings("commands", h.router.Commands()),
		zap.String("failurePolicy", string(h.bus.Policy())))
	return h, nil
}

func (h *Hub) Metrics() *metrics.Metrics {
	return h.metrics
}

// Run 运行事件循环，直到 ctx 取消。取消后先执行完已入队的任务再返回。
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errors.New("hub: already running")
	}
	defer close(h.stopped)

	h.Logger().Info("event loop started", zap.Int("queueSize", h.queueSize))
	for {
		select {
		case task := <-h.tasks:
			h.execute(task)
		case <-ctx.Done():
			drained := h.drain()
			h.Logger().Info("event loop stopped", zap.Int("drained", drained))
			return nil
		}
	}
}

func (h *Hub) drain() int {
	count := 0
	for {
		select {
		case task := <-h.tasks:
			h.execute(task)
			count++
		default:
			return count
		}
	}
}

// execute 执行单个任务。任务中的 panic 被记录下来，循环继续运行。
func (h *Hub) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			h.Logger().Error("task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	task()
}

// submit 把任务投递到循环，循环已退出时返回 ErrDispatchFailed。
func (h *Hub) submit(task func()) error {
	select {
	case <-h.stopped:
		return network.ErrDispatchFailed
	default:
	}
	select {
	case h.tasks <- task:
		return nil
	case <-h.stopped:
		return network.ErrDispatchFailed
	}
}

// OnConnected 为新连接打开会话。打开失败时告知对端原因并关闭连接。
func (h *Hub) OnConnected(sess session.Session) {
	h.metrics.ConnectionsActive.Inc()
	h.dispatch(sess, func() {
		if _, err := h.sessions.OpenSession(sess); err != nil {
			h.Logger().Info("rejected connection", zap.Stringer("remote", sess.RemoteAddr()), zap.Error(err))
			_ = sess.Send(codec.NewCommand(router.CommandError, merr.Name(err), merr.Message(err)))
			_ = sess.Close()
		}
	})
}

// OnMessage 把命令交给路由。客户端发来的回复类消息被忽略。
func (h *Hub) OnMessage(sess session.Session, cmd *codec.Command) {
	if cmd.Kind.IsReply() {
		h.Logger().Debug("ignoring reply from client", zap.Stringer("remote", sess.RemoteAddr()), zap.Stringer("kind", cmd.Kind))
		return
	}
	h.dispatch(sess, func() {
		h.handle(sess, cmd)
	})
}

// OnClosed 关闭连接上的会话并级联清理其大厅。
func (h *Hub) OnClosed(sess session.Session, err error) {
	h.metrics.ConnectionsActive.Dec()
	if err != nil {
		h.Logger().Debug("connection closed with error", zap.Stringer("remote", sess.RemoteAddr()), zap.Error(err))
	}
	h.dispatch(sess, func() {
		if err := h.sessions.CloseSession(sess); err != nil {
			h.Logger().Warn("failed to clean up session", zap.Stringer("remote", sess.RemoteAddr()), zap.Error(err))
		}
	})
}

func (h *Hub) OnError(sess session.Session, stage network.Stage, err error) {
	fields := []zap.Field{zap.String("stage", string(stage)), zap.Error(err)}
	if sess != nil {
		fields = append(fields, zap.Stringer("remote", sess.RemoteAddr()))
	}
	h.Logger().RatedWarn(1, "network error", fields...)
}

// Send 实现 broadcast.Reactor，句柄必须是网络层的会话。
func (h *Hub) Send(handle model.Handle, cmd *codec.Command) error {
	conn, ok := handle.(router.Conn)
	if !ok {
		return errors.Newf("hub: handle %T can't send commands", handle)
	}
	return conn.Send(cmd)
}

func (h *Hub) dispatch(sess session.Session, task func()) {
	if err := h.submit(task); err != nil {
		h.Logger().RatedWarn(1, "event loop unavailable, dropping task", zap.Stringer("remote", sess.RemoteAddr()), zap.Error(err))
	}
}

// handle 在循环中执行一条命令，记录指标与 span，并把错误转换为失败回复。
func (h *Hub) handle(sess session.Session, cmd *codec.Command) {
	label := h.commandLabel(cmd.Name)
	ctx, span := log.NewIntentContextFrom(sess.Context(), "nohub", cmd.Name)
	defer span.End()

	start := time.Now()
	ex := router.NewExchange(sess, cmd)
	err := h.router.Handle(ctx, ex)

	h.metrics.ExchangesTotal.WithLabelValues(label).Inc()
	h.metrics.ExchangeDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	h.metrics.ExchangesFailed.WithLabelValues(label).Inc()
	span.RecordError(err)
	logger := log.Ctx(ctx).With(log.FieldCommand(cmd.Name))
	if merr.Name(err) == merr.NameUnknown {
		logger.Warn("command failed", zap.Error(err))
	} else {
		logger.Debug("command rejected", zap.String("error", merr.Name(err)), zap.String("message", merr.Message(err)))
	}
	if ferr := ex.Fail(err); ferr != nil {
		logger.Debug("failed to send error reply", zap.Error(ferr))
	}
}

// commandLabel 返回指标标签，未注册的命令统一记为 unknown。
func (h *Hub) commandLabel(name string) string {
	if h.commands.Contain(name) {
		return name
	}
	return commandUnknown
}
