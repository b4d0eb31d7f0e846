package lobbies

import (
	"context"

	"github.com/samber/lo"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/ids"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/router"
	"github.com/foxssake/nohub/pkg/metrics"
)

const (
	CommandCreate  = "lobby/create"
	CommandGet     = "lobby/get"
	CommandList    = "lobby/list"
	CommandDelete  = "lobby/delete"
	CommandJoin    = "lobby/join"
	CommandSetData = "lobby/set-data"
	CommandLock    = "lobby/lock"
	CommandUnlock  = "lobby/unlock"
	CommandHide    = "lobby/hide"
	CommandPublish = "lobby/publish"
)

// SessionResolver 找回连接上的会话。
type SessionResolver interface {
	Of(h model.Handle) (*model.Session, error)
}

// Option 用于配置 Module。
type Option func(*moduleOptions)

type moduleOptions struct {
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	ids         ids.Generator
}

// WithMetrics 启用 nohub_lobbies_total 的维护。
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *moduleOptions) {
		o.metrics = m
	}
}

// WithBroadcaster 设置通知使用的推送通道。Config.Notify 关闭时不生效。
func WithBroadcaster(b Broadcaster) Option {
	return func(o *moduleOptions) {
		o.broadcaster = b
	}
}

func WithIDGenerator(gen ids.Generator) Option {
	return func(o *moduleOptions) {
		o.ids = gen
	}
}

// Module 组装大厅的仓库、服务与 Api，订阅会话关闭事件并注册 lobby/* 命令。
type Module struct {
	Repository *Repository
	Service    *Service
	Api        *Api

	sessions SessionResolver
}

// NewModule 使用已有的仓库构建模块。仓库单独传入，会话模块可以先于本模块拿到它。
func NewModule(repo *Repository, sessions SessionResolver, bus *events.Bus, cfg Config, opts ...Option) *Module {
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	service := NewService(repo, bus, cfg, o.ids)
	m := &Module{
		Repository: repo,
		Service:    service,
		Api:        NewApi(repo, service),
		sessions:   sessions,
	}

	events.On(bus, events.SessionClose, m.Api.OnSessionClose)
	if o.metrics != nil {
		NewMetricsReporter(o.metrics).Attach(bus)
	}
	if cfg.Notify && o.broadcaster != nil {
		NewNotifier(o.broadcaster).Attach(bus)
	}
	return m
}

// Register 向 r 注册全部 lobby/* 命令。
func (m *Module) Register(r router.Router) error {
	handlers := map[string]router.Handler{
		CommandCreate:  m.handleCreate,
		CommandGet:     m.handleGet,
		CommandList:    m.handleList,
		CommandDelete:  m.handleDelete,
		CommandJoin:    m.handleJoin,
		CommandSetData: m.handleSetData,
		CommandLock:    m.lobbyCommand(m.Api.Lock),
		CommandUnlock:  m.lobbyCommand(m.Api.Unlock),
		CommandHide:    m.lobbyCommand(m.Api.Hide),
		CommandPublish: m.lobbyCommand(m.Api.Publish),
	}
	for name, h := range handlers {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}

// resolve 校验交互是请求，取出首个参数并找回连接上的会话。missing 为空时不要求参数。
func (m *Module) resolve(ex *router.Exchange, missing string) (string, *model.Session, error) {
	if err := ex.RequireRequest(); err != nil {
		return "", nil, err
	}
	var param string
	if missing != "" {
		var err error
		if param, err = ex.RequireParam(0, missing); err != nil {
			return "", nil, err
		}
	}
	session, err := m.sessions.Of(ex.Conn)
	if err != nil {
		return "", nil, err
	}
	return param, session, nil
}

func (m *Module) handleCreate(_ context.Context, ex *router.Exchange) error {
	address, session, err := m.resolve(ex, "Missing lobby address!")
	if err != nil {
		return err
	}
	id, err := m.Api.Create(address, session, propertiesOf(ex.Command))
	if err != nil {
		return err
	}
	return ex.Reply(id)
}

func (m *Module) handleGet(_ context.Context, ex *router.Exchange) error {
	id, session, err := m.resolve(ex, "Missing lobby ID!")
	if err != nil {
		return err
	}
	var properties []string
	if len(ex.Command.Params) > 1 {
		properties = ex.Command.Params[1:]
	}

	lobby, err := m.Api.Get(id, session, properties)
	if err != nil {
		return err
	}
	if err := ex.Stream(headerOf(lobby), nil); err != nil {
		return err
	}
	for _, prop := range lobby.Data {
		if err := ex.Stream(nil, []codec.Pair{{Key: prop.Key, Value: prop.Value}}); err != nil {
			return err
		}
	}
	return ex.FinishStream()
}

func (m *Module) handleList(_ context.Context, ex *router.Exchange) error {
	_, session, err := m.resolve(ex, "")
	if err != nil {
		return err
	}
	var properties []string
	if len(ex.Command.Params) > 0 {
		properties = ex.Command.Params
	}

	for lobby := range m.Api.List(properties, session) {
		if err := ex.Stream(headerOf(lobby), pairsOf(lobby.Data)); err != nil {
			return err
		}
	}
	return ex.FinishStream()
}

func (m *Module) handleDelete(_ context.Context, ex *router.Exchange) error {
	id, session, err := m.resolve(ex, "Missing lobby ID!")
	if err != nil {
		return err
	}
	if err := m.Api.Delete(id, session); err != nil {
		return err
	}
	return ex.Reply("ok")
}

func (m *Module) handleJoin(_ context.Context, ex *router.Exchange) error {
	id, session, err := m.resolve(ex, "Missing lobby ID!")
	if err != nil {
		return err
	}
	address, err := m.Api.Join(id, session)
	if err != nil {
		return err
	}
	return ex.Reply(address)
}

func (m *Module) handleSetData(_ context.Context, ex *router.Exchange) error {
	id, session, err := m.resolve(ex, "Missing lobby ID!")
	if err != nil {
		return err
	}
	if err := m.Api.SetData(id, propertiesOf(ex.Command), session); err != nil {
		return err
	}
	return ex.Reply("ok")
}

// lobbyCommand 构造只接受大厅 ID 的命令处理函数，成功时回复 ok。
func (m *Module) lobbyCommand(fn func(id string, session *model.Session) error) router.Handler {
	return func(_ context.Context, ex *router.Exchange) error {
		id, session, err := m.resolve(ex, "Missing lobby ID!")
		if err != nil {
			return err
		}
		if err := fn(id, session); err != nil {
			return err
		}
		return ex.Reply("ok")
	}
}

func headerOf(lobby model.Lobby) []string {
	return append([]string{lobby.ID}, lobby.Keywords()...)
}

func propertiesOf(cmd *codec.Command) model.Properties {
	return model.PropertiesFromPairs(lo.Map(cmd.KV, func(p codec.Pair, _ int) model.Property {
		return model.Property{Key: p.Key, Value: p.Value}
	})...)
}

func pairsOf(data model.Properties) []codec.Pair {
	return lo.Map(data, func(p model.Property, _ int) codec.Pair {
		return codec.Pair{Key: p.Key, Value: p.Value}
	})
}
