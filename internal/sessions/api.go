package sessions

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/games"
	"github.com/foxssake/nohub/internal/ids"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/metrics"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Config 描述会话相关的限制与默认值，上限为 0 表示不限。
type Config struct {
	IDLength        int    `mapstructure:"id-length" json:"idLength" env:"ID_LENGTH"`
	ArbitraryGameID bool   `mapstructure:"arbitrary-game-id" json:"arbitraryGameId" env:"ARBITRARY_GAME_ID"`
	DefaultGameID   string `mapstructure:"default-game-id" json:"defaultGameId" env:"DEFAULT_GAME_ID"`
	MaxCount        int    `mapstructure:"max-count" json:"maxCount" env:"MAX_COUNT"`
	MaxPerAddress   int    `mapstructure:"max-per-address" json:"maxPerAddress" env:"MAX_PER_ADDRESS"`
}

func DefaultConfig() Config {
	return Config{IDLength: 12}
}

// LobbyLookup 是会话模块对大厅仓库的最小依赖。
type LobbyLookup interface {
	ExistsBySession(sessionID string) bool
}

// Option 用于配置 Api。
type Option func(*Api)

// WithMetrics 让 Api 维护 nohub_sessions_total。
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Api) {
		a.metrics = m
	}
}

// WithIDGenerator 替换会话 ID 生成器，默认为长度 Config.IDLength 的 nanoid。
func WithIDGenerator(gen ids.Generator) Option {
	return func(a *Api) {
		a.ids = gen
	}
}

// Api 实现会话的生命周期操作。
type Api struct {
	log.Binder

	repo    *Repository
	lobbies LobbyLookup
	games   games.Lookup
	bus     *events.Bus
	cfg     Config

	ids     ids.Generator
	metrics *metrics.Metrics
}

func NewApi(repo *Repository, lobbies LobbyLookup, gameLookup games.Lookup, bus *events.Bus, cfg Config, opts ...Option) *Api {
	a := &Api{
		repo:    repo,
		lobbies: lobbies,
		games:   gameLookup,
		bus:     bus,
		cfg:     cfg,
		ids:     ids.NanoID(cfg.IDLength),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Bind("sessions", "api")
	return a
}

// OpenSession 为新连接创建会话并挂到连接上。
//
// 依次检查全局会话上限与单地址会话上限，超出时返回 LimitError。
func (a *Api) OpenSession(h model.Handle) (*model.Session, error) {
	address := HostOf(h.RemoteAddr())

	if a.cfg.MaxCount > 0 && a.repo.Count() >= a.cfg.MaxCount {
		return nil, merr.WrapErrLimitReached(fmt.Sprintf("Can't have more than %d active sessions!", a.cfg.MaxCount))
	}
	if a.cfg.MaxPerAddress > 0 && a.repo.CountByAddress(address) >= a.cfg.MaxPerAddress {
		return nil, merr.WrapErrLimitReached(fmt.Sprintf("Can't have more than %d active sessions per address!", a.cfg.MaxPerAddress))
	}

	id, err := ids.Unique(a.ids, a.repo.Has)
	if err != nil {
		return nil, merr.WrapErrServiceInternal("Failed to generate session ID!", err.Error())
	}

	game := model.Unbound()
	if a.cfg.DefaultGameID != "" {
		game = model.BoundTo(a.cfg.DefaultGameID)
	}

	session, err := a.repo.Add(&model.Session{
		ID:      id,
		Address: address,
		Game:    game,
		Handle:  h,
	})
	if err != nil {
		return nil, err
	}
	h.Attach(session.ID)
	if a.metrics != nil {
		a.metrics.SessionsTotal.Inc()
	}

	a.Logger().ForSession(session.ID).ForGame(game.String()).Info("session opened", log.FieldAddress(address))
	return session, nil
}

// CloseSession 关闭连接上的会话。
//
// 先发出 SessionClose 事件，订阅方完成级联清理后再移除会话；事件处理失败时会话依然被移除，
// 错误返回给调用方。连接上没有会话时什么也不做。
func (a *Api) CloseSession(h model.Handle) error {
	id, ok := h.Attachment().(string)
	if !ok || !a.repo.Has(id) {
		return nil
	}

	err := events.Emit(a.bus, events.SessionClose, events.SessionClosed{SessionID: id})

	a.repo.Remove(id)
	h.Attach(nil)
	if a.metrics != nil {
		a.metrics.SessionsTotal.Dec()
	}

	if err != nil {
		a.Logger().ForSession(id).Warn("session closed with cleanup errors", zap.Error(err))
		return err
	}
	a.Logger().ForSession(id).Info("session closed")
	return nil
}

// SetGame 将会话绑定到 gameID，只能执行一次，并且必须在会话创建任何大厅之前。
func (a *Api) SetGame(session *model.Session, gameID string) error {
	if session.Game.IsBound() {
		return merr.WrapErrLocked("Session already has a game set!")
	}
	if a.lobbies.ExistsBySession(session.ID) {
		return merr.WrapErrLocked("Session already has active lobbies!")
	}

	if a.cfg.ArbitraryGameID {
		if _, ok := a.games.Find(gameID); !ok {
			a.Logger().ForSession(session.ID).ForGame(gameID).Debug("binding session to unregistered game")
		}
	} else if _, err := a.games.Require(gameID); err != nil {
		return err
	}

	binding, err := session.Game.Bind(gameID)
	if err != nil {
		return err
	}
	session.Game = binding

	a.Logger().ForSession(session.ID).ForGame(gameID).Info("session bound to game")
	return nil
}

// Of 返回挂在连接上的会话。
func (a *Api) Of(h model.Handle) (*model.Session, error) {
	if id, ok := h.Attachment().(string); ok {
		if session, found := a.repo.Find(id); found {
			return session, nil
		}
	}
	return nil, merr.WrapErrInvalidCommand("No session bound to connection!")
}

// HostOf 返回地址中的主机部分，例如 "224.103.6.176:49582" 返回 "224.103.6.176"。
func HostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
