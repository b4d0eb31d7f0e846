package sessions

import (
	"context"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/games"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/router"
)

const (
	CommandSetGame  = "session/set-game"
	CommandWhereAmI = "whereami"

	// CommandYouAreHere 是 whereami 以普通命令发送时的回复命令名。
	CommandYouAreHere = "youarehere"
)

// Module 组装会话仓库与 Api，并注册会话相关命令。
type Module struct {
	Repository *Repository
	Api        *Api
}

func NewModule(lobbies LobbyLookup, gameLookup games.Lookup, bus *events.Bus, cfg Config, opts ...Option) *Module {
	repo := NewRepository()
	return &Module{
		Repository: repo,
		Api:        NewApi(repo, lobbies, gameLookup, bus, cfg, opts...),
	}
}

// Register 向 r 注册 session/set-game 与 whereami。
func (m *Module) Register(r router.Router) error {
	if err := r.Register(CommandSetGame, m.handleSetGame); err != nil {
		return err
	}
	return r.Register(CommandWhereAmI, m.handleWhereAmI)
}

// OpenSession 与 CloseSession 供连接生命周期回调使用。
func (m *Module) OpenSession(h model.Handle) (*model.Session, error) {
	return m.Api.OpenSession(h)
}

func (m *Module) CloseSession(h model.Handle) error {
	return m.Api.CloseSession(h)
}

func (m *Module) handleSetGame(_ context.Context, ex *router.Exchange) error {
	if err := ex.RequireRequest(); err != nil {
		return err
	}
	gameID, err := ex.RequireParam(0, "Missing Game ID!")
	if err != nil {
		return err
	}
	session, err := m.Api.Of(ex.Conn)
	if err != nil {
		return err
	}
	if err := m.Api.SetGame(session, gameID); err != nil {
		return err
	}
	return ex.Reply("ok")
}

func (m *Module) handleWhereAmI(_ context.Context, ex *router.Exchange) error {
	return ex.ReplyOrSend(CommandYouAreHere, HostOf(ex.Conn.RemoteAddr()))
}
