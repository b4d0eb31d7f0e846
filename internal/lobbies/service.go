package lobbies

import (
	"fmt"
	"iter"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/ids"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Config 描述大厅相关的限制，上限为 0 表示不限。
type Config struct {
	IDLength       int  `mapstructure:"id-length" json:"idLength" env:"ID_LENGTH"`
	EnableGameless bool `mapstructure:"enable-gameless" json:"enableGameless" env:"WITHOUT_GAME"`
	MaxCount       int  `mapstructure:"max-count" json:"maxCount" env:"MAX_COUNT"`
	MaxPerSession  int  `mapstructure:"max-per-session" json:"maxPerSession" env:"MAX_PER_SESSION"`
	MaxData        int  `mapstructure:"max-data" json:"maxData" env:"MAX_DATA"`
	// Notify 控制是否向大厅成员推送删除、加入与离开通知。
	Notify bool `mapstructure:"notify" json:"notify" env:"NOTIFY"`
}

func DefaultConfig() Config {
	return Config{
		IDLength: 8,
		Notify:   true,
	}
}

// Service 实现大厅的业务规则，所有修改都会在总线上发出对应事件。
type Service struct {
	log.Binder

	repo *Repository
	bus  *events.Bus
	cfg  Config
	ids  ids.Generator
}

func NewService(repo *Repository, bus *events.Bus, cfg Config, gen ids.Generator) *Service {
	if gen == nil {
		gen = ids.NanoID(cfg.IDLength)
	}
	s := &Service{
		repo: repo,
		bus:  bus,
		cfg:  cfg,
		ids:  gen,
	}
	s.Bind("lobbies", "service")
	return s
}

// Create 为会话创建一个公开且未锁定的大厅。
func (s *Service) Create(address string, data model.Properties, session *model.Session) (model.Lobby, error) {
	if !session.Game.IsBound() && !s.cfg.EnableGameless {
		return model.Lobby{}, merr.WrapErrInvalidCommand("Can't create lobbies without a game!")
	}
	if s.cfg.MaxCount > 0 && s.repo.Count() >= s.cfg.MaxCount {
		return model.Lobby{}, merr.WrapErrLimitReached(fmt.Sprintf("Can't host more than %d active lobbies on this instance!", s.cfg.MaxCount))
	}
	if s.cfg.MaxPerSession > 0 && s.repo.CountBySession(session.ID) >= s.cfg.MaxPerSession {
		return model.Lobby{}, merr.WrapErrLimitReached(fmt.Sprintf("Session can't have more than %d active lobbies!", s.cfg.MaxPerSession))
	}
	if err := s.checkData(data); err != nil {
		return model.Lobby{}, err
	}

	id, err := ids.Unique(s.ids, s.repo.Has)
	if err != nil {
		return model.Lobby{}, merr.WrapErrServiceInternal("Failed to generate lobby ID!", err.Error())
	}

	lobby, err := s.repo.Add(model.Lobby{
		ID:        id,
		Owner:     session.ID,
		Game:      session.Game,
		Address:   address,
		IsVisible: true,
		Data:      data.Clone(),
	})
	if err != nil {
		return model.Lobby{}, err
	}

	s.Logger().ForLobby(lobby.ID).ForSession(session.ID).ForGame(lobby.Game.String()).Info("lobby created",
		zap.String("address", address), zap.Int("entries", data.Len()))
	return lobby, events.Emit(s.bus, events.LobbyCreate, lobby)
}

func (s *Service) Delete(lobby model.Lobby, session *model.Session) error {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return err
	}
	if !s.repo.RemoveItem(lobby) {
		return s.repo.NotFound(lobby.ID)
	}
	s.Logger().ForLobby(lobby.ID).ForSession(session.ID).Info("lobby deleted")
	return events.Emit(s.bus, events.LobbyDelete, lobby)
}

// Join 记录会话加入大厅并返回连接地址。重复加入不会重复记录参与者。
func (s *Service) Join(lobby model.Lobby, session *model.Session) (string, error) {
	if err := lobby.RequireJoinableBy(session); err != nil {
		return "", err
	}
	if lobby.HasParticipant(session.ID) {
		return lobby.Address, nil
	}

	next := lobby.Clone()
	next.Participants = append(next.Participants, session.ID)
	if err := s.replace(lobby, next); err != nil {
		return "", err
	}
	return next.Address, nil
}

// SetData 用 data 整体替换大厅数据。
func (s *Service) SetData(lobby model.Lobby, data model.Properties, session *model.Session) (model.Lobby, error) {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return model.Lobby{}, err
	}
	if err := s.checkData(data); err != nil {
		return model.Lobby{}, err
	}
	return s.update(lobby, func(l *model.Lobby) { l.Data = data.Clone() })
}

func (s *Service) Lock(lobby model.Lobby, session *model.Session) (model.Lobby, error) {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return model.Lobby{}, err
	}
	return s.update(lobby, func(l *model.Lobby) { l.IsLocked = true })
}

func (s *Service) Unlock(lobby model.Lobby, session *model.Session) (model.Lobby, error) {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return model.Lobby{}, err
	}
	return s.update(lobby, func(l *model.Lobby) { l.IsLocked = false })
}

func (s *Service) Hide(lobby model.Lobby, session *model.Session) (model.Lobby, error) {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return model.Lobby{}, err
	}
	return s.update(lobby, func(l *model.Lobby) { l.IsVisible = false })
}

func (s *Service) Publish(lobby model.Lobby, session *model.Session) (model.Lobby, error) {
	if err := lobby.RequireModifiableBy(session); err != nil {
		return model.Lobby{}, err
	}
	return s.update(lobby, func(l *model.Lobby) { l.IsVisible = true })
}

func (s *Service) ListLobbiesFor(session *model.Session) iter.Seq[model.Lobby] {
	return s.repo.ListLobbiesFor(session)
}

// RemoveSession 清理会话留下的大厅：删除其拥有的大厅，并将其从其他大厅的参与者中移除。
func (s *Service) RemoveSession(sessionID string) error {
	removed, updated := s.repo.RemoveLobbiesOf(sessionID)

	var errs []error
	for _, lobby := range removed {
		if err := events.Emit(s.bus, events.LobbyDelete, lobby); err != nil {
			errs = append(errs, err)
		}
	}
	for _, change := range updated {
		if err := events.Emit(s.bus, events.LobbyChange, change); err != nil {
			errs = append(errs, err)
		}
	}

	s.Logger().ForSession(sessionID).Info("removed lobbies of session",
		zap.Int("removed", len(removed)), zap.Int("updated", len(updated)))
	return merr.Combine(errs...)
}

func (s *Service) checkData(data model.Properties) error {
	if s.cfg.MaxData > 0 && data.Len() > s.cfg.MaxData {
		return merr.WrapErrLimitReached(fmt.Sprintf("Lobby can't have more than %d data entries!", s.cfg.MaxData))
	}
	return nil
}

func (s *Service) update(lobby model.Lobby, mutate func(*model.Lobby)) (model.Lobby, error) {
	next := lobby.Clone()
	mutate(&next)
	if err := s.replace(lobby, next); err != nil {
		return model.Lobby{}, err
	}
	return next, nil
}

func (s *Service) replace(from, to model.Lobby) error {
	if _, err := s.repo.Replace(to); err != nil {
		return err
	}
	s.Logger().ForLobby(to.ID).Debug("lobby updated",
		zap.Bool("locked", to.IsLocked), zap.Bool("visible", to.IsVisible),
		zap.Int("participants", len(to.Participants)))
	return events.Emit(s.bus, events.LobbyChange, model.LobbyChange{From: from, To: to})
}

// addedParticipants 与 removedParticipants 比较一次修改前后的参与者列表。
func addedParticipants(change model.LobbyChange) []string {
	return lo.Without(change.To.Participants, change.From.Participants...)
}

func removedParticipants(change model.LobbyChange) []string {
	return lo.Without(change.From.Participants, change.To.Participants...)
}
