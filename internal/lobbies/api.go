package lobbies

import (
	"iter"

	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/pkg/log"
)

// Api 是大厅命令的入口，负责按会话的游戏分区查找大厅与数据投影。
type Api struct {
	log.Binder

	repo    *Repository
	service *Service
}

func NewApi(repo *Repository, service *Service) *Api {
	a := &Api{
		repo:    repo,
		service: service,
	}
	a.Bind("lobbies", "api")
	return a
}

// Create 创建大厅并返回其 ID。
func (a *Api) Create(address string, session *model.Session, data model.Properties) (string, error) {
	lobby, err := a.service.Create(address, data, session)
	if err != nil {
		return "", err
	}
	return lobby.ID, nil
}

// Get 返回大厅，数据按 properties 投影。properties 为 nil 时返回全部数据。
func (a *Api) Get(id string, session *model.Session, properties []string) (model.Lobby, error) {
	lobby, err := a.repo.RequireInGame(id, session.Game)
	if err != nil {
		return model.Lobby{}, err
	}
	return project(lobby, properties), nil
}

// List 返回对会话可见的大厅，数据按 properties 投影。
func (a *Api) List(properties []string, session *model.Session) iter.Seq[model.Lobby] {
	return func(yield func(model.Lobby) bool) {
		count := 0
		defer func() {
			a.Logger().ForSession(session.ID).Debug("listed lobbies", zap.Int("count", count))
		}()
		for lobby := range a.service.ListLobbiesFor(session) {
			count++
			if !yield(project(lobby, properties)) {
				return
			}
		}
	}
}

// Delete 删除大厅。大厅不存在或不在会话的游戏分区内时什么也不做。
func (a *Api) Delete(id string, session *model.Session) error {
	lobby, ok := a.repo.FindInGame(id, session.Game)
	if !ok {
		a.Logger().ForLobby(id).ForSession(session.ID).Info("lobby doesn't exist, doing nothing")
		return nil
	}
	return a.service.Delete(lobby, session)
}

// Join 加入大厅并返回其连接地址。
func (a *Api) Join(id string, session *model.Session) (string, error) {
	lobby, err := a.repo.RequireInGame(id, session.Game)
	if err != nil {
		return "", err
	}
	address, err := a.service.Join(lobby, session)
	if err != nil {
		return "", err
	}
	a.Logger().ForLobby(id).ForSession(session.ID).Info("session joined lobby")
	return address, nil
}

func (a *Api) SetData(id string, data model.Properties, session *model.Session) error {
	return a.mutate(id, session, func(lobby model.Lobby) (model.Lobby, error) {
		return a.service.SetData(lobby, data, session)
	})
}

func (a *Api) Lock(id string, session *model.Session) error {
	return a.mutate(id, session, func(lobby model.Lobby) (model.Lobby, error) {
		return a.service.Lock(lobby, session)
	})
}

func (a *Api) Unlock(id string, session *model.Session) error {
	return a.mutate(id, session, func(lobby model.Lobby) (model.Lobby, error) {
		return a.service.Unlock(lobby, session)
	})
}

func (a *Api) Hide(id string, session *model.Session) error {
	return a.mutate(id, session, func(lobby model.Lobby) (model.Lobby, error) {
		return a.service.Hide(lobby, session)
	})
}

func (a *Api) Publish(id string, session *model.Session) error {
	return a.mutate(id, session, func(lobby model.Lobby) (model.Lobby, error) {
		return a.service.Publish(lobby, session)
	})
}

// OnSessionClose 处理会话关闭事件，级联清理该会话的大厅与参与记录。
func (a *Api) OnSessionClose(ev events.SessionClosed) error {
	a.Logger().ForSession(ev.SessionID).Info("cleaning up lobbies of closed session")
	return a.service.RemoveSession(ev.SessionID)
}

// ExistsBySession 判断会话是否拥有大厅。
func (a *Api) ExistsBySession(sessionID string) bool {
	return a.repo.ExistsBySession(sessionID)
}

func (a *Api) mutate(id string, session *model.Session, fn func(model.Lobby) (model.Lobby, error)) error {
	lobby, err := a.repo.RequireInGame(id, session.Game)
	if err != nil {
		return err
	}
	if _, err := fn(lobby); err != nil {
		return err
	}
	return nil
}

func project(lobby model.Lobby, properties []string) model.Lobby {
	result := lobby.Clone()
	result.Data = lobby.Data.Project(properties)
	return result
}
