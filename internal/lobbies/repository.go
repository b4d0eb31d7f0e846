// Package lobbies 实现大厅的创建、发现、加入与管理。
package lobbies

import (
	"iter"
	"slices"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/repository"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Repository 以大厅 ID 为键保存大厅快照。
type Repository struct {
	*repository.Repository[model.Lobby, string]
}

func NewRepository() *Repository {
	return &Repository{
		Repository: repository.New(
			func(l model.Lobby) string { return l.ID },
			repository.WithNotFound(func(id string) error { return merr.WrapErrLobbyNotFound(id) }),
		),
	}
}

// FindInGame 只返回处于 game 分区内的大厅，其他分区的大厅视为不存在。
func (r *Repository) FindInGame(id string, game model.GameBinding) (model.Lobby, bool) {
	lobby, ok := r.Find(id)
	if !ok || lobby.Game != game {
		return model.Lobby{}, false
	}
	return lobby, true
}

func (r *Repository) RequireInGame(id string, game model.GameBinding) (model.Lobby, error) {
	lobby, ok := r.FindInGame(id, game)
	if !ok {
		return model.Lobby{}, r.NotFound(id)
	}
	return lobby, nil
}

// RemoveLobbiesOf 删除会话拥有的全部大厅，并把会话从其他大厅的参与者中移除。
//
// 返回被删除的大厅与因参与者变化而更新的大厅。
func (r *Repository) RemoveLobbiesOf(sessionID string) (removed []model.Lobby, updated []model.LobbyChange) {
	for lobby := range r.List() {
		switch {
		case lobby.Owner == sessionID:
			if r.RemoveItem(lobby) {
				removed = append(removed, lobby)
			}
		case lobby.HasParticipant(sessionID):
			next := lobby.Clone()
			next.Participants = slices.DeleteFunc(next.Participants, func(p string) bool { return p == sessionID })
			if _, err := r.Replace(next); err == nil {
				updated = append(updated, model.LobbyChange{From: lobby, To: next})
			}
		}
	}
	return removed, updated
}

func (r *Repository) ExistsBySession(sessionID string) bool {
	for lobby := range r.List() {
		if lobby.Owner == sessionID {
			return true
		}
	}
	return false
}

func (r *Repository) CountBySession(sessionID string) int {
	count := 0
	for lobby := range r.List() {
		if lobby.Owner == sessionID {
			count++
		}
	}
	return count
}

// ListLobbiesFor 返回对会话可见的大厅。
func (r *Repository) ListLobbiesFor(session *model.Session) iter.Seq[model.Lobby] {
	return func(yield func(model.Lobby) bool) {
		for lobby := range r.List() {
			if lobby.IsVisibleTo(session) && !yield(lobby) {
				return
			}
		}
	}
}
