// Package sessions 管理与连接一一对应的会话：打开、关闭以及一次性的游戏绑定。
package sessions

import (
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/repository"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Repository 以会话 ID 为键保存存活的会话。会话以指针保存，游戏绑定就地修改。
type Repository struct {
	*repository.Repository[*model.Session, string]
}

func NewRepository() *Repository {
	return &Repository{
		Repository: repository.New(
			func(s *model.Session) string { return s.ID },
			repository.WithNotFound(func(id string) error { return merr.WrapErrSessionNotFound(id) }),
		),
	}
}

// CountByAddress 统计来自 address 的会话数量。
func (r *Repository) CountByAddress(address string) int {
	count := 0
	for session := range r.List() {
		if session.Address == address {
			count++
		}
	}
	return count
}
