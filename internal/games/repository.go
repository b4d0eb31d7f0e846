// Package games 维护启动时从配置导入的游戏目录。
package games

import (
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/repository"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Lookup 是其他模块校验游戏 ID 时使用的只读视图。
type Lookup interface {
	Find(id string) (model.Game, bool)
	Require(id string) (model.Game, error)
}

// Repository 以游戏 ID 为键保存游戏目录。
type Repository struct {
	*repository.Repository[model.Game, string]
}

var _ Lookup = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		Repository: repository.New(
			func(g model.Game) string { return g.ID },
			repository.WithNotFound(func(id string) error { return merr.WrapErrGameNotFound(id) }),
		),
	}
}

// Import 依次添加 games，遇到重复 ID 时停止并返回 ConflictError。
func (r *Repository) Import(games []model.Game) error {
	for _, game := range games {
		if _, err := r.Add(game); err != nil {
			return err
		}
		log.Debug("imported game", log.FieldGame(game.ID), zap.String("name", game.Name))
	}
	log.Info("imported games", zap.Int("count", len(games)))
	return nil
}
