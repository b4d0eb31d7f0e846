package model

import "github.com/foxssake/nohub/pkg/util/merr"

// Game 是游戏目录中的一项，启动时从配置导入，运行期间不再变化。
type Game struct {
	ID   string `mapstructure:"id" json:"id"`
	Name string `mapstructure:"name" json:"name"`
}

// GameBinding 表示会话或大厅所属的游戏分区：要么未绑定，要么绑定到某个游戏 ID。
//
// 零值即为未绑定。GameBinding 可以直接用 == 比较，两个未绑定的值相等。
type GameBinding struct {
	id    string
	bound bool
}

// Unbound 返回未绑定任何游戏的 GameBinding。
func Unbound() GameBinding {
	return GameBinding{}
}

// BoundTo 返回绑定到 id 的 GameBinding。
func BoundTo(id string) GameBinding {
	return GameBinding{id: id, bound: true}
}

// GameID 返回绑定的游戏 ID，未绑定时第二个返回值为 false。
func (b GameBinding) GameID() (string, bool) {
	return b.id, b.bound
}

func (b GameBinding) IsBound() bool {
	return b.bound
}

// Bind 执行一次性绑定，已绑定时返回 LockedError。
func (b GameBinding) Bind(id string) (GameBinding, error) {
	if b.bound {
		return b, merr.WrapErrLocked("Session already has a game set!")
	}
	return BoundTo(id), nil
}

func (b GameBinding) String() string {
	if !b.bound {
		return "<none>"
	}
	return b.id
}
