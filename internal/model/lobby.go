package model

import (
	"fmt"
	"slices"

	"github.com/foxssake/nohub/pkg/util/merr"
)

const (
	KeywordLocked = "locked"
	KeywordHidden = "hidden"
)

// Lobby 是大厅的值类型快照。
//
// 修改大厅时先 Clone 再改动单个字段，然后整体替换仓库中的旧值。
type Lobby struct {
	ID        string
	Owner     string
	Game      GameBinding
	Address   string
	IsVisible bool
	IsLocked  bool
	Data      Properties
	// Participants 不包含所有者，也不包含重复项。
	Participants []string
}

// LobbyChange 记录一次大厅修改前后的值。
type LobbyChange struct {
	From Lobby
	To   Lobby
}

func (l Lobby) Clone() Lobby {
	clone := l
	clone.Data = l.Data.Clone()
	clone.Participants = slices.Clone(l.Participants)
	return clone
}

// IsVisibleTo 判断大厅对会话是否可见：两者处于同一游戏分区（包括都未绑定），
// 并且大厅公开或会话是所有者。
func (l Lobby) IsVisibleTo(session *Session) bool {
	if session == nil || l.Game != session.Game {
		return false
	}
	return l.IsVisible || l.Owner == session.ID
}

func (l Lobby) IsOwnedBy(session *Session) bool {
	return session != nil && l.Owner == session.ID
}

// RequireModifiableBy 要求会话是大厅所有者。
func (l Lobby) RequireModifiableBy(session *Session) error {
	if !l.IsOwnedBy(session) {
		sessionID := ""
		if session != nil {
			sessionID = session.ID
		}
		return merr.WrapErrUnauthorized(fmt.Sprintf("Lobby#%s can't be modified in session#%s!", l.ID, sessionID))
	}
	return nil
}

// RequireJoinableBy 检查会话能否加入大厅：锁定的大厅不可加入，所有者也不能加入自己的大厅。
func (l Lobby) RequireJoinableBy(session *Session) error {
	if l.IsLocked {
		return merr.WrapErrLocked(fmt.Sprintf("Can't join locked lobby#%s!", l.ID))
	}
	if l.IsOwnedBy(session) {
		return merr.WrapErrLocked("Can't join your own lobby - you're already there!")
	}
	return nil
}

func (l Lobby) HasParticipant(sessionID string) bool {
	return slices.Contains(l.Participants, sessionID)
}

// Members 返回所有者及全部参与者。
func (l Lobby) Members() []string {
	members := make([]string, 0, len(l.Participants)+1)
	members = append(members, l.Owner)
	for _, p := range l.Participants {
		if p != l.Owner && !slices.Contains(members, p) {
			members = append(members, p)
		}
	}
	return members
}

// Keywords 返回描述大厅状态的关键字，用于协议层输出。
func (l Lobby) Keywords() []string {
	var keywords []string
	if l.IsLocked {
		keywords = append(keywords, KeywordLocked)
	}
	if !l.IsVisible {
		keywords = append(keywords, KeywordHidden)
	}
	return keywords
}
