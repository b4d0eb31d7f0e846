// Package broadcast 负责把服务端主动推送的命令投递到会话的连接上。
package broadcast

import (
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/pkg/log"
)

// Reactor 把命令写入连接的发送队列。
type Reactor interface {
	Send(h model.Handle, cmd *codec.Command) error
}

// SessionLookup 按 ID 查找存活的会话。
type SessionLookup interface {
	Find(id string) (*model.Session, bool)
	Require(id string) (*model.Session, error)
}

type Service struct {
	log.Binder

	sessions SessionLookup
	reactor  Reactor
}

func NewService(sessions SessionLookup, reactor Reactor) *Service {
	s := &Service{
		sessions: sessions,
		reactor:  reactor,
	}
	s.Bind("broadcast", "")
	return s
}

// Unicast 向单个会话发送命令，会话不存在时返回 DataNotFound。
func (s *Service) Unicast(sessionID string, cmd *codec.Command) error {
	session, err := s.sessions.Require(sessionID)
	if err != nil {
		return err
	}
	return s.reactor.Send(session.Handle, cmd)
}

// Broadcast 向大厅的所有者与参与者发送命令，返回成功投递的数量。
// 不存在的会话与发送失败都会被跳过。
func (s *Service) Broadcast(lobby model.Lobby, cmd *codec.Command) int {
	delivered := 0
	for _, sessionID := range lobby.Members() {
		session, ok := s.sessions.Find(sessionID)
		if !ok {
			continue
		}
		if err := s.reactor.Send(session.Handle, cmd); err != nil {
			s.Logger().ForLobby(lobby.ID).ForSession(sessionID).RatedWarn(1, "broadcast not delivered",
				log.FieldCommand(cmd.Name), zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
