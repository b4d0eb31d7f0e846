package lobbies

import (
	"go.uber.org/zap"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/pkg/log"
)

const (
	CommandDeleted = "lobby/deleted"
	CommandJoined  = "lobby/joined"
	CommandLeft    = "lobby/left"
)

// Broadcaster 向会话推送命令。
type Broadcaster interface {
	Unicast(sessionID string, cmd *codec.Command) error
	Broadcast(lobby model.Lobby, cmd *codec.Command) int
}

// Notifier 把大厅事件转换为推送给成员的通知，投递尽力而为。
type Notifier struct {
	log.Binder

	broadcaster Broadcaster
}

func NewNotifier(broadcaster Broadcaster) *Notifier {
	n := &Notifier{broadcaster: broadcaster}
	n.Bind("lobbies", "notifier")
	return n
}

func (n *Notifier) Attach(bus *events.Bus) {
	events.On(bus, events.LobbyDelete, n.onDelete)
	events.On(bus, events.LobbyChange, n.onChange)
}

func (n *Notifier) onDelete(lobby model.Lobby) error {
	delivered := n.broadcaster.Broadcast(lobby, codec.NewCommand(CommandDeleted, lobby.ID))
	n.Logger().ForLobby(lobby.ID).Debug("notified lobby deletion", zap.Int("delivered", delivered))
	return nil
}

func (n *Notifier) onChange(change model.LobbyChange) error {
	lobby := change.To
	for _, sessionID := range addedParticipants(change) {
		n.unicast(lobby.Owner, codec.NewCommand(CommandJoined, lobby.ID, sessionID))
	}
	for _, sessionID := range removedParticipants(change) {
		n.unicast(lobby.Owner, codec.NewCommand(CommandLeft, lobby.ID, sessionID))
	}
	return nil
}

func (n *Notifier) unicast(sessionID string, cmd *codec.Command) {
	if err := n.broadcaster.Unicast(sessionID, cmd); err != nil {
		n.Logger().ForSession(sessionID).Debug("notification not delivered", log.FieldCommand(cmd.Name), zap.Error(err))
	}
}
