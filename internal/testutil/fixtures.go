// Package testutil 提供各包测试共用的游戏、会话与大厅样例数据。
package testutil

import (
	"net"
	"slices"
	"sync"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/codec"
)

var (
	ForestBrawl = model.Game{ID: "q5jM", Name: "Forest Brawl"}
	Campfire    = model.Game{ID: "Yf8c", Name: "Campfire: Surviving Orom"}
)

// UnknownGameID 不在游戏目录中。
const UnknownGameID = "Bojd9jBe"

// Games 返回游戏目录中的全部游戏。
func Games() []model.Game {
	return []model.Game{ForestBrawl, Campfire}
}

// Handle 是内存中的连接句柄，记录发送给它的全部命令。
//
// 实现了 model.Handle 与 router.Conn。
type Handle struct {
	addr net.Addr

	mu         sync.Mutex
	attachment any
	sent       []*codec.Command
}

// NewHandle 创建对端地址为 ip:port 的句柄。
func NewHandle(ip string, port int) *Handle {
	return &Handle{addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: port}}
}

func (h *Handle) RemoteAddr() net.Addr {
	return h.addr
}

func (h *Handle) Attach(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attachment = v
}

func (h *Handle) Attachment() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attachment
}

func (h *Handle) Send(cmd *codec.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, cmd)
	return nil
}

// Sent 返回已发送命令的编码行。
func (h *Handle) Sent() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	lines := make([]string, 0, len(h.sent))
	for _, cmd := range h.sent {
		lines = append(lines, cmd.String())
	}
	return lines
}

// Reset 清空已发送的命令。
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = nil
}

// Fixtures 是一组相互关联的样例数据。每次调用 NewFixtures 都返回全新的副本，
// 测试可以随意修改。
type Fixtures struct {
	Dave   *model.Session
	Eric   *model.Session
	Pam    *model.Session
	Brian  *model.Session
	Luna   *model.Session
	Ingrid *model.Session

	DavesLobby   model.Lobby
	CoolLobby    model.Lobby
	MithrilParty model.Lobby
}

func newSession(id string, game model.GameBinding, address string, port int) *model.Session {
	return &model.Session{
		ID:      id,
		Address: address,
		Game:    game,
		Handle:  NewHandle(address, port),
	}
}

// NewFixtures 构造样例数据。
func NewFixtures() *Fixtures {
	f := &Fixtures{
		Dave:   newSession("94kwM3zUaNCn", model.BoundTo(ForestBrawl.ID), "224.103.6.176", 49582),
		Eric:   newSession("Nd49VE4RWJh0", model.BoundTo(ForestBrawl.ID), "128.154.159.94", 51488),
		Pam:    newSession("DCLyAVxClvO_", model.Unbound(), "81.53.112.234", 57228),
		Brian:  newSession("0B4bSWlwx065", model.BoundTo(UnknownGameID), "243.24.103.109", 40321),
		Luna:   newSession("IOx6fARLyowY", model.BoundTo(Campfire.ID), "49.8.5.216", 41000),
		Ingrid: newSession("B0TyeJgIwpdS", model.BoundTo(Campfire.ID), "59.243.185.54", 42000),
	}

	f.DavesLobby = model.Lobby{
		ID:        "WzXOsEhM",
		Owner:     f.Dave.ID,
		Game:      f.Dave.Game,
		Address:   "enet://224.103.6.176:49582",
		IsVisible: true,
		Data: model.PropertiesFromPairs(
			model.Property{Key: "name", Value: "Dave's Lobby"},
			model.Property{Key: "player-count", Value: "8"},
			model.Property{Key: "player-capacity", Value: "12"},
		),
	}
	f.CoolLobby = model.Lobby{
		ID:       "5fl8Rbc7",
		Owner:    f.Eric.ID,
		Game:     f.Eric.Game,
		Address:  "enet://128.154.159.94:51488",
		IsLocked: true,
		Data: model.PropertiesFromPairs(
			model.Property{Key: "name", Value: "Cool Lobby"},
			model.Property{Key: "player-count", Value: "9"},
			model.Property{Key: "player-capacity", Value: "16"},
		),
	}
	f.MithrilParty = model.Lobby{
		ID:        "mLG-7Wbx",
		Owner:     f.Luna.ID,
		Game:      f.Luna.Game,
		Address:   "noray://noray-eu.foxssake.studio/r4L1iEkarSm8",
		IsVisible: true,
		Data: model.PropertiesFromPairs(
			model.Property{Key: "name", Value: "Mithril Party"},
			model.Property{Key: "player-count", Value: "4"},
			model.Property{Key: "player-capacity", Value: "6"},
		),
	}
	return f
}

// Sessions 返回全部样例会话。
func (f *Fixtures) Sessions() []*model.Session {
	return []*model.Session{f.Dave, f.Eric, f.Pam, f.Brian, f.Luna, f.Ingrid}
}

// Lobbies 返回全部样例大厅。
func (f *Fixtures) Lobbies() []model.Lobby {
	return slices.Clone([]model.Lobby{f.DavesLobby, f.CoolLobby, f.MithrilParty})
}

// HandleOf 返回会话的内存句柄。
func HandleOf(session *model.Session) *Handle {
	return session.Handle.(*Handle)
}
