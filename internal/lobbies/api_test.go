package lobbies

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/ids"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/testutil"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/merr"
)

type recorder struct {
	created []model.Lobby
	deleted []model.Lobby
	changed []model.LobbyChange
}

func record(bus *events.Bus) *recorder {
	r := &recorder{}
	events.On(bus, events.LobbyCreate, func(l model.Lobby) error {
		r.created = append(r.created, l)
		return nil
	})
	events.On(bus, events.LobbyDelete, func(l model.Lobby) error {
		r.deleted = append(r.deleted, l)
		return nil
	})
	events.On(bus, events.LobbyChange, func(c model.LobbyChange) error {
		r.changed = append(r.changed, c)
		return nil
	})
	return r
}

type ApiSuite struct {
	suite.Suite

	fx     *testutil.Fixtures
	cfg    Config
	bus    *events.Bus
	events *recorder
	repo   *Repository
	api    *Api
}

func (s *ApiSuite) SetupSuite() {
	s.Require().NoError(log.UseTestLogger(s.T(), "debug"))
}

func (s *ApiSuite) SetupTest() {
	s.fx = testutil.NewFixtures()
	s.cfg = DefaultConfig()
	s.rebuild()
}

func (s *ApiSuite) rebuild() {
	s.build(s.fx.Lobbies(), ids.Fixed("KSKCH1sM", "jgx6pXj4"))
}

// rebuildEmpty 以空仓库与随机 ID 重建 Api。
func (s *ApiSuite) rebuildEmpty() {
	s.build(nil, ids.NanoID(s.cfg.IDLength))
}

func (s *ApiSuite) build(seed []model.Lobby, gen ids.Generator) {
	s.bus = events.NewBus()
	s.events = record(s.bus)
	s.repo = NewRepository()
	for _, lobby := range seed {
		_, err := s.repo.Add(lobby)
		s.Require().NoError(err)
	}
	s.api = NewApi(s.repo, NewService(s.repo, s.bus, s.cfg, gen))
}

func (s *ApiSuite) TestCreate() {
	data := model.PropertiesFromPairs(model.Property{Key: "name", Value: "Pam's Lobby"})
	id, err := s.api.Create("enet://81.53.112.234:57228", s.fx.Dave, data)
	s.Require().NoError(err)
	s.Equal("KSKCH1sM", id)

	lobby, ok := s.repo.Find(id)
	s.Require().True(ok)
	s.Equal(s.fx.Dave.ID, lobby.Owner)
	s.Equal(s.fx.Dave.Game, lobby.Game)
	s.True(lobby.IsVisible)
	s.False(lobby.IsLocked)
	s.Empty(lobby.Participants)
	s.Equal(data, lobby.Data)

	s.Len(s.events.created, 1)
	s.Equal(id, s.events.created[0].ID)
}

func (s *ApiSuite) TestCreateWithoutGame() {
	_, err := s.api.Create("enet://81.53.112.234:57228", s.fx.Pam, nil)
	s.ErrorIs(err, merr.ErrInvalidCommand)
	s.Equal("Can't create lobbies without a game!", merr.Message(err))
	s.Empty(s.events.created)

	s.cfg.EnableGameless = true
	s.rebuild()
	id, err := s.api.Create("enet://81.53.112.234:57228", s.fx.Pam, nil)
	s.Require().NoError(err)
	lobby, _ := s.repo.Find(id)
	s.False(lobby.Game.IsBound())
}

func (s *ApiSuite) TestCreateLimits() {
	s.cfg.MaxCount = 3
	s.rebuild()
	_, err := s.api.Create("enet://x", s.fx.Ingrid, nil)
	s.ErrorIs(err, merr.ErrLimitReached)
	s.Equal("Can't host more than 3 active lobbies on this instance!", merr.Message(err))

	s.cfg = DefaultConfig()
	s.cfg.MaxPerSession = 1
	s.rebuild()
	_, err = s.api.Create("enet://x", s.fx.Dave, nil)
	s.ErrorIs(err, merr.ErrLimitReached)
	s.Equal("Session can't have more than 1 active lobbies!", merr.Message(err))
	_, err = s.api.Create("enet://x", s.fx.Ingrid, nil)
	s.NoError(err)

	s.cfg = DefaultConfig()
	s.cfg.MaxData = 1
	s.rebuild()
	data := model.PropertiesFromPairs(model.Property{Key: "a", Value: "1"}, model.Property{Key: "b", Value: "2"})
	_, err = s.api.Create("enet://x", s.fx.Ingrid, data)
	s.ErrorIs(err, merr.ErrLimitReached)
	s.Equal("Lobby can't have more than 1 data entries!", merr.Message(err))
	s.Equal(3, s.repo.Count())
}

func (s *ApiSuite) TestCreateZeroPerSessionIsUnbounded() {
	s.cfg.MaxCount = 8
	s.cfg.MaxPerSession = 0
	s.rebuildEmpty()

	for i := range 8 {
		_, err := s.api.Create("enet://224.103.6.176:16384", s.fx.Dave, nil)
		s.Require().NoError(err, "lobby #%d", i)
	}
	s.Equal(8, s.repo.CountBySession(s.fx.Dave.ID))

	_, err := s.api.Create("enet://224.103.6.176:16384", s.fx.Dave, nil)
	s.ErrorIs(err, merr.ErrLimitReached)
	s.Equal("Can't host more than 8 active lobbies on this instance!", merr.Message(err))
}

func (s *ApiSuite) TestCreateZeroCountIsUnbounded() {
	s.cfg.MaxCount = 0
	s.cfg.MaxPerSession = 3
	s.build(s.fx.Lobbies(), ids.NanoID(s.cfg.IDLength))

	hosts := []*model.Session{s.fx.Dave, s.fx.Eric, s.fx.Luna, s.fx.Ingrid}
	created := 0
	for _, host := range hosts {
		for s.repo.CountBySession(host.ID) < s.cfg.MaxPerSession {
			_, err := s.api.Create("enet://224.103.6.176:16384", host, nil)
			s.Require().NoError(err, host.ID)
			created++
		}
	}
	s.Equal(9, created)
	s.Equal(12, s.repo.Count())
	s.Len(s.events.created, created)
}

func (s *ApiSuite) TestCreateInstanceCeilingFromEmpty() {
	s.cfg.MaxCount = 4
	s.rebuildEmpty()

	for _, host := range []*model.Session{s.fx.Dave, s.fx.Eric, s.fx.Luna, s.fx.Ingrid} {
		_, err := s.api.Create("enet://224.103.6.176:16384", host, nil)
		s.Require().NoError(err, host.ID)
	}

	fifth := &model.Session{ID: "x5Pz0aRfLqk2", Address: "59.243.185.54", Game: model.BoundTo(testutil.Campfire.ID)}
	_, err := s.api.Create("enet://59.243.185.54:42000", fifth, nil)
	s.ErrorIs(err, merr.ErrLimitReached)
	s.Equal("Can't host more than 4 active lobbies on this instance!", merr.Message(err))
	s.Equal(4, s.repo.Count())
	s.Len(s.events.created, 4)
}

func (s *ApiSuite) TestCreateHandlerFailureKeepsLobby() {
	errRejected := errors.New("rejected by handler")
	events.On(s.bus, events.LobbyCreate, func(model.Lobby) error { return errRejected })

	_, err := s.api.Create("enet://224.103.6.176:16384", s.fx.Ingrid, nil)
	s.ErrorIs(err, errRejected)

	s.Equal(1, s.repo.CountBySession(s.fx.Ingrid.ID))
	_, ok := s.repo.Find("KSKCH1sM")
	s.True(ok)
	s.Len(s.events.created, 1)
}

func (s *ApiSuite) TestGet() {
	lobby, err := s.api.Get(s.fx.DavesLobby.ID, s.fx.Eric, nil)
	s.Require().NoError(err)
	s.Equal(s.fx.DavesLobby.Data, lobby.Data)

	lobby, err = s.api.Get(s.fx.DavesLobby.ID, s.fx.Eric, []string{"player-capacity", "unknown", "name"})
	s.Require().NoError(err)
	s.Equal(model.PropertiesFromPairs(
		model.Property{Key: "name", Value: "Dave's Lobby"},
		model.Property{Key: "player-capacity", Value: "12"},
	), lobby.Data)

	lobby, err = s.api.Get(s.fx.DavesLobby.ID, s.fx.Eric, []string{})
	s.Require().NoError(err)
	s.Empty(lobby.Data)

	stored, _ := s.repo.Find(s.fx.DavesLobby.ID)
	s.Equal(3, stored.Data.Len())
}

func (s *ApiSuite) TestGetAcrossGames() {
	_, err := s.api.Get(s.fx.MithrilParty.ID, s.fx.Dave, nil)
	s.ErrorIs(err, merr.ErrLobbyNotFound)
}

func (s *ApiSuite) TestList() {
	var listed []model.Lobby
	for lobby := range s.api.List([]string{"name"}, s.fx.Eric) {
		listed = append(listed, lobby)
	}
	s.Require().Len(listed, 2)
	s.Equal(s.fx.DavesLobby.ID, listed[0].ID)
	s.Equal(model.PropertiesFromPairs(model.Property{Key: "name", Value: "Dave's Lobby"}), listed[0].Data)
	s.Equal(s.fx.CoolLobby.ID, listed[1].ID)
}

func (s *ApiSuite) TestDelete() {
	err := s.api.Delete(s.fx.DavesLobby.ID, s.fx.Eric)
	s.ErrorIs(err, merr.ErrUnauthorized)
	s.Equal("Lobby#WzXOsEhM can't be modified in session#Nd49VE4RWJh0!", merr.Message(err))
	s.True(s.repo.Has(s.fx.DavesLobby.ID))

	s.NoError(s.api.Delete(s.fx.DavesLobby.ID, s.fx.Dave))
	s.False(s.repo.Has(s.fx.DavesLobby.ID))
	s.Len(s.events.deleted, 1)
}

func (s *ApiSuite) TestDeleteMissingIsNoop() {
	s.NoError(s.api.Delete("missing", s.fx.Dave))
	s.NoError(s.api.Delete(s.fx.MithrilParty.ID, s.fx.Dave))
	s.True(s.repo.Has(s.fx.MithrilParty.ID))
	s.Empty(s.events.deleted)
}

func (s *ApiSuite) TestJoin() {
	address, err := s.api.Join(s.fx.MithrilParty.ID, s.fx.Ingrid)
	s.Require().NoError(err)
	s.Equal("noray://noray-eu.foxssake.studio/r4L1iEkarSm8", address)

	_, err = s.api.Join(s.fx.MithrilParty.ID, s.fx.Ingrid)
	s.Require().NoError(err)

	stored, _ := s.repo.Find(s.fx.MithrilParty.ID)
	s.Equal([]string{s.fx.Ingrid.ID}, stored.Participants)
	s.Len(s.events.changed, 1)
	s.Empty(s.events.changed[0].From.Participants)
}

func (s *ApiSuite) TestJoinRejected() {
	_, err := s.api.Join(s.fx.CoolLobby.ID, s.fx.Dave)
	s.ErrorIs(err, merr.ErrLocked)
	s.Equal("Can't join locked lobby#5fl8Rbc7!", merr.Message(err))

	_, err = s.api.Join(s.fx.DavesLobby.ID, s.fx.Dave)
	s.ErrorIs(err, merr.ErrLocked)
	s.Equal("Can't join your own lobby - you're already there!", merr.Message(err))

	_, err = s.api.Join(s.fx.DavesLobby.ID, s.fx.Luna)
	s.ErrorIs(err, merr.ErrLobbyNotFound)
	s.Empty(s.events.changed)
}

func (s *ApiSuite) TestMutations() {
	id := s.fx.DavesLobby.ID
	s.NoError(s.api.Lock(id, s.fx.Dave))
	s.NoError(s.api.Hide(id, s.fx.Dave))

	stored, _ := s.repo.Find(id)
	s.True(stored.IsLocked)
	s.False(stored.IsVisible)

	s.NoError(s.api.Unlock(id, s.fx.Dave))
	s.NoError(s.api.Publish(id, s.fx.Dave))
	stored, _ = s.repo.Find(id)
	s.False(stored.IsLocked)
	s.True(stored.IsVisible)

	s.Len(s.events.changed, 4)
	s.False(s.events.changed[0].From.IsLocked)
	s.True(s.events.changed[0].To.IsLocked)
}

func (s *ApiSuite) TestMutationsRequireOwnership() {
	for _, fn := range []func(string, *model.Session) error{s.api.Lock, s.api.Unlock, s.api.Hide, s.api.Publish} {
		s.ErrorIs(fn(s.fx.DavesLobby.ID, s.fx.Eric), merr.ErrUnauthorized)
		s.ErrorIs(fn(s.fx.DavesLobby.ID, s.fx.Luna), merr.ErrLobbyNotFound)
	}
	s.Empty(s.events.changed)
}

func (s *ApiSuite) TestSetData() {
	data := model.PropertiesFromPairs(model.Property{Key: "player-count", Value: "9"})
	s.NoError(s.api.SetData(s.fx.DavesLobby.ID, data, s.fx.Dave))

	stored, _ := s.repo.Find(s.fx.DavesLobby.ID)
	s.Equal(data, stored.Data)
	s.Equal(3, s.events.changed[0].From.Data.Len())

	s.cfg.MaxData = 1
	s.rebuild()
	too := data.With("name", "x")
	err := s.api.SetData(s.fx.DavesLobby.ID, too, s.fx.Dave)
	s.ErrorIs(err, merr.ErrLimitReached)
}

func (s *ApiSuite) TestOnSessionClose() {
	_, err := s.api.Join(s.fx.DavesLobby.ID, s.fx.Eric)
	s.Require().NoError(err)
	s.events.changed = nil

	s.NoError(s.api.OnSessionClose(events.SessionClosed{SessionID: s.fx.Dave.ID}))
	s.False(s.repo.Has(s.fx.DavesLobby.ID))
	s.Len(s.events.deleted, 1)
	s.Empty(s.events.changed)
	s.False(s.api.ExistsBySession(s.fx.Dave.ID))

	_, err = s.api.Join(s.fx.MithrilParty.ID, s.fx.Ingrid)
	s.Require().NoError(err)
	s.events.changed = nil

	s.NoError(s.api.OnSessionClose(events.SessionClosed{SessionID: s.fx.Ingrid.ID}))
	s.Require().Len(s.events.changed, 1)
	s.Equal([]string{s.fx.Ingrid.ID}, s.events.changed[0].From.Participants)
	s.Empty(s.events.changed[0].To.Participants)
}

func (s *ApiSuite) TestParticipantDiff() {
	change := model.LobbyChange{
		From: model.Lobby{Participants: []string{"a", "b"}},
		To:   model.Lobby{Participants: []string{"b", "c"}},
	}
	s.Equal([]string{"c"}, addedParticipants(change))
	s.Equal([]string{"a"}, removedParticipants(change))
	s.Empty(addedParticipants(model.LobbyChange{}))
}

func TestApi(t *testing.T) {
	suite.Run(t, new(ApiSuite))
}
