package hub

import (
	"context"
	"net"
	"testing"
	"time"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/foxssake/nohub/internal/config"
	"github.com/foxssake/nohub/internal/lobbies"
	"github.com/foxssake/nohub/internal/network"
	"github.com/foxssake/nohub/internal/network/acceptor"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/connector"
	"github.com/foxssake/nohub/internal/testutil"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/merr"
)

const lobbyAddress = "enet://224.103.6.176:16384"

type HubSuite struct {
	suite.Suite

	cfg  *config.Config
	hub  *Hub
	addr string
}

// SetupSuite 让事件循环与连接层的日志输出到测试日志中。
func (s *HubSuite) SetupSuite() {
	s.Require().NoError(log.UseTestLogger(s.T(), "debug"))
}

func (s *HubSuite) SetupTest() {
	s.cfg = config.Default()
	s.cfg.Games = testutil.Games()
}

// start 组装 Hub 并在随机端口上提供 TCP 服务。关闭顺序与应用一致：先停连接层，再停事件循环。
func (s *HubSuite) start() {
	h, err := New(s.cfg)
	s.Require().NoError(err)
	s.hub = h

	acc, err := acceptor.NewTCPAcceptor("127.0.0.1:0", s.cfg.AcceptorConfig())
	s.Require().NoError(err)
	s.addr = acc.Addr().String()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- h.Run(loopCtx) }()

	serveCtx, stopServe := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- acc.Serve(serveCtx, h) }()

	s.T().Cleanup(func() {
		stopServe()
		<-serveDone
		stopLoop()
		<-loopDone
	})
}

func (s *HubSuite) dial() *connector.Client {
	client, err := connector.Dial(context.Background(), s.addr, connector.DefaultConfig())
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = client.Close() })
	return client
}

func (s *HubSuite) request(client *connector.Client, name string, params []string, kv ...codec.Pair) (*connector.Response, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Request(ctx, name, params, kv...)
}

func (s *HubSuite) mustRequest(client *connector.Client, name string, params []string, kv ...codec.Pair) *connector.Response {
	resp, err := s.request(client, name, params, kv...)
	s.Require().NoError(err, name)
	return resp
}

func (s *HubSuite) push(client *connector.Client) *codec.Command {
	select {
	case cmd, ok := <-client.Notifications():
		s.Require().True(ok, "connection closed before notification")
		return cmd
	case <-time.After(2 * time.Second):
		s.FailNow("no notification")
	}
	return nil
}

func (s *HubSuite) remoteError(err error) *connector.RemoteError {
	var remote *connector.RemoteError
	s.Require().ErrorAs(err, &remote)
	return remote
}

func (s *HubSuite) TestLobbyLifecycle() {
	s.start()
	host := s.dial()
	guest := s.dial()

	resp := s.mustRequest(host, "whereami", nil)
	s.Equal([]string{"127.0.0.1"}, resp.Params)

	s.mustRequest(host, "session/set-game", []string{testutil.ForestBrawl.ID})
	s.mustRequest(guest, "session/set-game", []string{testutil.ForestBrawl.ID})

	resp = s.mustRequest(host, "lobby/create", []string{lobbyAddress},
		codec.Pair{Key: "name", Value: "Dave's Lobby"}, codec.Pair{Key: "player-count", Value: "0"})
	s.Require().Len(resp.Params, 1)
	lobbyID := resp.Params[0]

	resp = s.mustRequest(guest, "lobby/list", []string{"name"})
	s.Equal(codec.KindStreamEnd, resp.Kind)
	s.Require().Len(resp.Stream, 1)
	s.Equal([]string{lobbyID}, resp.Stream[0].Params)
	s.Equal([]codec.Pair{{Key: "name", Value: "Dave's Lobby"}}, resp.Stream[0].KV)

	resp = s.mustRequest(guest, "lobby/get", []string{lobbyID})
	s.Require().Len(resp.Stream, 3)
	s.Equal([]string{lobbyID}, resp.Stream[0].Params)
	s.Equal([]codec.Pair{{Key: "name", Value: "Dave's Lobby"}}, resp.Stream[1].KV)
	s.Equal([]codec.Pair{{Key: "player-count", Value: "0"}}, resp.Stream[2].KV)

	resp = s.mustRequest(guest, "lobby/join", []string{lobbyID})
	s.Equal([]string{lobbyAddress}, resp.Params)

	joined := s.push(host)
	s.Equal(lobbies.CommandJoined, joined.Name)
	s.Equal(lobbyID, joined.Param(0))
	guestID := joined.Param(1)
	s.NotEmpty(guestID)

	s.mustRequest(host, "lobby/lock", []string{lobbyID})
	resp = s.mustRequest(guest, "lobby/get", []string{lobbyID, "name"})
	s.Require().Len(resp.Stream, 2)
	s.Equal([]string{lobbyID, "locked"}, resp.Stream[0].Params)

	_, err := s.request(guest, "lobby/lock", []string{lobbyID})
	s.Equal(merr.NameUnauthorized, s.remoteError(err).Name)

	s.Require().NoError(guest.Close())
	left := s.push(host)
	s.Equal(lobbies.CommandLeft, left.Name)
	s.Equal([]string{lobbyID, guestID}, left.Params)
}

func (s *HubSuite) TestOwnerDisconnectDeletesLobby() {
	s.start()
	host := s.dial()
	guest := s.dial()

	s.mustRequest(host, "session/set-game", []string{testutil.ForestBrawl.ID})
	s.mustRequest(guest, "session/set-game", []string{testutil.ForestBrawl.ID})
	lobbyID := s.mustRequest(host, "lobby/create", []string{lobbyAddress}).Params[0]
	s.mustRequest(guest, "lobby/join", []string{lobbyID})
	s.push(host)

	s.Require().NoError(host.Close())

	deleted := s.push(guest)
	s.Equal(lobbies.CommandDeleted, deleted.Name)
	s.Equal([]string{lobbyID}, deleted.Params)

	resp := s.mustRequest(guest, "lobby/list", nil)
	s.Empty(resp.Stream)
	_, err := s.request(guest, "lobby/get", []string{lobbyID})
	remote := s.remoteError(err)
	s.Equal(merr.NameDataNotFound, remote.Name)
	s.Equal("Lobby#"+lobbyID+" not found!", remote.Message)

	s.Eventually(func() bool {
		return promtestutil.ToFloat64(s.hub.Metrics().ConnectionsActive) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *HubSuite) TestErrorReplies() {
	s.start()
	client := s.dial()

	_, err := s.request(client, "lobby/create", []string{lobbyAddress})
	remote := s.remoteError(err)
	s.Equal(merr.NameInvalidCommand, remote.Name)
	s.Equal("Can't create lobbies without a game!", remote.Message)

	_, err = s.request(client, "session/set-game", []string{testutil.UnknownGameID})
	s.Equal(merr.NameDataNotFound, s.remoteError(err).Name)

	_, err = s.request(client, "lobby/teleport", nil)
	remote = s.remoteError(err)
	s.Equal(merr.NameInvalidCommand, remote.Name)
	s.Equal("Unknown command: lobby/teleport", remote.Message)

	_, err = s.request(client, "lobby/join", nil)
	remote = s.remoteError(err)
	s.Equal(merr.NameInvalidCommand, remote.Name)
	s.Equal("Missing lobby ID!", remote.Message)

	m := s.hub.Metrics()
	s.Equal(float64(1), promtestutil.ToFloat64(m.ExchangesFailed.WithLabelValues(commandUnknown)))
	s.Equal(float64(1), promtestutil.ToFloat64(m.ExchangesFailed.WithLabelValues("lobby/create")))
	s.Equal(float64(1), promtestutil.ToFloat64(m.ExchangesTotal.WithLabelValues("session/set-game")))
}

func (s *HubSuite) TestSessionLimit() {
	s.cfg.Sessions.MaxCount = 1
	s.start()

	first := s.dial()
	s.mustRequest(first, "whereami", nil)

	second := s.dial()
	rejected := s.push(second)
	s.Equal("error", rejected.Name)
	s.Equal([]string{merr.NameLimit, "Can't have more than 1 active sessions!"}, rejected.Params)

	select {
	case <-second.Done():
	case <-time.After(2 * time.Second):
		s.Fail("rejected connection was not closed")
	}

	s.mustRequest(first, "whereami", nil)
}

func (s *HubSuite) TestRepliesFromClientAreIgnored() {
	s.start()
	client := s.dial()

	s.Require().NoError(client.Send(&codec.Command{Name: "whereami", Kind: codec.KindReply, ExchangeID: "7"}))
	resp := s.mustRequest(client, "whereami", nil)
	s.Equal([]string{"127.0.0.1"}, resp.Params)
}

func (s *HubSuite) TestSubmitAfterStop() {
	h, err := New(s.cfg)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	ran := make(chan struct{})
	s.Require().NoError(h.submit(func() { panic("boom") }))
	s.Require().NoError(h.submit(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		s.FailNow("loop stopped after a panicking task")
	}

	cancel()
	s.NoError(<-done)
	s.ErrorIs(h.submit(func() {}), network.ErrDispatchFailed)
	s.Error(h.Run(context.Background()))
}

func (s *HubSuite) TestSendRequiresConn() {
	h, err := New(s.cfg)
	s.Require().NoError(err)

	handle := testutil.NewHandle("224.103.6.176", 49582)
	s.NoError(h.Send(handle, codec.NewCommand("lobby/deleted", "mLG-7Wbx")))
	s.Equal([]string{"lobby/deleted mLG-7Wbx"}, handle.Sent())

	s.Error(h.Send(addrOnly{}, codec.NewCommand("lobby/deleted", "mLG-7Wbx")))
}

func (s *HubSuite) TestDuplicateGames() {
	s.cfg.Games = append(s.cfg.Games, testutil.ForestBrawl)
	_, err := New(s.cfg)
	s.Error(err)
}

// addrOnly 满足 model.Handle，但不能发送命令。
type addrOnly struct{}

func (addrOnly) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }
func (addrOnly) Attach(any)           {}
func (addrOnly) Attachment() any      { return nil }

func TestHub(t *testing.T) {
	suite.Run(t, new(HubSuite))
}
