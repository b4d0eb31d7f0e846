package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/games"
	"github.com/foxssake/nohub/internal/network/codec"
	"github.com/foxssake/nohub/internal/network/router"
	"github.com/foxssake/nohub/internal/testutil"
	"github.com/foxssake/nohub/pkg/util/merr"
)

func newTestModule(t *testing.T) (*Module, router.Router) {
	t.Helper()
	gameRepo := games.NewRepository()
	require.NoError(t, gameRepo.Import(testutil.Games()))

	m := NewModule(fakeLobbies{}, gameRepo, events.NewBus(), DefaultConfig())
	r := router.New()
	require.NoError(t, m.Register(r))
	return m, r
}

func TestModuleCommands(t *testing.T) {
	_, r := newTestModule(t)
	assert.Equal(t, []string{CommandSetGame, CommandWhereAmI}, r.Commands())
}

func TestWhereAmI(t *testing.T) {
	_, r := newTestModule(t)
	h := testutil.NewHandle("224.103.6.176", 49582)

	require.NoError(t, r.Handle(context.Background(), router.NewExchange(h, codec.NewRequest(CommandWhereAmI, "1"))))
	require.NoError(t, r.Handle(context.Background(), router.NewExchange(h, codec.NewCommand(CommandWhereAmI))))

	assert.Equal(t, []string{".1 224.103.6.176", "youarehere 224.103.6.176"}, h.Sent())
}

func TestSetGameCommand(t *testing.T) {
	m, r := newTestModule(t)
	h := testutil.NewHandle("224.103.6.176", 49582)
	session, err := m.OpenSession(h)
	require.NoError(t, err)

	ctx := context.Background()
	err = r.Handle(ctx, router.NewExchange(h, codec.NewCommand(CommandSetGame, testutil.ForestBrawl.ID)))
	assert.ErrorIs(t, err, merr.ErrInvalidCommand)

	err = r.Handle(ctx, router.NewExchange(h, codec.NewRequest(CommandSetGame, "1")))
	assert.ErrorIs(t, err, merr.ErrInvalidCommand)
	assert.Equal(t, "Missing Game ID!", merr.Message(err))

	require.NoError(t, r.Handle(ctx, router.NewExchange(h, codec.NewRequest(CommandSetGame, "2", testutil.ForestBrawl.ID))))
	assert.Equal(t, []string{".2 ok"}, h.Sent())
	assert.True(t, session.Game.IsBound())

	require.NoError(t, m.CloseSession(h))
	err = r.Handle(ctx, router.NewExchange(h, codec.NewRequest(CommandSetGame, "3", testutil.Campfire.ID)))
	assert.ErrorIs(t, err, merr.ErrInvalidCommand)
	assert.Equal(t, "No session bound to connection!", merr.Message(err))
}
