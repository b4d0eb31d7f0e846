package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/testutil"
	"github.com/foxssake/nohub/pkg/util/merr"
)

func TestImport(t *testing.T) {
	repo := NewRepository()
	require.NoError(t, repo.Import(testutil.Games()))
	assert.Equal(t, 2, repo.Count())

	game, err := repo.Require(testutil.Campfire.ID)
	require.NoError(t, err)
	assert.Equal(t, "Campfire: Surviving Orom", game.Name)
}

func TestImportDuplicate(t *testing.T) {
	repo := NewRepository()
	err := repo.Import([]model.Game{testutil.ForestBrawl, {ID: testutil.ForestBrawl.ID, Name: "Forest Brawl 2"}})
	assert.ErrorIs(t, err, merr.ErrConflict)

	game, ok := repo.Find(testutil.ForestBrawl.ID)
	assert.True(t, ok)
	assert.Equal(t, "Forest Brawl", game.Name)
}

func TestRequireUnknown(t *testing.T) {
	repo := NewRepository()
	require.NoError(t, repo.Import(testutil.Games()))

	_, err := repo.Require(testutil.UnknownGameID)
	assert.ErrorIs(t, err, merr.ErrGameNotFound)
	assert.ErrorIs(t, err, merr.ErrDataNotFound)
	assert.Equal(t, "Game#Bojd9jBe not found!", merr.Message(err))
}
