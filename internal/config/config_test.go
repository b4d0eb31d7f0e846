package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/model"
)

func TestDefault(t *testing.T) {
	cfg, err := Load(WithEnvironment(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "localhost:9980", cfg.TCP.Addr())
	assert.Equal(t, 0, cfg.TCP.MaxConnections)
	assert.Equal(t, time.Minute, cfg.TCP.WorkerExpiry)
	assert.False(t, cfg.WebSocket.Enabled)
	assert.Equal(t, "localhost:9982", cfg.WebSocket.Addr())
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "localhost:9981", cfg.Metrics.Addr())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.Stdout)
	assert.Empty(t, cfg.Games)
	assert.Equal(t, 8, cfg.Lobbies.IDLength)
	assert.False(t, cfg.Lobbies.EnableGameless)
	assert.True(t, cfg.Lobbies.Notify)
	assert.Equal(t, 12, cfg.Sessions.IDLength)
	assert.Equal(t, events.FailFast, cfg.FailurePolicy())
}

func TestEnvironmentOverrides(t *testing.T) {
	cfg, err := Load(WithEnvironment(map[string]string{
		"NOHUB_TCP_HOST":                   "0.0.0.0",
		"NOHUB_TCP_PORT":                   "12000",
		"NOHUB_TCP_MAX_CONNECTIONS":        "64",
		"NOHUB_TCP_READ_TIMEOUT":           "30s",
		"NOHUB_TCP_WORKER_EXPIRY":          "5s",
		"NOHUB_WEBSOCKET_ENABLED":          "true",
		"NOHUB_WEBSOCKET_PATH":             "/nohub",
		"NOHUB_METRICS_ENABLED":            "true",
		"NOHUB_LOG_LEVEL":                  "debug",
		"NOHUB_LOG_FILE_DIR":               "/var/log/nohub",
		"NOHUB_LOG_FILE":                   "nohub.log",
		"NOHUB_LOBBIES_ID_LENGTH":          "10",
		"NOHUB_LOBBIES_WITHOUT_GAME":       "true",
		"NOHUB_LOBBIES_MAX_PER_SESSION":    "2",
		"NOHUB_LOBBIES_NOTIFY":             "false",
		"NOHUB_SESSIONS_ARBITRARY_GAME_ID": "true",
		"NOHUB_SESSIONS_MAX_PER_ADDRESS":   "4",
		"NOHUB_EVENTS_FAILURE_POLICY":      "collect",
	}))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:12000", cfg.TCP.Addr())
	assert.Equal(t, 64, cfg.TCP.MaxConnections)
	assert.Equal(t, 30*time.Second, cfg.TCP.ReadTimeout)
	assert.True(t, cfg.WebSocket.Enabled)
	assert.Equal(t, "/nohub", cfg.WebSocket.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/nohub", cfg.Log.File.RootPath)
	assert.Equal(t, "nohub.log", cfg.Log.File.Filename)
	assert.Equal(t, 10, cfg.Lobbies.IDLength)
	assert.True(t, cfg.Lobbies.EnableGameless)
	assert.Equal(t, 2, cfg.Lobbies.MaxPerSession)
	assert.False(t, cfg.Lobbies.Notify)
	assert.True(t, cfg.Sessions.ArbitraryGameID)
	assert.Equal(t, 4, cfg.Sessions.MaxPerAddress)
	assert.Equal(t, events.Collect, cfg.FailurePolicy())

	acc := cfg.AcceptorConfig()
	assert.Equal(t, 64, acc.MaxConnections)
	assert.Equal(t, 30*time.Second, acc.ReadTimeout)
	assert.Equal(t, "/nohub", acc.Path)
	assert.Equal(t, 5*time.Second, acc.WorkerExpiry)
}

func TestGamesFromEnvironment(t *testing.T) {
	cfg, err := Load(WithEnvironment(map[string]string{
		"NOHUB_GAMES": "q5jM Forest Brawl\n  Yf8c   Campfire  \n\nbroken\n",
	}))
	require.NoError(t, err)

	assert.Equal(t, Games{
		{ID: "q5jM", Name: "Forest Brawl"},
		{ID: "Yf8c", Name: "Campfire"},
	}, cfg.Games)
}

func TestParseGames(t *testing.T) {
	assert.Empty(t, ParseGames(""))
	assert.Equal(t, Games{{ID: "a", Name: "b c"}}, ParseGames("a b c"))
}

func TestDefaultGameID(t *testing.T) {
	cfg, err := Load(WithEnvironment(map[string]string{"NOHUB_LOBBIES_DEFAULT_GAME_ID": "q5jM"}))
	require.NoError(t, err)
	assert.Equal(t, "q5jM", cfg.Sessions.DefaultGameID)

	cfg, err = Load(WithEnvironment(map[string]string{
		"NOHUB_LOBBIES_DEFAULT_GAME_ID":  "q5jM",
		"NOHUB_SESSIONS_DEFAULT_GAME_ID": "Yf8c",
	}))
	require.NoError(t, err)
	assert.Equal(t, "Yf8c", cfg.Sessions.DefaultGameID)
}

func TestFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nohub.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tcp:
  port: 7000
  read-timeout: 5s
lobbies:
  max-count: 100
games:
  - id: q5jM
    name: Forest Brawl
`), 0o600))

	cfg, err := Load(WithFile(path), WithEnvironment(map[string]string{"NOHUB_TCP_PORT": "7001"}))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.TCP.Host)
	assert.Equal(t, 7001, cfg.TCP.Port)
	assert.Equal(t, 5*time.Second, cfg.TCP.ReadTimeout)
	assert.Equal(t, 100, cfg.Lobbies.MaxCount)
	assert.Equal(t, 8, cfg.Lobbies.IDLength)
	assert.Equal(t, Games{{ID: "q5jM", Name: "Forest Brawl"}}, cfg.Games)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "missing.yaml")), WithEnvironment(map[string]string{}))
	assert.Error(t, err)
}

func TestResolveFile(t *testing.T) {
	assert.Equal(t, "cli.yaml", ResolveFile("cli.yaml", map[string]string{EnvConfigFilePath: "env.yaml"}))
	assert.Equal(t, "env.yaml", ResolveFile("", map[string]string{EnvConfigFilePath: "env.yaml"}))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"negative ceiling":    func(c *Config) { c.Lobbies.MaxCount = -1 },
		"short lobby ids":     func(c *Config) { c.Lobbies.IDLength = 3 },
		"short session ids":   func(c *Config) { c.Sessions.IDLength = 2 },
		"unknown policy":      func(c *Config) { c.Events.FailurePolicy = "retry" },
		"port out of range":   func(c *Config) { c.TCP.Port = 70000 },
		"negative sessions":   func(c *Config) { c.Sessions.MaxPerAddress = -2 },
		"duplicate game ids":  func(c *Config) { c.Games = Games{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}} },
		"relative ws path":    func(c *Config) { c.WebSocket.Enabled = true; c.WebSocket.Path = "ws" },
		"negative read limit": func(c *Config) { c.TCP.ReadTimeout = -time.Second },
		"negative expiry":     func(c *Config) { c.TCP.WorkerExpiry = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Games = Games{model.Game{ID: "a", Name: "A"}, model.Game{ID: "b", Name: "B"}}
	assert.NoError(t, cfg.Validate())
}

func TestInvalidEnvironment(t *testing.T) {
	_, err := Load(WithEnvironment(map[string]string{"NOHUB_TCP_PORT": "nope"}))
	assert.Error(t, err)

	_, err = Load(WithEnvironment(map[string]string{"NOHUB_LOBBIES_MAX_COUNT": "-5"}))
	assert.Error(t, err)
}
