// Package config 组装 nohub 的运行配置。
//
// 配置按以下顺序分层覆盖：Default()、可选的 YAML/JSON 文件、NOHUB_ 前缀的环境变量。
package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"

	"github.com/foxssake/nohub/internal/events"
	"github.com/foxssake/nohub/internal/ids"
	"github.com/foxssake/nohub/internal/lobbies"
	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/internal/network/acceptor"
	"github.com/foxssake/nohub/internal/sessions"
	"github.com/foxssake/nohub/pkg/log"
	"github.com/foxssake/nohub/pkg/util/typeutil"
	zviper "github.com/foxssake/nohub/pkg/util/viper"
)

const (
	// EnvPrefix 是全部环境变量的公共前缀。
	EnvPrefix = "NOHUB_"
	// EnvConfigFilePath 指定配置文件路径。
	EnvConfigFilePath = EnvPrefix + "CONFIG_FILE_PATH"
	// DefaultConfigFile 存在时会被自动加载。
	DefaultConfigFile = "./config.yaml"

	// envLegacyDefaultGameID 是 NOHUB_SESSIONS_DEFAULT_GAME_ID 的旧名，仍然兼容。
	envLegacyDefaultGameID = EnvPrefix + "LOBBIES_DEFAULT_GAME_ID"
)

// ListenerConfig 描述一个 TCP 监听端点。
type ListenerConfig struct {
	Host string `mapstructure:"host" json:"host" env:"HOST"`
	Port int    `mapstructure:"port" json:"port" env:"PORT"`
}

// Addr 返回 host:port 形式的监听地址。
func (c ListenerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type TCPConfig struct {
	ListenerConfig `mapstructure:",squash"`

	// MaxConnections 为 0 表示不限。
	MaxConnections int           `mapstructure:"max-connections" json:"maxConnections" env:"MAX_CONNECTIONS"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout" json:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout" json:"writeTimeout" env:"WRITE_TIMEOUT"`
	SendQueueSize  int           `mapstructure:"send-queue-size" json:"sendQueueSize" env:"SEND_QUEUE_SIZE"`
	MaxFrameSize   int           `mapstructure:"max-frame-size" json:"maxFrameSize" env:"MAX_FRAME_SIZE"`

	// WorkerExpiry 为连接协程池回收空闲 worker 的周期。
	WorkerExpiry time.Duration `mapstructure:"worker-expiry" json:"workerExpiry" env:"WORKER_EXPIRY"`
}

type WebSocketConfig struct {
	ListenerConfig `mapstructure:",squash"`

	Enabled bool   `mapstructure:"enabled" json:"enabled" env:"ENABLED"`
	Path    string `mapstructure:"path" json:"path" env:"PATH"`
}

type MetricsConfig struct {
	ListenerConfig `mapstructure:",squash"`

	Enabled bool `mapstructure:"enabled" json:"enabled" env:"ENABLED"`
}

type EventsConfig struct {
	FailurePolicy string `mapstructure:"failure-policy" json:"failurePolicy" env:"FAILURE_POLICY"`
}

// Games 是游戏目录。环境变量中每行一个游戏，格式为 "<id> <name>"。
type Games []model.Game

var gameLine = regexp.MustCompile(`(\S*)\s+(.+)`)

// ParseGames 按行解析游戏目录。
func ParseGames(value string) Games {
	games := Games{}
	for _, line := range strings.Split(value, "\n") {
		match := gameLine.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			continue
		}
		games = append(games, model.Game{ID: match[1], Name: match[2]})
	}
	return games
}

type Config struct {
	TCP       TCPConfig       `mapstructure:"tcp" json:"tcp"`
	WebSocket WebSocketConfig `mapstructure:"websocket" json:"websocket"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics"`
	Log       log.Config      `mapstructure:"log" json:"log"`
	Games     Games           `mapstructure:"games" json:"games"`
	Lobbies   lobbies.Config  `mapstructure:"lobbies" json:"lobbies"`
	Sessions  sessions.Config `mapstructure:"sessions" json:"sessions"`
	Events    EventsConfig    `mapstructure:"events" json:"events"`
}

// Default 返回全部默认值。
func Default() *Config {
	acc := acceptor.DefaultConfig()
	return &Config{
		TCP: TCPConfig{
			ListenerConfig: ListenerConfig{Host: "localhost", Port: 9980},
			WriteTimeout:   acc.WriteTimeout,
			SendQueueSize:  acc.SendQueueSize,
			WorkerExpiry:   acc.WorkerExpiry,
		},
		WebSocket: WebSocketConfig{
			ListenerConfig: ListenerConfig{Host: "localhost", Port: 9982},
			Path:           acc.Path,
		},
		Metrics: MetricsConfig{
			ListenerConfig: ListenerConfig{Host: "localhost", Port: 9981},
		},
		Log: log.Config{
			Level:  "info",
			Format: log.FormatText,
			Stdout: true,
		},
		Games:    Games{},
		Lobbies:  lobbies.DefaultConfig(),
		Sessions: sessions.DefaultConfig(),
		Events:   EventsConfig{FailurePolicy: string(events.FailFast)},
	}
}

// Option 用于配置 Load。
type Option func(*loadOptions)

type loadOptions struct {
	file        string
	environment map[string]string
}

// WithFile 指定配置文件，文件不存在时 Load 返回错误。
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = path
	}
}

// WithEnvironment 用给定的变量表代替进程环境变量。
func WithEnvironment(environment map[string]string) Option {
	return func(o *loadOptions) {
		o.environment = environment
	}
}

// Load 依次叠加默认值、配置文件与环境变量，并校验结果。
func Load(opts ...Option) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.environment == nil {
		o.environment = env.ToMap(os.Environ())
	}

	cfg := Default()
	if o.file != "" {
		file, err := zviper.Load(o.file)
		if err != nil {
			return nil, err
		}
		if err := file.Unmarshal(cfg); err != nil {
			return nil, errors.Wrapf(err, "failed to decode config file %q", o.file)
		}
	}

	if err := cfg.parseEnvironment(o.environment); err != nil {
		return nil, err
	}
	if _, ok := o.environment[EnvPrefix+"SESSIONS_DEFAULT_GAME_ID"]; !ok {
		if legacy, ok := o.environment[envLegacyDefaultGameID]; ok {
			cfg.Sessions.DefaultGameID = legacy
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseEnvironment 按配置段解析 NOHUB_<段>_<键> 形式的环境变量，游戏目录单独按行解析。
func (c *Config) parseEnvironment(environment map[string]string) error {
	sections := []struct {
		prefix string
		target any
	}{
		{"TCP_", &c.TCP},
		{"WEBSOCKET_", &c.WebSocket},
		{"METRICS_", &c.Metrics},
		{"LOG_", &c.Log},
		{"LOBBIES_", &c.Lobbies},
		{"SESSIONS_", &c.Sessions},
		{"EVENTS_", &c.Events},
	}
	for _, section := range sections {
		if err := env.ParseWithOptions(section.target, env.Options{
			Prefix:      EnvPrefix + section.prefix,
			Environment: environment,
		}); err != nil {
			return errors.Wrapf(err, "failed to parse %s%s* environment", EnvPrefix, section.prefix)
		}
	}
	if raw, ok := environment[EnvPrefix+"GAMES"]; ok {
		c.Games = ParseGames(raw)
	}
	return nil
}

// ResolveFile 决定要加载的配置文件，优先级从低到高为：
// 存在的 ./config.yaml、NOHUB_CONFIG_FILE_PATH、命令行 --config。
// 后两者属于显式指定，文件不存在时由 Load 报错；没有可用文件时返回空字符串。
func ResolveFile(flagPath string, environment map[string]string) string {
	if flagPath != "" {
		return flagPath
	}
	if envPath := environment[EnvConfigFilePath]; envPath != "" {
		return envPath
	}
	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return DefaultConfigFile
	}
	return ""
}

// Validate 检查配置中的取值范围。
func (c *Config) Validate() error {
	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	for name, port := range map[string]int{"tcp": c.TCP.Port, "websocket": c.WebSocket.Port, "metrics": c.Metrics.Port} {
		check(port >= 0 && port <= 65535, "%s.port must be within 0..65535, got %d", name, port)
	}
	check(c.TCP.MaxConnections >= 0, "tcp.max-connections must not be negative")
	check(c.TCP.ReadTimeout >= 0, "tcp.read-timeout must not be negative")
	check(c.TCP.WriteTimeout >= 0, "tcp.write-timeout must not be negative")
	check(c.TCP.SendQueueSize >= 0, "tcp.send-queue-size must not be negative")
	check(c.TCP.MaxFrameSize >= 0, "tcp.max-frame-size must not be negative")
	check(c.TCP.WorkerExpiry >= 0, "tcp.worker-expiry must not be negative")
	check(!c.WebSocket.Enabled || strings.HasPrefix(c.WebSocket.Path, "/"), "websocket.path must start with '/'")

	check(c.Lobbies.IDLength >= ids.MinLength, "lobbies.id-length must be at least %d", ids.MinLength)
	check(c.Lobbies.MaxCount >= 0, "lobbies.max-count must not be negative")
	check(c.Lobbies.MaxPerSession >= 0, "lobbies.max-per-session must not be negative")
	check(c.Lobbies.MaxData >= 0, "lobbies.max-data must not be negative")

	check(c.Sessions.IDLength >= ids.MinLength, "sessions.id-length must be at least %d", ids.MinLength)
	check(c.Sessions.MaxCount >= 0, "sessions.max-count must not be negative")
	check(c.Sessions.MaxPerAddress >= 0, "sessions.max-per-address must not be negative")

	if _, err := events.ParseFailurePolicy(c.Events.FailurePolicy); err != nil {
		errs = append(errs, err.Error())
	}

	seen := typeutil.NewSet[string]()
	for _, game := range c.Games {
		check(game.ID != "", "games: game %q has an empty id", game.Name)
		check(!seen.Contain(game.ID), "games: duplicate game id %q", game.ID)
		seen.Insert(game.ID)
	}

	if len(errs) > 0 {
		return errors.Newf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FailurePolicy 返回事件总线的失败策略，调用前应已通过 Validate。
func (c *Config) FailurePolicy() events.FailurePolicy {
	policy, _ := events.ParseFailurePolicy(c.Events.FailurePolicy)
	return policy
}

// AcceptorConfig 由 TCP 配置生成连接层配置，WebSocket 监听共用这组限制。
func (c *Config) AcceptorConfig() acceptor.Config {
	acc := acceptor.DefaultConfig()
	acc.MaxConnections = c.TCP.MaxConnections
	acc.ReadTimeout = c.TCP.ReadTimeout
	acc.WriteTimeout = c.TCP.WriteTimeout
	acc.SendQueueSize = c.TCP.SendQueueSize
	acc.MaxFrameSize = c.TCP.MaxFrameSize
	acc.WorkerExpiry = c.TCP.WorkerExpiry
	acc.Path = c.WebSocket.Path
	return acc
}
