package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigLevels(t *testing.T) {
	cases := []struct {
		level  string
		expect string
	}{
		{"", "info"},
		{"trace", "debug"},
		{"TRACE", "debug"},
		{"warn", "warn"},
		{"Error", "error"},
		{"silent", "fatal"},
	}
	for _, c := range cases {
		cfg := &Config{Level: c.level}
		assert.Equal(t, c.expect, cfg.zapLevel(), c.level)
	}
	assert.True(t, (&Config{Level: "SILENT"}).IsSilent())
	assert.False(t, (&Config{Level: "info"}).IsSilent())
}

func TestInitLoggerSilent(t *testing.T) {
	lg, props, err := InitLogger(&Config{Level: LevelSilent, Stdout: true})
	require.NoError(t, err)
	require.NotNil(t, lg)
	assert.Equal(t, zapcore.FatalLevel, props.Level.Level())
	lg.Info("dropped")
}

func TestInitLoggerFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Level:  "debug",
		Format: FormatJSON,
		File:   FileLogConfig{RootPath: dir, Filename: "nohub.log"},
	}
	lg, _, err := InitLogger(cfg)
	require.NoError(t, err)
	lg.Info("hello", FieldSession("94kwM3zUaNCn"))
	require.NoError(t, lg.Sync())

	data, err := os.ReadFile(filepath.Join(dir, "nohub.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session":"94kwM3zUaNCn"`)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestInitLoggerDirectoryAsFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "logs"), 0o755))
	_, _, err := InitLogger(&Config{Level: "info", File: FileLogConfig{RootPath: dir, Filename: "logs"}})
	assert.Error(t, err)
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, zapcore.AddSync(os.Stderr))
	assert.Error(t, err)
}

func TestCtxFields(t *testing.T) {
	require.NoError(t, UseTestLogger(t, "debug"))

	ctx := WithModule(context.Background(), "lobbies")
	assert.NotNil(t, Ctx(ctx))
	assert.NotSame(t, Ctx(context.Background()), Ctx(ctx))
	//nolint:staticcheck
	assert.NotNil(t, Ctx(nil))

	ctx, span := NewIntentContext("nohub", "test")
	defer span.End()
	Ctx(ctx).Info("intent context", zap.Bool("ok", true))
}

func TestUseTestLogger(t *testing.T) {
	prev := L()
	var bound *MLogger
	t.Run("bound", func(t *testing.T) {
		require.NoError(t, UseTestLogger(t, "debug"))
		assert.NotSame(t, prev, L())

		var b Binder
		bound = b.Bind("lobbies", "service")
		bound.ForLobby("mLG-7Wbx").Debug("lobby created")
	})
	assert.Same(t, prev, L())
	bound.Info("after the test finished")

	assert.Error(t, UseTestLogger(t, "loud"))
}

// observe 把全局 Logger 换成 observer，测试结束时恢复。
func observe(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	core, logs := observer.New(level)
	prevL, prevP := L(), _globalP.Load().(*ZapProperties)
	ReplaceGlobals(zap.New(core), &ZapProperties{Core: core, Level: zap.NewAtomicLevelAt(level)})
	t.Cleanup(func() { ReplaceGlobals(prevL, prevP) })
	return logs
}

func TestEntityLoggers(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	With(FieldModule("sessions")).
		ForSession("94kwM3zUaNCn").
		ForGame("").
		ForLobby("mLG-7Wbx").
		Info("session joined lobby")
	With().ForGame("q6jNtaTP").With(zap.Int("count", 2)).Debug("listed lobbies")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{
		FieldNameModule:  "sessions",
		FieldNameSession: "94kwM3zUaNCn",
		FieldNameLobby:   "mLG-7Wbx",
	}, entries[0].ContextMap())
	assert.Equal(t, map[string]any{
		FieldNameGame: "q6jNtaTP",
		"count":       int64(2),
	}, entries[1].ContextMap())
}

// countingCore 记录 With 的调用次数。
type countingCore struct {
	zapcore.Core
	withs *int
}

func (c countingCore) With(fields []zapcore.Field) zapcore.Core {
	*c.withs++
	return countingCore{Core: c.Core.With(fields), withs: c.withs}
}

func TestDeferredFields(t *testing.T) {
	inner, logs := observer.New(zapcore.InfoLevel)
	withs := 0
	l := &MLogger{Logger: zap.New(countingCore{Core: inner, withs: &withs})}

	lobby := l.ForLobby("mLG-7Wbx")
	lobby.Debug("disabled")
	assert.Equal(t, 0, withs)

	lobby.Info("first")
	lobby.Info("second")
	assert.Equal(t, 1, withs)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "mLG-7Wbx", logs.All()[1].ContextMap()[FieldNameLobby])
}

func TestRateGroup(t *testing.T) {
	logger := With(FieldComponent("test")).WithRateGroup("test.rate", 1, 1)
	assert.True(t, logger.RatedInfo(1, "first"))
	assert.False(t, logger.RatedInfo(1, "second"))

	// 同名分组共享额度。
	other := With(FieldComponent("other")).WithRateGroup("test.rate", 1, 1)
	assert.False(t, other.RatedWarn(1, "third"))
}

func TestRatedLevels(t *testing.T) {
	logs := observe(t, zapcore.InfoLevel)

	logger := With(FieldComponent("test")).WithRateGroup("test.levels", 10, 10)
	assert.True(t, logger.RatedDebug(1, "below level"))
	assert.True(t, logger.ForSession("94kwM3zUaNCn").RatedWarn(1, "send queue full"))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "94kwM3zUaNCn", entries[0].ContextMap()[FieldNameSession])
}

func TestBinder(t *testing.T) {
	logs := observe(t, zapcore.DebugLevel)

	var b Binder
	assert.NotNil(t, b.Logger())

	l := b.Bind("lobbies", "notifier", zap.Int("shard", 1))
	assert.Same(t, l, b.Logger())
	b.Logger().Info("bound")

	var hub Binder
	hub.Bind("hub", "")
	hub.Logger().Info("assembled")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]any{
		FieldNameModule:    "lobbies",
		FieldNameComponent: "notifier",
		"shard":            int64(1),
	}, entries[0].ContextMap())
	assert.Equal(t, map[string]any{FieldNameModule: "hub"}, entries[1].ContextMap())

	other := With(FieldComponent("custom"))
	b.SetLogger(other)
	assert.Same(t, other, b.Logger())
}
