package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoface/adslot/pkg/jsonx"
)

func TestZerologLogger(t *testing.T) {
	logger, err := NewDevelopment(Zerolog)
	require.NoError(t, err)

	logger.Info("Test info message", "key1", "value1", "key2", 123)
	logger.Debug("Test debug message", "debug_key", "debug_value")
	logger.Warn("Test warn message", "warn_key", "warn_value")
	logger.Error("Test error message", "error_key", "error_value")

	var out bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "zerolog_prod.log")
	prodLogger, err := New(Zerolog, Config{
		Environment: Prod,
		LogLevel:    "info",
		LogFile:     logFile,
		MaxSize:     1,
		MaxBackups:  1,
		MaxAge:      1,
		Output:      &out,
	})
	require.NoError(t, err)

	prodLogger.With("slot_id", "slot-1").Info("Production test message", "env", "production")
	prodLogger.Debug("below level")
	require.NoError(t, prodLogger.Sync())

	var entry map[string]any
	require.NoError(t, jsonx.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry))
	assert.Equal(t, "Production test message", entry["message"])
	assert.Equal(t, "slot-1", entry["slot_id"])
	assert.Contains(t, entry["caller"], "logger_test.go")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Production test message")
	assert.NotContains(t, string(data), "below level")
}

func TestZapLogger(t *testing.T) {
	logger, err := NewDevelopment(Zap)
	require.NoError(t, err)

	logger.Info("Test info message", "key1", "value1", "key2", 123)
	logger.Debug("Test debug message", "debug_key", "debug_value")

	var out bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "zap_prod.log")
	prodLogger, err := NewZapLogger(Config{
		Environment: Prod,
		LogLevel:    "info",
		LogFile:     logFile,
		MaxSize:     1,
		MaxBackups:  1,
		MaxAge:      1,
		Output:      &out,
	})
	require.NoError(t, err)

	prodLogger.With("slot_id", "slot-1").Info("Production test message", "env", "production")
	_ = prodLogger.Sync()

	var entry map[string]any
	require.NoError(t, jsonx.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry))
	assert.Equal(t, "Production test message", entry["msg"])
	assert.Equal(t, "slot-1", entry["slot_id"])

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Production test message")
	assert.Contains(t, string(data), "slot-1")
}

func TestDevLoggerSkipsFile(t *testing.T) {
	var out bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "dev.log")
	l, err := New(Zap, Config{Environment: Dev, LogFile: logFile, Output: &out})
	require.NoError(t, err)

	l.Info("console only")
	_ = l.Sync()

	assert.Contains(t, out.String(), "console only")
	assert.NoFileExists(t, logFile)
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = (*ZerologLogger)(nil)
	var _ Logger = (*ZapLogger)(nil)
	var _ Logger = Nop()
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(LoggerType("logrus"), DefaultConfig())
	assert.Error(t, err)
}

func TestNopAndOrDefault(t *testing.T) {
	nop := Nop()
	nop.Info("dropped", "k", "v")
	assert.Equal(t, nop, nop.With("k", "v"))
	assert.NoError(t, nop.Sync())

	assert.Equal(t, Default, OrDefault(nil))
	assert.Equal(t, nop, OrDefault(nop))
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, Dev, config.Environment)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 100, config.MaxSize)
	assert.Equal(t, os.Stdout, config.output())
	assert.Nil(t, config.rotatingFile())
}

func TestEachPair(t *testing.T) {
	got := map[string]interface{}{}
	eachPair([]interface{}{"a", 1, 2, "two", "dangling"}, func(k string, v interface{}) {
		got[k] = v
	})
	assert.Equal(t, map[string]interface{}{"a": 1, "2": "two", "dangling": nil}, got)
	assert.Len(t, zapFields([]interface{}{"a", 1, "b"}), 2)
}
