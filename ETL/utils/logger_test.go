package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestETLLogger_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core), false)

	logger.With("table", "dim_customer").Warn("пропущено %d строк", 3)
	logger.Debug("не попадает в лог")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "пропущено 3 строк", entries[0].Message)
	assert.Equal(t, "dim_customer", entries[0].ContextMap()["table"])
}

func TestETLLogger_LogETLComplete(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core), true)

	logger.LogETLComplete(time.Now().Add(-time.Second), 2, 1, 3, 2)

	entries := logs.FilterMessageSnippet("2 клиентов, 1 товаров, 3 дат, 2 продаж").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "duration")
}

func TestNewETLLogger_WritesDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, err := NewETLLogger(true, dir)
	require.NoError(t, err)
	logger.Debug("отладка %s", "включена")
	logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "etl_log_"+time.Now().Format("2006-01-02")+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "отладка включена")
}
