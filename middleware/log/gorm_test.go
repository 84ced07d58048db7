package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(debug bool) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGormLogger(New(zap.New(core)), 100*time.Millisecond, debug), logs
}

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := WithTraceID(context.Background(), "trace-sql")

	t.Run("error is logged with statement", func(t *testing.T) {
		g, logs := newObservedGormLogger(false)
		g.Trace(ctx, time.Now(), sqlFn(`INSERT INTO "users"`, 0), errors.New("boom"))

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zapcore.ErrorLevel, entry.Level)
		assert.Equal(t, "sql error", entry.Message)
		fields := entry.ContextMap()
		assert.Equal(t, `INSERT INTO "users"`, fields["sql"])
		assert.Equal(t, "gorm", fields["component"])
		assert.Equal(t, "trace-sql", fields["trace_id"])
	})

	t.Run("record not found is ignored", func(t *testing.T) {
		g, logs := newObservedGormLogger(false)
		g.Trace(ctx, time.Now(), sqlFn(`SELECT 1`, 0), gorm.ErrRecordNotFound)
		assert.Zero(t, logs.Len())
	})

	t.Run("slow query is a warning", func(t *testing.T) {
		g, logs := newObservedGormLogger(false)
		g.Trace(ctx, time.Now().Add(-time.Second), sqlFn(`SELECT * FROM "rooms"`, 3), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "slow sql", logs.All()[0].Message)
		assert.EqualValues(t, 3, logs.All()[0].ContextMap()["rows"])
	})

	t.Run("fast query is silent at warn level", func(t *testing.T) {
		g, logs := newObservedGormLogger(false)
		g.Trace(ctx, time.Now(), sqlFn(`SELECT 1`, 1), nil)
		assert.Zero(t, logs.Len())
	})

	t.Run("debug logs every statement", func(t *testing.T) {
		g, logs := newObservedGormLogger(true)
		g.Trace(ctx, time.Now(), sqlFn(`SELECT 1`, 1), nil)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.InfoLevel, logs.All()[0].Level)
		assert.Equal(t, "sql", logs.All()[0].Message)
	})

	t.Run("silent mode drops errors", func(t *testing.T) {
		g, logs := newObservedGormLogger(true)
		g.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), sqlFn(`SELECT 1`, 0), errors.New("boom"))
		assert.Zero(t, logs.Len())
	})
}

func TestGormLogger_Printf(t *testing.T) {
	g, logs := newObservedGormLogger(false)

	g.Info(context.Background(), "hidden %d", 1)
	g.Warn(context.Background(), "replacing callback %s", "create")
	g.Error(context.Background(), "failed %s", "ping")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "replacing callback create", logs.All()[0].Message)
	assert.Equal(t, "failed ping", logs.All()[1].Message)
}
