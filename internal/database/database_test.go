package database

import (
	"context"
	"path/filepath"
	"testing"

	"api_pos/internal/config"
	"api_pos/internal/payment"
	"api_pos/internal/sales"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	db, err := Open(config.Database{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "pos.db")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&sales.Sale{}))
	assert.True(t, db.Migrator().HasTable("sale_items"))
	assert.True(t, db.Migrator().HasTable("mpesa_transactions"))
	assert.True(t, db.Migrator().HasIndex(&payment.Session{}, "CheckoutRequestID"))

	// Idempotent.
	require.NoError(t, Migrate(db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.Database{Driver: "oracle"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestGormLogger_WritesToZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := Open(config.Database{Driver: "sqlite", URL: filepath.Join(t.TempDir(), "pos.db")}, zap.New(core))
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	defer sqlDB.Close()
	require.NoError(t, Migrate(db))

	before := logs.FilterMessage("query failed").Len()

	var sale sales.Sale
	assert.Error(t, db.First(&sale, 42).Error)
	assert.Equal(t, before, logs.FilterMessage("query failed").Len(), "missing rows are not logged as failures")

	assert.Error(t, db.Exec("SELECT * FROM no_such_table").Error)
	failed := logs.FilterMessage("query failed").All()
	require.Len(t, failed, before+1)
	last := failed[len(failed)-1]
	assert.Equal(t, zapcore.ErrorLevel, last.Level)
	assert.Equal(t, "gorm", last.LoggerName)
	assert.Contains(t, last.ContextMap()["sql"], "no_such_table")
}

func TestGormLogger_LogMode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core))

	l.Info(context.Background(), "hidden %d", 1)
	l.LogMode(logger.Info).Info(context.Background(), "shown %d", 2)
	l.LogMode(logger.Silent).Error(context.Background(), "hidden")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "shown 2", logs.All()[0].Message)
}
