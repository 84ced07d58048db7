//go:build integration

package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/events"
	"github.com/Gopher0727/AltMur/internal/models"
	"github.com/Gopher0727/AltMur/internal/storage/storagetest"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

var testDSN string

func TestMain(m *testing.M) {
	dsn, terminate, err := storagetest.StartPostgres(context.Background())
	if err != nil {
		panic(err)
	}
	testDSN = dsn
	code := m.Run()
	terminate()
	os.Exit(code)
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := NewProvider(&config.PostgresConfig{
		URL:             testDSN,
		MaxIdleConns:    2,
		MaxOpenConns:    5,
		ConnMaxLifetime: time.Minute,
		SlowThreshold:   time.Second,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	require.NoError(t, p.Migrate(context.Background(), MigrateOptions{}))
	storagetest.Truncate(t, p.DB())
	return p
}

func TestProvider_PingAndPool(t *testing.T) {
	p := newTestProvider(t)
	require.NoError(t, p.Ping(context.Background()))

	sqlDB, err := p.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 5, sqlDB.Stats().MaxOpenConnections)
}

func TestProvider_Migrate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	m := p.DB().Migrator()

	for _, model := range models.All() {
		assert.True(t, m.HasTable(model), "%T", model)
	}
	assert.True(t, m.HasConstraint(&models.UserSession{}, "User"))
	assert.True(t, m.HasConstraint(&models.Message{}, "Parent"))
	assert.False(t, m.HasIndex(&models.RoomMember{}, uniqueMembershipIndex))

	require.NoError(t, p.Migrate(ctx, MigrateOptions{UniqueMembership: true}))
	assert.True(t, m.HasIndex(&models.RoomMember{}, uniqueMembershipIndex))

	require.NoError(t, p.Migrate(ctx, MigrateOptions{UniqueMembership: true}), "migrate is idempotent")

	require.NoError(t, p.Migrate(ctx, MigrateOptions{}))
	assert.False(t, m.HasIndex(&models.RoomMember{}, uniqueMembershipIndex))
}

func TestProvider_Scope(t *testing.T) {
	p := newTestProvider(t)

	var pid1, pid2 int
	err := p.Scope(context.Background(), func(db *gorm.DB) error {
		if err := db.Raw("SELECT pg_backend_pid()").Scan(&pid1).Error; err != nil {
			return err
		}
		return db.Raw("SELECT pg_backend_pid()").Scan(&pid2).Error
	})
	require.NoError(t, err)
	assert.Equal(t, pid1, pid2, "scope pins one connection")

	sentinel := errors.New("stop")
	err = p.Scope(context.Background(), func(db *gorm.DB) error { return sentinel })
	assert.ErrorIs(t, err, sentinel)

	sqlDB, _ := p.DB().DB()
	assert.Zero(t, sqlDB.Stats().InUse, "connection returned to the pool")
}

func TestProvider_Transaction(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	flushed := 0
	err := p.Transaction(ctx, func(tx *gorm.DB) error {
		events.OutboxFrom(tx.Statement.Context).Defer(func() { flushed++ })
		return tx.Create(&models.Room{Name: "committed"}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, 1, flushed)

	err = p.Transaction(ctx, func(tx *gorm.DB) error {
		events.OutboxFrom(tx.Statement.Context).Defer(func() { flushed++ })
		if err := tx.Create(&models.Room{Name: "rolled back"}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")
	assert.Equal(t, 1, flushed, "actions of a rolled back transaction are discarded")

	var names []string
	require.NoError(t, p.Session(ctx).Model(&models.Room{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"committed"}, names)
}
