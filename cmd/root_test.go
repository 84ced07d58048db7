package main

import (
	"context"
	"errors"
	"strconv"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/repository"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

func TestRepositoryOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing optional configured", func(t *testing.T) {
		opts, cleanup, err := repositoryOptions(ctx, &config.Config{}, logger.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.Len(t, opts, 1)
	})

	t.Run("redis enabled adds the cache", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}}
		opts, cleanup, err := repositoryOptions(ctx, cfg, logger.NewNop())
		require.NoError(t, err)
		defer cleanup()
		assert.Len(t, opts, 2)
	})

	t.Run("unreachable redis fails", func(t *testing.T) {
		cfg := &config.Config{Redis: config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}}
		_, _, err := repositoryOptions(ctx, cfg, logger.NewNop())
		assert.ErrorContains(t, err, "connect redis")
	})
}

func TestReadinessChecks(t *testing.T) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=127.0.0.1 port=5432 user=altmur dbname=altmur sslmode=disable",
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	set, err := repository.NewSet(db)
	require.NoError(t, err)

	down := errors.New("connection refused")
	checks := readinessChecks(func(context.Context) error { return down }, set)

	require.Contains(t, checks, "postgres")
	require.Contains(t, checks, "schema")
	assert.ErrorIs(t, checks["postgres"](context.Background()), down)
	assert.NoError(t, checks["schema"](context.Background()))
}
