//go:build integration

// Package storagetest starts a disposable PostgreSQL for integration tests.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// Tables lists every table, children first.
var Tables = []string{
	"bans", "pinned_messages", "attachments", "messages",
	"user_sessions", "room_members", "join_links", "rooms", "users",
}

// StartPostgres runs a PostgreSQL container and returns its DSN and a
// function that terminates it.
func StartPostgres(ctx context.Context) (string, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("altmur_test"),
		postgres.WithUsername("altmur"),
		postgres.WithPassword("altmur"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return "", nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	terminate := func() {
		_ = container.Terminate(context.Background())
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	return dsn, terminate, nil
}

// TB is the part of testing.TB that Truncate needs; *rapid.T satisfies it too.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Truncate empties every table and resets the id sequences.
func Truncate(t TB, db *gorm.DB) {
	t.Helper()
	stmt := fmt.Sprintf("TRUNCATE %s RESTART IDENTITY CASCADE", strings.Join(Tables, ", "))
	if err := db.Exec(stmt).Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
}
