package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Gopher0727/AltMur/config"
	"github.com/Gopher0727/AltMur/internal/events"
	logger "github.com/Gopher0727/AltMur/middleware/log"
)

// Provider owns the connection pool and hands out sessions bound to one
// logical unit of work.
type Provider struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewProvider 初始化 PostgreSQL 连接池
func NewProvider(cfg *config.PostgresConfig, log *logger.Logger) (*Provider, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}
	return Open(postgres.New(postgres.Config{DSN: dsn}), cfg, log)
}

// Open is NewProvider over an explicit dialector.
func Open(dialector gorm.Dialector, cfg *config.PostgresConfig, log *logger.Logger) (*Provider, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, cfg.SlowThreshold, cfg.Debug),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层 sql.DB 对象以设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Provider{db: db, log: log}, nil
}

// DB returns the root handle. Prefer Session for request-scoped work.
func (p *Provider) DB() *gorm.DB {
	return p.db
}

// Session returns a handle bound to ctx.
func (p *Provider) Session(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// Scope runs fn on one dedicated pooled connection and returns it to the
// pool afterwards, whether fn succeeds, fails or panics.
func (p *Provider) Scope(ctx context.Context, fn func(db *gorm.DB) error) error {
	return p.db.WithContext(ctx).Connection(fn)
}

// Transaction runs fn in one transaction, committed when fn returns nil and
// rolled back otherwise. Repositories built on the handle given to fn run
// their mutations as savepoints, and their post-commit side effects wait for
// this commit.
func (p *Provider) Transaction(ctx context.Context, fn func(tx *gorm.DB) error, opts ...*sql.TxOptions) error {
	txCtx, outbox := events.WithOutbox(ctx)
	err := p.db.WithContext(txCtx).Transaction(fn, opts...)
	if err != nil {
		outbox.Discard()
		return err
	}
	outbox.Flush()
	return nil
}

func (p *Provider) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (p *Provider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		p.log.Warn("failed to close database", zap.Error(err))
		return err
	}
	return nil
}
