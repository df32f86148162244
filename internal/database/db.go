// internal/database/db.go
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DB is the PostgreSQL store. It implements store.Store and also serves as the
// historian's sink.
type DB struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

var _ store.Store = (*DB)(nil)

// New connects to connStr, checks the connection and applies pending migrations.
func New(ctx context.Context, connStr string, logger logrus.FieldLogger) (*DB, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := runMigrations(pool, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.WithField("host", config.ConnConfig.Host).WithField("database", config.ConnConfig.Database).Info("connected to database")
	return &DB{pool: pool, log: logger}, nil
}

func runMigrations(pool *pgxpool.Pool, logger logrus.FieldLogger) error {
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}
	logger.Info("migrations completed successfully")
	return nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// InTx runs fn in a read-committed transaction. Game rows read through the
// transaction are locked until it ends.
func (db *DB) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// View runs fn in a read-only repeatable-read transaction, so every read
// inside it sees the same committed snapshot.
func (db *DB) View(ctx context.Context, fn func(tx store.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return pgx.BeginTxFunc(ctx, db.pool, opts, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, readOnly: true})
	})
}

type pgTx struct {
	tx       pgx.Tx
	readOnly bool
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return err
}
