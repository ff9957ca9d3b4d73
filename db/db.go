package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // Import postgres driver
)

// Options - параметры пула соединений хранилища живых матчей.
// Каждый резидентный матч пишет снапшоты своим writer'ом, поэтому пул
// ограничивает число одновременных сохранений.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
	// SkipMigrate отключает создание таблиц live_match_* при подключении.
	SkipMigrate bool
}

func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    25,
		MaxIdleConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
}

// withDefaults заполняет нулевые поля значениями по умолчанию.
func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = d.MaxOpenConns
	}
	if o.MaxIdleConns <= 0 || o.MaxIdleConns > o.MaxOpenConns {
		o.MaxIdleConns = o.MaxOpenConns
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = d.PingTimeout
	}
	return o
}

// Connect открывает пул, проверяет соединение и применяет схему живых матчей.
func Connect(ctx context.Context, dsn string, opts Options, logger *slog.Logger) (*sql.DB, error) {
	opts = opts.withDefaults()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database handle: %w", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	if err = db.PingContext(pingCtx); err != nil {
		closeQuietly(db, logger)
		return nil, fmt.Errorf("failed to ping database within %v: %w", opts.PingTimeout, err)
	}

	if !opts.SkipMigrate {
		if err := Migrate(ctx, db); err != nil {
			closeQuietly(db, logger)
			return nil, fmt.Errorf("failed to migrate live schema: %w", err)
		}
	}

	logger.Info("database connection established",
		slog.Int("max_open_conns", opts.MaxOpenConns),
		slog.Bool("migrated", !opts.SkipMigrate))
	return db, nil
}

func closeQuietly(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Error("failed to close database handle", slog.Any("error", err))
	}
}
