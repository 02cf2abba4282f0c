package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bazaarlabs/go-market-sync/internal/config"
	"github.com/bazaarlabs/go-market-sync/internal/logger"
)

// DB wraps an open SQLite handle together with a health flag. When the
// database file was corrupt and the one-shot recovery failed, healthy stays
// false and repositories degrade instead of erroring on every call.
type DB struct {
	*sql.DB
	logger  *logger.Logger
	healthy atomic.Bool
}

// Healthy reports whether the underlying database is usable.
func (db *DB) Healthy() bool {
	return db.healthy.Load()
}

// NewConnectSQLite opens (and if necessary creates) the SQLite database at
// cfg.DSN and verifies it with a ping plus an integrity check.
//
// If the file exists but cannot be opened or fails the integrity check, the
// file is discarded and recreated exactly once. If the recreated database
// also fails, a *DB with Healthy() == false is returned together with
// [ErrStorageUnhealthy]; callers may keep the handle and run in degraded,
// network-only mode.
func NewConnectSQLite(ctx context.Context, cfg config.DB, log *logger.Logger) (*DB, error) {
	conn, err := openAndVerify(ctx, cfg.DSN)
	if err == nil {
		db := &DB{DB: conn, logger: log}
		db.healthy.Store(true)
		return db, nil
	}

	log.Err(err).Str("func", "NewConnectSQLite").Str("dsn", cfg.DSN).
		Msg("database failed verification, attempting one-shot recovery")

	if !isFileDSN(cfg.DSN) {
		return &DB{logger: log}, fmt.Errorf("open in-memory database: %w: %w", ErrStorageUnhealthy, err)
	}

	if rmErr := os.Remove(cfg.DSN); rmErr != nil && !os.IsNotExist(rmErr) {
		log.Err(rmErr).Str("func", "NewConnectSQLite").Msg("error discarding corrupt database file")
		return &DB{logger: log}, fmt.Errorf("discard corrupt database: %w", ErrStorageUnhealthy)
	}

	conn, err = openAndVerify(ctx, cfg.DSN)
	if err != nil {
		log.Err(err).Str("func", "NewConnectSQLite").Msg("recovery failed, storage is unhealthy")
		return &DB{logger: log}, fmt.Errorf("recreate database: %w: %w", ErrStorageUnhealthy, err)
	}

	log.Warn().Str("func", "NewConnectSQLite").Str("dsn", cfg.DSN).
		Msg("database file was corrupt and has been recreated, cached entities were lost")

	db := &DB{DB: conn, logger: log}
	db.healthy.Store(true)
	return db, nil
}

func openAndVerify(ctx context.Context, dsn string) (*sql.DB, error) {
	if isFileDSN(dsn) {
		if err := createLocalDBFileIfNotExists(dsn); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening connection to DB: %w", err)
	}

	if err = conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting database (ping): %w", err)
	}

	var result string
	if err = conn.QueryRowContext(ctx, "PRAGMA quick_check;").Scan(&result); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error running integrity check: %w", err)
	}
	if result != "ok" {
		conn.Close()
		return nil, fmt.Errorf("integrity check failed: %s", result)
	}

	return conn, nil
}

func isFileDSN(dsn string) bool {
	return dsn != "" && dsn != ":memory:" && dsn != "memory"
}

func createLocalDBFileIfNotExists(dbFile string) error {
	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		// if not found - create
		f, err := os.Create(dbFile)
		if err != nil {
			return fmt.Errorf("error creating DB file: %w", err)
		}
		f.Close()
	}

	// file already exists
	return nil
}
