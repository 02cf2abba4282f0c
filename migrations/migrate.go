package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed cache/*.sql outbox/*.sql
var embedMigrations embed.FS

// Migration targets. The engine keeps two SQLite files: the entity cache
// (expendable, recreated on corruption) and the outbox (durable queues,
// never recreated automatically).
const (
	TargetCache  = "cache"
	TargetOutbox = "outbox"
)

// Migrate applies the pending schema migrations for the given target to db.
func Migrate(db *sql.DB, target string) error {
	if db == nil {
		return fmt.Errorf("migration error: db is nil")
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("migration error setting dialect for db: %w", err)
	}

	if err := goose.Up(db, target); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}
