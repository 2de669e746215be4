package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"

	"go.uber.org/zap"

	"github.com/mb4540/gift-of-time-edu-rag/internal/core"
)

//go:embed scripts/initdb.sql
var initdbSQL string

// schemaVersion is bumped whenever scripts/initdb.sql changes in a way that
// must be re-applied.
const schemaVersion = "1"

// Bootstrap applies the embedded schema once. A version row in schema_meta
// makes the call idempotent across restarts.
func (c *Client) Bootstrap(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	if err != nil {
		return core.NewError(core.CodeStorage, "ensure schema_meta", err)
	}

	var current string
	err = c.db.QueryRowContext(ctx,
		`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return core.NewError(core.CodeStorage, "read schema version", err)
	}
	if current == schemaVersion {
		c.log.Debug("database schema up to date", zap.String("version", current))
		return nil
	}

	if _, err := c.db.ExecContext(ctx, initdbSQL); err != nil {
		return core.NewError(core.CodeStorage, "apply schema", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO schema_meta (key, value) VALUES ('schema_version', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, schemaVersion)
	if err != nil {
		return core.NewError(core.CodeStorage, "record schema version", err)
	}
	c.log.Info("database schema bootstrapped", zap.String("version", schemaVersion))
	return nil
}
