package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// RunSqliteMigrations applies all embedded SQLite files inside one transaction.
func RunSqliteMigrations(ctx context.Context, db *sql.DB) error {
	files, err := load(SqliteFS, "sqlite")
	if err != nil {
		return err
	}
	stmts, err := statements(files)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, f := range files {
		for _, stmt := range stmts[f.name] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply migration %s: %w", f.name, err)
			}
		}
	}
	return tx.Commit()
}
