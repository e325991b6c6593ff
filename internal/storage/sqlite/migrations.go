package sqlite

import (
	"database/sql"
	"fmt"
)

// migration is one additive, idempotent schema change applied after the
// base schema. Each checks pragma_table_info before altering so it is safe
// to run against a database that already has the column (teacher pattern:
// migrations/027_gate_columns.go).
type migration struct {
	name string
	run  func(*sql.DB) error
}

// migrations is intentionally empty at this revision: schema.go already
// contains every column this release needs. Future additive changes land
// here rather than editing schema.go, so existing databases upgrade in
// place instead of being recreated.
var migrations []migration

// RunMigrations applies every migration in order inside the applied_migrations
// bookkeeping table, skipping ones already recorded as applied.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS applied_migrations (
		name TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create applied_migrations table: %w", err)
	}

	for _, m := range migrations {
		var done bool
		err := db.QueryRow(`SELECT COUNT(*) > 0 FROM applied_migrations WHERE name = ?`, m.name).Scan(&done)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.name, err)
		}
		if done {
			continue
		}
		if err := m.run(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		if _, err := db.Exec(`INSERT INTO applied_migrations (name) VALUES (?)`, m.name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
	}
	return nil
}

// columnExists reports whether table has a column named col.
func columnExists(db *sql.DB, table, col string) (bool, error) {
	var exists bool
	err := db.QueryRow(`SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?`, table, col).Scan(&exists)
	return exists, err
}
