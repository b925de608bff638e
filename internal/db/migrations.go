package db

import "fmt"

// Migration is a single schema change applied in version order.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations lists all schema migrations. Versions must be ascending.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "add resolution_strategy to sync_conflicts",
		SQL:         `ALTER TABLE sync_conflicts ADD COLUMN resolution_strategy TEXT NOT NULL DEFAULT ''`,
	},
}

// GetSchemaVersion returns the current schema version from the database.
func (db *DB) GetSchemaVersion() (int, error) {
	var version string
	err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err != nil {
		// Missing row or missing table both mean pre-migration
		return 0, nil
	}
	var v int
	fmt.Sscanf(version, "%d", &v)
	return v, nil
}

func (db *DB) setSchemaVersion(version int) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", version))
	return err
}

// RunMigrations runs any pending migrations and returns how many were applied.
func (db *DB) RunMigrations() (int, error) {
	currentVersion, _ := db.GetSchemaVersion()
	if currentVersion >= SchemaVersion {
		return 0, nil
	}

	var migrationsRun int
	err := db.withWriteLock(func() error {
		_, err := db.conn.Exec(`CREATE TABLE IF NOT EXISTS schema_info (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
		if err != nil {
			return fmt.Errorf("create schema_info: %w", err)
		}

		currentVersion, err := db.GetSchemaVersion()
		if err != nil {
			return fmt.Errorf("get schema version: %w", err)
		}

		for _, migration := range Migrations {
			if migration.Version <= currentVersion {
				continue
			}
			if migration.Version == 2 {
				// Fresh databases already carry the column in the base schema
				exists, err := db.columnExists("sync_conflicts", "resolution_strategy")
				if err != nil {
					return fmt.Errorf("check column resolution_strategy: %w", err)
				}
				if exists {
					if err := db.setSchemaVersion(migration.Version); err != nil {
						return fmt.Errorf("set version %d: %w", migration.Version, err)
					}
					migrationsRun++
					continue
				}
			}
			if _, err := db.conn.Exec(migration.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", migration.Version, migration.Description, err)
			}
			if err := db.setSchemaVersion(migration.Version); err != nil {
				return fmt.Errorf("set version %d: %w", migration.Version, err)
			}
			migrationsRun++
		}

		if currentVersion == 0 {
			return db.setSchemaVersion(SchemaVersion)
		}
		return nil
	})
	return migrationsRun, err
}

// columnExists checks whether a column exists on a table.
func (db *DB) columnExists(table, column string) (bool, error) {
	rows, err := db.conn.Query(fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid, notnull, pk int
			name, ctype      string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
