package storage

import (
	"database/sql"

	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS power_readings (
	       id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	       device_id          TEXT NOT NULL,
	       timestamp          INTEGER NOT NULL,
	       voltage            REAL,
	       electric_current   REAL,
	       power              REAL,
	       electricity_of_day REAL,
	       power_on           BOOLEAN,
	       created_at         DATETIME DEFAULT CURRENT_TIMESTAMP
	   );
	   CREATE INDEX IF NOT EXISTS idx_power_readings_device_time
	       ON power_readings (device_id, timestamp DESC);
	   CREATE INDEX IF NOT EXISTS idx_power_readings_time
	       ON power_readings (timestamp);`

	insertReadingSQL = `
    INSERT INTO power_readings (
        device_id, timestamp,
        voltage, electric_current, power, electricity_of_day,
        power_on
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	readingColumns = `id, device_id, timestamp, voltage, electric_current,
        power, electricity_of_day, power_on, created_at`
)

// initSchema creates the schema on a new database and refuses databases
// written by a different schema version. Databases created before version
// tracking existed are adopted as the current version.
func initSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	version, err := getSchemaVersion(db)
	if err != nil {
		return err
	}

	if version != 0 && version != SchemaVersion {
		return errFactory.WithData(ErrSchemaVersion, struct {
			Found    int
			Expected int
		}{
			Found:    version,
			Expected: SchemaVersion,
		})
	}

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback schema transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Phase string
			Error string
		}{
			Phase: "create_tables",
			Error: err.Error(),
		})
	}

	if version == 0 {
		if _, err := tx.Exec(`
            INSERT INTO schema_versions (version, applied_at)
            VALUES (?, datetime('now'))
        `, SchemaVersion); err != nil {
			return errFactory.WithData(ErrSchemaInitFailed, struct {
				Phase string
				Error string
			}{
				Phase: "record_version",
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Debug().
		Int("version", SchemaVersion).
		Bool("created", version == 0).
		Msg("Schema ready")

	return nil
}

// getSchemaVersion returns the recorded schema version, or 0 when none is
// recorded yet.
func getSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

	exists, err := tableExists(db, "schema_versions")
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	return version, nil
}

func tableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errors.New().WithData(ErrSchemaInitFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}
	return exists, nil
}
