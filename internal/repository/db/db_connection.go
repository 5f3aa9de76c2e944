package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

// Times are stored as UTC epoch milliseconds.
const schemaSensorReadings = `
CREATE TABLE IF NOT EXISTS sensor_readings (
    id TEXT PRIMARY KEY,
    device_id TEXT NOT NULL,
    ec_val REAL NOT NULL,
    watertemp REAL NOT NULL,
    waterlevel REAL NOT NULL,
    stale BOOLEAN NOT NULL DEFAULT 0,
    observed_at INTEGER NOT NULL
);
`

const indexSensorReadingsObserved = `
CREATE INDEX IF NOT EXISTS idx_sensor_readings_observed ON sensor_readings (observed_at DESC);
`

const schemaSchedules = `
CREATE TABLE IF NOT EXISTS schedules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    hour INTEGER NOT NULL,
    minute INTEGER NOT NULL,
    ampm TEXT NOT NULL,
    relay_id INTEGER NOT NULL,
    state TEXT NOT NULL,
    duration_s INTEGER NOT NULL DEFAULT 0,
    days TEXT NOT NULL,
    enabled BOOLEAN NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
`

const schemaSensorConfig = `
CREATE TABLE IF NOT EXISTS sensor_config (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    ec_min REAL NOT NULL,
    ec_max REAL NOT NULL,
    tank_max REAL NOT NULL,
    temp_min REAL NOT NULL,
    temp_max REAL NOT NULL,
    water_critical REAL NOT NULL,
    water_high REAL NOT NULL,
    updated_at INTEGER NOT NULL
);
`

const schemaArmedTimers = `
CREATE TABLE IF NOT EXISTS armed_timers (
    timer_key TEXT PRIMARY KEY,
    rule_id TEXT,
    relay_id INTEGER NOT NULL,
    deadline INTEGER NOT NULL
);
`

const schemaAutomationEvents = `
CREATE TABLE IF NOT EXISTS automation_events (
    id TEXT PRIMARY KEY,
    occurred_at INTEGER NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const indexAutomationEventsOccurred = `
CREATE INDEX IF NOT EXISTS idx_automation_events_occurred ON automation_events (occurred_at);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaSensorReadings,
		indexSensorReadingsObserved,
		schemaSchedules,
		schemaSensorConfig,
		schemaArmedTimers,
		schemaAutomationEvents,
		indexAutomationEventsOccurred,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
