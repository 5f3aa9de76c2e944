package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"farm_telemetry/internal/models"
)

type ThresholdSQLite struct {
	db *sql.DB
}

func NewThresholdSQLite(db *sql.DB) *ThresholdSQLite {
	return &ThresholdSQLite{db: db}
}

const (
	thresholdRowID = 1

	upsertThresholdSQL = `
		INSERT INTO sensor_config (id, ec_min, ec_max, tank_max, temp_min, temp_max, water_critical, water_high, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ec_min=excluded.ec_min,
			ec_max=excluded.ec_max,
			tank_max=excluded.tank_max,
			temp_min=excluded.temp_min,
			temp_max=excluded.temp_max,
			water_critical=excluded.water_critical,
			water_high=excluded.water_high,
			updated_at=excluded.updated_at
	`

	selectThresholdSQL = `
		SELECT ec_min, ec_max, tank_max, temp_min, temp_max, water_critical, water_high, updated_at
		FROM sensor_config WHERE id = ?
	`
)

// Save upserts the single configuration row.
func (r *ThresholdSQLite) Save(ctx context.Context, t models.Thresholds) error {
	ts := t.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertThresholdSQL,
		thresholdRowID,
		t.ECMin,
		t.ECMax,
		t.TankMaxMm,
		t.TempMinC,
		t.TempMaxC,
		t.WaterCriticalMm,
		t.WaterHighMm,
		toMillis(ts),
	)
	if err != nil {
		return fmt.Errorf("upsert thresholds: %w", err)
	}
	return nil
}

// Load returns the stored row; ok is false when nothing has been saved yet.
func (r *ThresholdSQLite) Load(ctx context.Context) (models.Thresholds, bool, error) {
	var (
		t       models.Thresholds
		updated int64
	)
	err := r.db.QueryRowContext(ctx, selectThresholdSQL, thresholdRowID).Scan(
		&t.ECMin, &t.ECMax, &t.TankMaxMm, &t.TempMinC, &t.TempMaxC, &t.WaterCriticalMm, &t.WaterHighMm, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thresholds{}, false, nil
	}
	if err != nil {
		return models.Thresholds{}, false, fmt.Errorf("load thresholds: %w", err)
	}
	t.UpdatedAt = fromMillis(updated)
	return t, true, nil
}
