package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"farm_telemetry/internal/models"

	"github.com/google/uuid"
)

type ReadingSQLite struct {
	db *sql.DB
}

func NewReadingSQLite(db *sql.DB) *ReadingSQLite {
	return &ReadingSQLite{db: db}
}

const (
	defaultPageSize = 50
	maxPageSize     = 500

	insertReadingSQL = `
		INSERT INTO sensor_readings (id, device_id, ec_val, watertemp, waterlevel, stale, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`

	selectReadingCols = `SELECT id, device_id, ec_val, watertemp, waterlevel, stale, observed_at FROM sensor_readings`
)

// Insert writes a completed reading once. Re-inserting the same id is a no-op.
func (r *ReadingSQLite) Insert(ctx context.Context, rd models.SensorReading) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	if rd.ObservedAt.IsZero() {
		rd.ObservedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, insertReadingSQL,
		rd.ID,
		rd.DeviceID,
		rd.ECMicroSiemens,
		rd.WaterTempC,
		rd.WaterLevelMm,
		rd.Stale,
		toMillis(rd.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("insert reading %s: %w", rd.ID, err)
	}
	return nil
}

// Latest returns up to limit readings, newest first.
func (r *ReadingSQLite) Latest(ctx context.Context, limit int) ([]models.SensorReading, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	rows, err := r.db.QueryContext(ctx, selectReadingCols+` ORDER BY observed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	defer rows.Close()
	return scanReadings(rows, limit)
}

// ListRange returns one page of readings in [from, to], newest first. Zero bounds are open.
func (r *ReadingSQLite) ListRange(ctx context.Context, from, to time.Time, page, pageSize int) (models.ReadingPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "observed_at >= ?")
		args = append(args, toMillis(from))
	}
	if !to.IsZero() {
		conds = append(conds, "observed_at <= ?")
		args = append(args, toMillis(to))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sensor_readings`+where, args...).Scan(&total); err != nil {
		return models.ReadingPage{}, fmt.Errorf("count readings: %w", err)
	}

	q := selectReadingCols + where + ` ORDER BY observed_at DESC LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, q, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return models.ReadingPage{}, fmt.Errorf("query reading range: %w", err)
	}
	defer rows.Close()

	out, err := scanReadings(rows, pageSize)
	if err != nil {
		return models.ReadingPage{}, err
	}
	return models.ReadingPage{Readings: out, Page: page, PageSize: pageSize, Total: total}, nil
}

func scanReadings(rows *sql.Rows, capHint int) ([]models.SensorReading, error) {
	out := make([]models.SensorReading, 0, capHint)
	for rows.Next() {
		var (
			rd       models.SensorReading
			observed int64
		)
		if err := rows.Scan(&rd.ID, &rd.DeviceID, &rd.ECMicroSiemens, &rd.WaterTempC, &rd.WaterLevelMm, &rd.Stale, &observed); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		rd.ObservedAt = fromMillis(observed)
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
