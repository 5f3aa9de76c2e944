package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"farm_telemetry/internal/models"

	"github.com/google/uuid"
)

type ScheduleSQLite struct {
	db *sql.DB
}

func NewScheduleSQLite(db *sql.DB) *ScheduleSQLite {
	return &ScheduleSQLite{db: db}
}

const (
	insertScheduleSQL = `
		INSERT INTO schedules (id, name, hour, minute, ampm, relay_id, state, duration_s, days, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectSchedulesSQL = `
		SELECT id, name, hour, minute, ampm, relay_id, state, duration_s, days, enabled, created_at
		FROM schedules ORDER BY created_at ASC
	`
)

func marshalDays(days []string) (string, error) {
	if days == nil {
		days = []string{}
	}
	b, err := json.Marshal(days)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalDays(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var days []string
	if err := json.Unmarshal([]byte(s), &days); err != nil {
		return nil, err
	}
	return days, nil
}

// Create stores a new rule, assigning id and created_at when missing.
func (r *ScheduleSQLite) Create(ctx context.Context, rule models.ScheduleRule) (models.ScheduleRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	days, err := marshalDays(rule.DaysOfWeek)
	if err != nil {
		return models.ScheduleRule{}, err
	}

	_, err = r.db.ExecContext(ctx, insertScheduleSQL,
		rule.ID,
		rule.Name,
		rule.Hour,
		rule.Minute,
		rule.AmPm,
		rule.RelayID,
		rule.DesiredState,
		rule.DurationSeconds,
		days,
		rule.Enabled,
		toMillis(rule.CreatedAt),
	)
	if err != nil {
		return models.ScheduleRule{}, fmt.Errorf("insert schedule: %w", err)
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	return rule, nil
}

func (r *ScheduleSQLite) List(ctx context.Context) ([]models.ScheduleRule, error) {
	rows, err := r.db.QueryContext(ctx, selectSchedulesSQL)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []models.ScheduleRule
	for rows.Next() {
		var (
			rule    models.ScheduleRule
			days    string
			created int64
		)
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Hour, &rule.Minute, &rule.AmPm, &rule.RelayID,
			&rule.DesiredState, &rule.DurationSeconds, &days, &rule.Enabled, &created); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		if rule.DaysOfWeek, err = unmarshalDays(days); err != nil {
			return nil, fmt.Errorf("schedule %s days: %w", rule.ID, err)
		}
		rule.CreatedAt = fromMillis(created)
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScheduleSQLite) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete schedule %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func (r *ScheduleSQLite) SetEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedules SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("update schedule %s: %w", id, err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return nil
}
