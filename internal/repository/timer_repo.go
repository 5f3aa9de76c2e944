package repository

import (
	"context"
	"database/sql"
	"fmt"

	"farm_telemetry/internal/models"
)

// TimerSQLite persists armed auto-off deadlines.
type TimerSQLite struct {
	db *sql.DB
}

func NewTimerSQLite(db *sql.DB) *TimerSQLite {
	return &TimerSQLite{db: db}
}

const upsertTimerSQL = `
	INSERT INTO armed_timers (timer_key, rule_id, relay_id, deadline)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(timer_key) DO UPDATE SET
		rule_id=excluded.rule_id,
		relay_id=excluded.relay_id,
		deadline=excluded.deadline
`

func (r *TimerSQLite) Save(ctx context.Context, t models.ArmedTimer) error {
	_, err := r.db.ExecContext(ctx, upsertTimerSQL, t.Key, t.RuleID, t.RelayID, toMillis(t.Deadline))
	if err != nil {
		return fmt.Errorf("save timer %s: %w", t.Key, err)
	}
	return nil
}

func (r *TimerSQLite) List(ctx context.Context) ([]models.ArmedTimer, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT timer_key, rule_id, relay_id, deadline FROM armed_timers ORDER BY deadline ASC`)
	if err != nil {
		return nil, fmt.Errorf("query timers: %w", err)
	}
	defer rows.Close()

	var out []models.ArmedTimer
	for rows.Next() {
		var (
			t        models.ArmedTimer
			deadline int64
		)
		if err := rows.Scan(&t.Key, &t.RuleID, &t.RelayID, &deadline); err != nil {
			return nil, fmt.Errorf("scan timer: %w", err)
		}
		t.Deadline = fromMillis(deadline)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Delete removes a timer row. Missing rows are not an error.
func (r *TimerSQLite) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM armed_timers WHERE timer_key = ?`, key); err != nil {
		return fmt.Errorf("delete timer %s: %w", key, err)
	}
	return nil
}
