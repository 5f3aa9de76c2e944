package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"farm_telemetry/internal/models"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

type ReadingRepo interface {
	Insert(ctx context.Context, r models.SensorReading) error
	Latest(ctx context.Context, limit int) ([]models.SensorReading, error)
	ListRange(ctx context.Context, from, to time.Time, page, pageSize int) (models.ReadingPage, error)
}

type ScheduleRepo interface {
	List(ctx context.Context) ([]models.ScheduleRule, error)
	Create(ctx context.Context, r models.ScheduleRule) (models.ScheduleRule, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type ThresholdRepo interface {
	Load(ctx context.Context) (models.Thresholds, bool, error)
	Save(ctx context.Context, t models.Thresholds) error
}

type TimerRepo interface {
	Save(ctx context.Context, t models.ArmedTimer) error
	List(ctx context.Context) ([]models.ArmedTimer, error)
	Delete(ctx context.Context, key string) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.AutomationEvent) error
	List(ctx context.Context, q EventQuery) ([]models.AutomationEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Repository struct {
	Readings   ReadingRepo
	Schedules  ScheduleRepo
	Thresholds ThresholdRepo
	Timers     TimerRepo
	Events     EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Readings:   NewReadingSQLite(db),
		Schedules:  NewScheduleSQLite(db),
		Thresholds: NewThresholdSQLite(db),
		Timers:     NewTimerSQLite(db),
		Events:     NewEventSQLite(db),
	}
}

// toMillis and fromMillis store instants as UTC epoch milliseconds, which keeps range filters numeric.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
