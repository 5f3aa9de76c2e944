package service

import (
	"context"
	"errors"
	"time"

	"farm_telemetry/internal/models"
)

// ErrValidation is the parent of every input validation failure.
var ErrValidation = errors.New("validation failed")

// Authorization verifies bearer tokens for the mutating API.
type Authorization interface {
	ParseToken(accessToken string) (string, error)
}

// Live exposes the reconciled current reading.
type Live interface {
	View() models.LiveView
}

// Readings exposes the persisted reading history.
type Readings interface {
	ListRange(ctx context.Context, from, to time.Time, page, pageSize int) (models.ReadingPage, error)
}

// Schedules is CRUD over schedule rules.
type Schedules interface {
	List(ctx context.Context) ([]models.ScheduleRule, error)
	Create(ctx context.Context, r models.ScheduleRule) (models.ScheduleRule, error)
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// Relays covers manual commands, fertigation and reported relay status.
type Relays interface {
	Set(ctx context.Context, relayID int, on bool) error
	StartFertigation(ctx context.Context, minutes float64) (models.ArmedTimer, error)
	StopFertigation(ctx context.Context) error
	Status() (models.RelayStatus, bool)
}

// Thresholds reads and updates alert bounds.
type Thresholds interface {
	Current() models.Thresholds
	Update(ctx context.Context, t models.Thresholds) (models.Thresholds, error)
}

// EventLog exposes append-only automation logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.AutomationEvent, error)
}

// Service aggregates what the HTTP layer needs.
type Service struct {
	Live
	Readings
	Schedules
	Relays
	Thresholds
	EventLog
	Authorization
}
