package service

import (
	"context"
	"fmt"
	"strings"

	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"
)

var validDays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ScheduleService is the CRUD surface for rules. Every change reloads the engine.
type ScheduleService struct {
	repo       repository.ScheduleRepo
	engine     *ScheduleEngine
	relayCount int
}

func NewScheduleService(repo repository.ScheduleRepo, engine *ScheduleEngine, relayCount int) *ScheduleService {
	return &ScheduleService{repo: repo, engine: engine, relayCount: relayCount}
}

func (s *ScheduleService) List(ctx context.Context) ([]models.ScheduleRule, error) {
	return s.repo.List(ctx)
}

func (s *ScheduleService) Create(ctx context.Context, r models.ScheduleRule) (models.ScheduleRule, error) {
	r, err := NormalizeRule(r, s.relayCount)
	if err != nil {
		return models.ScheduleRule{}, err
	}
	created, err := s.repo.Create(ctx, r)
	if err != nil {
		return models.ScheduleRule{}, err
	}
	return created, s.engine.Reload(ctx)
}

// Delete removes the rule and any auto-off it armed.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.engine.CancelRule(ctx, id)
	return s.engine.Reload(ctx)
}

func (s *ScheduleService) SetEnabled(ctx context.Context, id string, enabled bool) error {
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return err
	}
	return s.engine.Reload(ctx)
}

// MaxRuleDurationSeconds bounds the auto-off delay of an ON rule (24h).
const MaxRuleDurationSeconds = 24 * 60 * 60

// NormalizeRule validates r and returns it in canonical form: trimmed name,
// upper-case AM/PM, lower-case state and days, zero duration on OFF rules.
func NormalizeRule(r models.ScheduleRule, relayCount int) (models.ScheduleRule, error) {
	r.Name = strings.TrimSpace(r.Name)
	r.AmPm = strings.ToUpper(strings.TrimSpace(r.AmPm))
	r.DesiredState = strings.ToLower(strings.TrimSpace(r.DesiredState))

	if r.Name == "" {
		return r, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if r.Hour < 1 || r.Hour > 12 {
		return r, fmt.Errorf("%w: hour must be 1-12", ErrValidation)
	}
	if r.Minute < 0 || r.Minute > 59 {
		return r, fmt.Errorf("%w: minute must be 0-59", ErrValidation)
	}
	if r.AmPm != "AM" && r.AmPm != "PM" {
		return r, fmt.Errorf("%w: ampm must be AM or PM", ErrValidation)
	}
	if relayCount > 0 && (r.RelayID < 1 || r.RelayID > relayCount) {
		return r, fmt.Errorf("%w: relay_id must be 1-%d", ErrValidation, relayCount)
	}
	switch r.DesiredState {
	case models.StateOn:
		if r.DurationSeconds < 0 || r.DurationSeconds > MaxRuleDurationSeconds {
			return r, fmt.Errorf("%w: duration must be 0-%d seconds", ErrValidation, MaxRuleDurationSeconds)
		}
	case models.StateOff:
		r.DurationSeconds = 0
	default:
		return r, fmt.Errorf("%w: state must be on or off", ErrValidation)
	}

	if len(r.DaysOfWeek) == 0 {
		return r, fmt.Errorf("%w: at least one day is required", ErrValidation)
	}
	days := make([]string, 0, len(r.DaysOfWeek))
	seen := make(map[string]bool, len(r.DaysOfWeek))
	for _, d := range r.DaysOfWeek {
		d = strings.ToLower(strings.TrimSpace(d))
		if !validDays[d] {
			return r, fmt.Errorf("%w: unknown day %q", ErrValidation, d)
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	r.DaysOfWeek = days
	return r, nil
}
