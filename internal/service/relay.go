package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/models"
)

// RelayService handles manual relay commands, the fertigation cycle and the
// controller's reported relay status.
type RelayService struct {
	engine      *ScheduleEngine
	events      EventRecorder
	relayCount  int
	fertigation int
	log         *logger.Logger

	mu        sync.RWMutex
	status    models.RelayStatus
	hasStatus bool
}

func NewRelayService(engine *ScheduleEngine, events EventRecorder, relayCount, fertigationRelay int, log *logger.Logger) *RelayService {
	return &RelayService{
		engine:      engine,
		events:      events,
		relayCount:  relayCount,
		fertigation: fertigationRelay,
		log:         log,
	}
}

func (s *RelayService) checkRelay(relayID int) error {
	if relayID < 1 || relayID > s.relayCount {
		return fmt.Errorf("%w: relay must be 1-%d", ErrValidation, s.relayCount)
	}
	return nil
}

// Set switches a relay by hand. Any armed auto-off on that relay is cancelled
// first so it cannot undo this command later.
func (s *RelayService) Set(ctx context.Context, relayID int, on bool) error {
	if err := s.checkRelay(relayID); err != nil {
		return err
	}
	s.engine.CancelRelay(ctx, relayID)
	if err := s.engine.dispatch(ctx, relayID, on); err != nil {
		return err
	}
	s.events.Record(ctx, models.EventRelayCommand, fmt.Sprintf("relay %d %s", relayID, onOff(on)),
		map[string]any{"relay": relayID, "on": on})
	return nil
}

// MaxFertigationMinutes bounds a single fertigation cycle.
const MaxFertigationMinutes = 60

// StartFertigation switches the fertigation relay on and arms its auto-off
// after the given number of minutes. Fractional minutes are allowed.
func (s *RelayService) StartFertigation(ctx context.Context, minutes float64) (models.ArmedTimer, error) {
	if !(minutes > 0 && minutes <= MaxFertigationMinutes) {
		return models.ArmedTimer{}, fmt.Errorf("%w: minutes must be within (0, %d]", ErrValidation, MaxFertigationMinutes)
	}
	d := time.Duration(minutes * float64(time.Minute))

	s.engine.CancelRelay(ctx, s.fertigation)
	if err := s.engine.dispatch(ctx, s.fertigation, true); err != nil {
		return models.ArmedTimer{}, err
	}
	t := s.engine.ArmManual(ctx, s.fertigation, d)
	s.events.Record(ctx, models.EventFertigation, fmt.Sprintf("fertigation started for %.2f min", minutes),
		map[string]any{"relay": s.fertigation, "minutes": minutes, "deadline": t.Deadline})
	return t, nil
}

// StopFertigation clears the pending auto-off and switches the relay off now.
func (s *RelayService) StopFertigation(ctx context.Context) error {
	s.engine.CancelRelay(ctx, s.fertigation)
	if err := s.engine.dispatch(ctx, s.fertigation, false); err != nil {
		return err
	}
	s.events.Record(ctx, models.EventFertigation, "fertigation stopped", map[string]any{"relay": s.fertigation})
	return nil
}

func (s *RelayService) UpdateStatus(st models.RelayStatus) {
	s.mu.Lock()
	s.status = st
	s.hasStatus = true
	s.mu.Unlock()
}

// Status returns the last reported status; ok is false before the first report.
func (s *RelayService) Status() (models.RelayStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.hasStatus
}

func onOff(on bool) string {
	if on {
		return models.StateOn
	}
	return models.StateOff
}
