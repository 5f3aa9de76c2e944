package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"
)

// maxLogLimit caps a single log query.
const maxLogLimit = 1000

// LogFilter supports history filtering by time range, type and relay.
type LogFilter struct {
	From  time.Time // inclusive; zero means no lower bound
	To    time.Time // inclusive; zero means no upper bound
	Type  string    // "", SCHEDULE_FIRED, AUTO_OFF, RELAY_COMMAND, ALERT, FERTIGATION
	Relay int       // 0 means any relay
	Limit int       // newest N events; 0 means all, capped at maxLogLimit
}

// EventRecorder appends automation events. Failures are logged, never returned.
type EventRecorder interface {
	Record(ctx context.Context, typ, description string, meta map[string]any)
}

type EventLogService struct {
	eventRepo repository.EventRepo
	log       *logger.Logger
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo, log *logger.Logger) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, log: log, now: time.Now}
}

var (
	errInvalidTimeRange = fmt.Errorf("%w: from must be <= to", ErrValidation)
	errInvalidLogQuery  = fmt.Errorf("%w: relay and limit must not be negative", ErrValidation)
)

func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// toEventQuery normalizes the filter into a repository query.
func toEventQuery(f LogFilter) (repository.EventQuery, error) {
	q := repository.EventQuery{
		From:  normalizeToUTC(f.From),
		To:    normalizeToUTC(f.To),
		Type:  strings.TrimSpace(strings.ToUpper(f.Type)),
		Relay: f.Relay,
		Limit: f.Limit,
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.From.After(q.To) {
		return repository.EventQuery{}, errInvalidTimeRange
	}
	if q.Relay < 0 || q.Limit < 0 {
		return repository.EventQuery{}, errInvalidLogQuery
	}
	if q.Limit > maxLogLimit {
		q.Limit = maxLogLimit
	}
	return q, nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.AutomationEvent, error) {
	q, err := toEventQuery(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, q)
}

func (s *EventLogService) Record(ctx context.Context, typ, description string, meta map[string]any) {
	ev := models.AutomationEvent{
		OccurredAt:  s.now().UTC(),
		Type:        typ,
		Description: description,
	}
	if meta != nil {
		ev.Metadata = meta
	}
	if err := s.eventRepo.Append(ctx, ev); err != nil {
		s.log.Warnw("event_append_failed", "type", typ, "err", err)
	}
}

// Prune drops events older than retention. A non-positive retention keeps everything.
func (s *EventLogService) Prune(ctx context.Context, retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := s.now().Add(-retention)
	n, err := s.eventRepo.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.log.Warnw("event_prune_failed", "cutoff", cutoff, "err", err)
		return
	}
	if n > 0 {
		s.log.Infow("events_pruned", "count", n, "cutoff", cutoff)
	}
}
