package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"

	"github.com/robfig/cron/v3"
)

const (
	dispatchTimeout = 10 * time.Second

	// fireGrace is how far past second 0 a tick may land and still fire the
	// minute's rules. lastFired keeps it to one fire per rule per minute.
	fireGrace = 2 * time.Second
)

// CommandDispatcher publishes a relay command on the bus.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, relayID int, on bool) error
}

type armedTimer struct {
	models.ArmedTimer
	timer *time.Timer
}

// ScheduleEngine fires enabled rules on their wall-clock minute and owns the
// auto-off timers, both rule-driven and manual.
type ScheduleEngine struct {
	rulesRepo  repository.ScheduleRepo
	timerRepo  repository.TimerRepo
	dispatcher CommandDispatcher
	events     EventRecorder
	loc        *time.Location
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time

	rulesMu   sync.RWMutex
	rules     []models.ScheduleRule
	lastFired map[string]time.Time

	timersMu sync.Mutex
	timers   map[string]*armedTimer
	stopped  bool

	cron *cron.Cron
}

func NewScheduleEngine(rules repository.ScheduleRepo, timers repository.TimerRepo, d CommandDispatcher,
	events EventRecorder, loc *time.Location, m *metrics.Metrics, log *logger.Logger) *ScheduleEngine {
	if loc == nil {
		loc = time.Local
	}
	return &ScheduleEngine{
		rulesRepo:  rules,
		timerRepo:  timers,
		dispatcher: d,
		events:     events,
		loc:        loc,
		metrics:    m,
		log:        log,
		now:        time.Now,
		lastFired:  make(map[string]time.Time),
		timers:     make(map[string]*armedTimer),
	}
}

func ruleKey(ruleID string) string   { return "rule:" + ruleID }
func manualKey(relayID int) string   { return "manual:" + strconv.Itoa(relayID) }
func weekday(t time.Time) string     { return strings.ToLower(t.Weekday().String()) }
func minuteOf(t time.Time) time.Time { return t.Truncate(time.Minute) }

// Start loads rules, restores persisted timers and starts the one-second
// tick. Activations are computed from the wall clock, not accumulated.
func (e *ScheduleEngine) Start(ctx context.Context) error {
	if err := e.Reload(ctx); err != nil {
		return fmt.Errorf("load schedules: %w", err)
	}
	if err := e.Restore(ctx); err != nil {
		e.log.Warnw("timer_restore_failed", "err", err)
	}

	e.cron = cron.New(cron.WithSeconds(), cron.WithLocation(e.loc))
	if _, err := e.cron.AddFunc("* * * * * *", func() { e.Tick(e.now()) }); err != nil {
		return fmt.Errorf("register schedule tick: %w", err)
	}
	e.cron.Start()
	e.log.Infow("schedule_engine_started", "rules", len(e.Rules()), "location", e.loc.String())
	return nil
}

// Stop halts the tick and every in-memory timer. Persisted timers are kept
// so the next start can restore them.
func (e *ScheduleEngine) Stop() {
	if e.cron != nil {
		<-e.cron.Stop().Done()
	}
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	e.stopped = true
	for key, at := range e.timers {
		at.timer.Stop()
		delete(e.timers, key)
	}
}

// Reload replaces the cached rule set from the store.
func (e *ScheduleEngine) Reload(ctx context.Context) error {
	rules, err := e.rulesRepo.List(ctx)
	if err != nil {
		return err
	}
	e.rulesMu.Lock()
	e.rules = rules
	e.rulesMu.Unlock()
	return nil
}

func (e *ScheduleEngine) Rules() []models.ScheduleRule {
	e.rulesMu.RLock()
	defer e.rulesMu.RUnlock()
	out := make([]models.ScheduleRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Due reports whether rule should fire at now, ignoring the once-per-minute guard.
func Due(rule models.ScheduleRule, now time.Time) bool {
	if !rule.Enabled {
		return false
	}
	if now.Sub(minuteOf(now)) >= fireGrace {
		return false
	}
	return now.Hour() == rule.Hour24() && now.Minute() == rule.Minute && rule.RunsOn(weekday(now))
}

// Tick evaluates every enabled rule against now and fires the due ones.
// It returns how many fired.
func (e *ScheduleEngine) Tick(now time.Time) int {
	now = now.In(e.loc)
	minute := minuteOf(now)

	var due []models.ScheduleRule
	e.rulesMu.Lock()
	for _, r := range e.rules {
		if !Due(r, now) {
			continue
		}
		if last, ok := e.lastFired[r.ID]; ok && last.Equal(minute) {
			continue
		}
		e.lastFired[r.ID] = minute
		due = append(due, r)
	}
	e.rulesMu.Unlock()

	for _, r := range due {
		e.fire(r, now)
	}
	return len(due)
}

func (e *ScheduleEngine) fire(r models.ScheduleRule, now time.Time) {
	on := r.DesiredState == models.StateOn
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	e.metrics.ScheduleFires.Inc()
	e.log.Infow("schedule_fired", "rule_id", r.ID, "name", r.Name, "relay", r.RelayID, "state", r.DesiredState)
	if err := e.dispatch(ctx, r.RelayID, on); err != nil {
		e.log.Errorw("schedule_dispatch_failed", "rule_id", r.ID, "relay", r.RelayID, "err", err)
	}
	e.record(ctx, models.EventScheduleFired, fmt.Sprintf("%s: relay %d %s", r.Name, r.RelayID, r.DesiredState),
		map[string]any{"rule_id": r.ID, "relay": r.RelayID, "state": r.DesiredState})

	if on && r.DurationSeconds > 0 {
		deadline := now.Add(time.Duration(r.DurationSeconds) * time.Second)
		e.arm(ctx, models.ArmedTimer{Key: ruleKey(r.ID), RuleID: r.ID, RelayID: r.RelayID, Deadline: deadline.UTC()}, true)
	}
}

func (e *ScheduleEngine) dispatch(ctx context.Context, relayID int, on bool) error {
	err := e.dispatcher.Dispatch(ctx, relayID, on)
	result := "ok"
	if err != nil {
		result = "error"
	}
	e.metrics.Commands.WithLabelValues(result).Inc()
	return err
}

func (e *ScheduleEngine) record(ctx context.Context, typ, desc string, meta map[string]any) {
	if e.events != nil {
		e.events.Record(ctx, typ, desc, meta)
	}
}

// ArmManual arms an auto-off for a manual cycle on relayID, replacing any
// earlier manual timer on that relay.
func (e *ScheduleEngine) ArmManual(ctx context.Context, relayID int, after time.Duration) models.ArmedTimer {
	t := models.ArmedTimer{Key: manualKey(relayID), RelayID: relayID, Deadline: e.now().Add(after).UTC()}
	e.arm(ctx, t, true)
	return t
}

// arm replaces any timer with the same key. The row is saved before the
// timer starts so an immediate expiry cannot race the insert.
func (e *ScheduleEngine) arm(ctx context.Context, t models.ArmedTimer, persist bool) {
	if persist && e.timerRepo != nil {
		if err := e.timerRepo.Save(ctx, t); err != nil {
			e.log.Warnw("timer_persist_failed", "key", t.Key, "err", err)
		}
	}
	delay := t.Deadline.Sub(e.now())
	if delay < 0 {
		delay = 0
	}

	e.timersMu.Lock()
	if e.stopped {
		e.timersMu.Unlock()
		return
	}
	if prev, ok := e.timers[t.Key]; ok {
		prev.timer.Stop()
	}
	at := &armedTimer{ArmedTimer: t}
	at.timer = time.AfterFunc(delay, func() { e.expire(at) })
	e.timers[t.Key] = at
	e.timersMu.Unlock()

	e.log.Infow("auto_off_armed", "key", t.Key, "relay", t.RelayID, "deadline", t.Deadline)
}

// expire sends the unconditional OFF for a timer that ran out, unless it was
// cancelled or replaced in the meantime.
func (e *ScheduleEngine) expire(at *armedTimer) {
	e.timersMu.Lock()
	if e.stopped || e.timers[at.Key] != at {
		e.timersMu.Unlock()
		return
	}
	delete(e.timers, at.Key)
	e.timersMu.Unlock()

	e.autoOff(at.ArmedTimer)
}

func (e *ScheduleEngine) autoOff(t models.ArmedTimer) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	if err := e.dispatch(ctx, t.RelayID, false); err != nil {
		e.log.Errorw("auto_off_dispatch_failed", "key", t.Key, "relay", t.RelayID, "err", err)
	}
	e.deletePersisted(ctx, t.Key)
	e.record(ctx, models.EventAutoOff, fmt.Sprintf("relay %d off", t.RelayID),
		map[string]any{"key": t.Key, "rule_id": t.RuleID, "relay": t.RelayID})
}

func (e *ScheduleEngine) deletePersisted(ctx context.Context, key string) {
	if e.timerRepo == nil {
		return
	}
	if err := e.timerRepo.Delete(ctx, key); err != nil {
		e.log.Warnw("timer_delete_failed", "key", key, "err", err)
	}
}

// Restore re-arms persisted timers. Deadlines already passed fire now.
func (e *ScheduleEngine) Restore(ctx context.Context) error {
	if e.timerRepo == nil {
		return nil
	}
	ts, err := e.timerRepo.List(ctx)
	if err != nil {
		return err
	}
	now := e.now()
	for _, t := range ts {
		if !t.Deadline.After(now) {
			e.log.Infow("auto_off_overdue", "key", t.Key, "relay", t.RelayID, "deadline", t.Deadline)
			e.autoOff(t)
			continue
		}
		e.arm(ctx, t, false)
	}
	return nil
}

// CancelRelay drops every armed timer that would switch relayID off.
func (e *ScheduleEngine) CancelRelay(ctx context.Context, relayID int) int {
	return e.cancelWhere(ctx, func(t models.ArmedTimer) bool { return t.RelayID == relayID })
}

// CancelRule drops the auto-off armed by ruleID, if any.
func (e *ScheduleEngine) CancelRule(ctx context.Context, ruleID string) int {
	return e.cancelWhere(ctx, func(t models.ArmedTimer) bool { return t.RuleID == ruleID })
}

func (e *ScheduleEngine) cancelWhere(ctx context.Context, match func(models.ArmedTimer) bool) int {
	var keys []string
	e.timersMu.Lock()
	for key, at := range e.timers {
		if match(at.ArmedTimer) {
			at.timer.Stop()
			delete(e.timers, key)
			keys = append(keys, key)
		}
	}
	e.timersMu.Unlock()

	for _, k := range keys {
		e.deletePersisted(ctx, k)
		e.log.Infow("auto_off_cancelled", "key", k)
	}
	return len(keys)
}

// Armed lists the timers currently pending.
func (e *ScheduleEngine) Armed() []models.ArmedTimer {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()
	out := make([]models.ArmedTimer, 0, len(e.timers))
	for _, at := range e.timers {
		out = append(out, at.ArmedTimer)
	}
	return out
}
