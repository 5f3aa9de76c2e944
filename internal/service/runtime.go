package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"farm_telemetry/config"
	"farm_telemetry/internal/clients"
	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/repository"

	"github.com/robfig/cron/v3"
)

// Deps are the collaborators the runtime is built from. Optional ones may be nil.
type Deps struct {
	Config     *config.Config
	Repos      *repository.Repository
	Dispatcher CommandDispatcher
	Publisher  FeedPublisher  // optional
	Subscriber FeedSubscriber // optional; nil means pull-only freshness
	Mirror     ReadingMirror  // optional
	Notifier   Notifier       // optional; nil means alerts stay silent
	Metrics    *metrics.Metrics
	Log        *logger.Logger
}

// Runtime owns the long-lived components and their goroutines.
type Runtime struct {
	History    *History
	Live       *Synchronizer
	Ingest     *Ingest
	Alerts     *AlertEngine
	Engine     *ScheduleEngine
	Schedules  *ScheduleService
	Relays     *RelayService
	Thresholds *ThresholdService
	Events     *EventLogService
	Auth       *TokenVerifier

	readings repository.ReadingRepo
	janitor  *cron.Cron
	events   config.EventsConfig
	log      *logger.Logger
	wg       sync.WaitGroup
}

func NewRuntime(d Deps) *Runtime {
	cfg := d.Config
	loc, err := cfg.Location()
	if err != nil {
		d.Log.Warnw("schedule_timezone_invalid", "timezone", cfg.Schedule.Timezone, "err", err)
		loc = time.Local
	}

	events := NewEventLogService(d.Repos.Events, d.Log.Component("events"))
	thresholds := NewThresholdService(d.Repos.Thresholds, d.Log.Component("thresholds"))
	history := NewHistory(cfg.History.Capacity)
	live := NewSynchronizer(history, d.Repos.Readings, d.Subscriber, thresholds.Current, SyncConfig{
		PullInterval: cfg.Live.PullInterval,
		QuietWindow:  cfg.Live.QuietWindow,
		FreshPush:    cfg.Live.FreshPush,
		FreshPull:    cfg.Live.FreshPull,
	}, d.Metrics, d.Log.Component("live"))
	alerts := NewAlertEngine(d.Notifier, cfg.Alerts.Cooldown, events, d.Metrics, d.Log.Component("alerts"))
	engine := NewScheduleEngine(d.Repos.Schedules, d.Repos.Timers, d.Dispatcher, events, loc, d.Metrics, d.Log.Component("schedule"))
	relays := NewRelayService(engine, events, cfg.Schedule.RelayCount, cfg.Fertigation.Relay, d.Log.Component("relays"))

	rt := &Runtime{
		History:    history,
		Live:       live,
		Alerts:     alerts,
		Engine:     engine,
		Schedules:  NewScheduleService(d.Repos.Schedules, engine, cfg.Schedule.RelayCount),
		Relays:     relays,
		Thresholds: thresholds,
		Events:     events,
		readings:   d.Repos.Readings,
		janitor:    cron.New(cron.WithLocation(loc)),
		events:     cfg.Events,
		log:        d.Log,
	}
	rt.Ingest = NewIngest(IngestDeps{
		DeviceID:   cfg.DeviceID,
		MaxWait:    cfg.Aggregator.MaxWait,
		Live:       live,
		Readings:   d.Repos.Readings,
		Feed:       d.Publisher,
		Mirror:     d.Mirror,
		Alerts:     alerts,
		Thresholds: thresholds.Current,
		Relays:     relays,
		Metrics:    d.Metrics,
		Log:        d.Log.Component("ingest"),
	})
	if cfg.JWTSecret != "" {
		rt.Auth = NewTokenVerifier(cfg.JWTSecret)
	}
	return rt
}

// Service returns the HTTP-facing view of the runtime.
func (rt *Runtime) Service() *Service {
	s := &Service{
		Live:       rt.Live,
		Readings:   rt.readings,
		Schedules:  rt.Schedules,
		Relays:     rt.Relays,
		Thresholds: rt.Thresholds,
		EventLog:   rt.Events,
	}
	if rt.Auth != nil {
		s.Authorization = rt.Auth
	}
	return s
}

// Start loads persisted state and launches the background loops. They stop
// when ctx is cancelled; call Stop afterwards to wait for them.
func (rt *Runtime) Start(ctx context.Context, msgs <-chan clients.Message) error {
	if err := rt.Thresholds.Load(ctx); err != nil {
		rt.log.Warnw("thresholds_load_failed", "err", err)
	}
	if err := rt.Engine.Start(ctx); err != nil {
		return err
	}
	if rt.events.Retention > 0 {
		prune := func() { rt.Events.Prune(ctx, rt.events.Retention) }
		if _, err := rt.janitor.AddFunc(rt.events.PruneSchedule, prune); err != nil {
			rt.Engine.Stop()
			return fmt.Errorf("events.prune_schedule %q: %w", rt.events.PruneSchedule, err)
		}
		prune()
		rt.janitor.Start()
	}

	rt.wg.Add(3)
	go func() {
		defer rt.wg.Done()
		rt.Live.Run(ctx)
	}()
	go func() {
		defer rt.wg.Done()
		rt.Ingest.Run(ctx)
	}()
	go func() {
		defer rt.wg.Done()
		rt.Ingest.Consume(ctx, msgs)
	}()
	return nil
}

// Stop halts the schedule tick and auto-off timers, then waits for the
// loops started by Start and for in-flight notifications.
func (rt *Runtime) Stop() {
	<-rt.janitor.Stop().Done()
	rt.Engine.Stop()
	rt.wg.Wait()
	rt.Alerts.Wait()
}
