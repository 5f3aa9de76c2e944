package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/models"
)

const (
	defaultAlertCooldown = 5 * time.Minute
	defaultAlertTag      = "farm-alert"
	notifyTimeout        = 10 * time.Second
)

// ErrNotificationDenied is logged when the facility refuses authorization.
var ErrNotificationDenied = errors.New("notification permission denied")

// Notifier is the external notification facility.
type Notifier interface {
	RequestPermission(ctx context.Context) (bool, error)
	Show(ctx context.Context, n models.Notification) error
}

// AlertEngine checks readings against thresholds and sends at most one
// notification per tag per cooldown window.
type AlertEngine struct {
	notifier Notifier
	cooldown time.Duration
	events   EventRecorder
	metrics  *metrics.Metrics
	log      *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time

	permOnce  sync.Once
	permitted bool

	inflight sync.WaitGroup
}

// NewAlertEngine builds an engine. A nil notifier behaves as a denied facility.
func NewAlertEngine(n Notifier, cooldown time.Duration, events EventRecorder, m *metrics.Metrics, log *logger.Logger) *AlertEngine {
	if cooldown <= 0 {
		cooldown = defaultAlertCooldown
	}
	return &AlertEngine{
		notifier: n,
		cooldown: cooldown,
		events:   events,
		metrics:  m,
		log:      log,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Check returns the notifications a reading warrants, ignoring cooldown.
// Every comparison is strict; EC is compared in mS/cm.
func Check(r models.SensorReading, t models.Thresholds) []models.Notification {
	ec := r.ECMilliSiemens()
	data := map[string]any{
		"reading_id": r.ID,
		"ec_ms":      ec,
		"watertemp":  r.WaterTempC,
		"waterlevel": r.WaterLevelMm,
	}

	var out []models.Notification
	add := func(tag, title, body string) {
		out = append(out, models.Notification{Title: title, Body: body, Tag: tag, RequireInteraction: true, Data: data})
	}

	if ec < t.ECMin {
		add(models.TagECLow, "EC level low",
			fmt.Sprintf("EC level is below acceptable range: %.2f mS/cm (Min: %.2f mS/cm)", ec, t.ECMin))
	}
	if ec > t.ECMax {
		add(models.TagECHigh, "EC level high",
			fmt.Sprintf("EC level is above acceptable range: %.2f mS/cm (Max: %.2f mS/cm)", ec, t.ECMax))
	}
	if r.WaterTempC < t.TempMinC {
		add(models.TagTempLow, "Water temperature low",
			fmt.Sprintf("Water temperature is %.1f °C (Min: %.1f °C)", r.WaterTempC, t.TempMinC))
	}
	if r.WaterTempC > t.TempMaxC {
		add(models.TagTempHigh, "Water temperature high",
			fmt.Sprintf("Water temperature is %.1f °C (Max: %.1f °C)", r.WaterTempC, t.TempMaxC))
	}
	if r.WaterLevelMm < t.WaterCriticalMm {
		add(models.TagWaterCritical, "Water level critical",
			fmt.Sprintf("Tank level is %.0f mm (Critical: %.0f mm)", r.WaterLevelMm, t.WaterCriticalMm))
	}
	if r.WaterLevelMm > t.WaterHighMm {
		add(models.TagWaterHigh, "Water level high",
			fmt.Sprintf("Tank level is %.0f mm (High: %.0f mm)", r.WaterLevelMm, t.WaterHighMm))
	}
	return out
}

// Evaluate runs every check and hands the ones outside their cooldown to the
// notifier. Delivery is asynchronous; the returned slice lists what was
// dispatched.
func (e *AlertEngine) Evaluate(ctx context.Context, r models.SensorReading, t models.Thresholds) []models.Notification {
	var sent []models.Notification
	for _, n := range Check(r, t) {
		if n.Tag == "" {
			n.Tag = defaultAlertTag
		}
		if !e.claim(n.Tag) {
			e.log.Debugw("alert_suppressed", "tag", n.Tag)
			continue
		}
		if !e.authorized(ctx) {
			continue
		}
		e.dispatch(n)
		sent = append(sent, n)
	}
	return sent
}

// claim is the cooldown check-then-set. The timestamp is taken before
// delivery so a slow notifier never yields two attempts in one window.
func (e *AlertEngine) claim(tag string) bool {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	if last, ok := e.lastSent[tag]; ok && now.Sub(last) < e.cooldown {
		return false
	}
	e.lastSent[tag] = now
	return true
}

// authorized asks the facility once per process and caches the answer.
func (e *AlertEngine) authorized(ctx context.Context) bool {
	e.permOnce.Do(func() {
		if e.notifier == nil {
			return
		}
		ok, err := e.notifier.RequestPermission(ctx)
		if err != nil {
			e.log.Warnw("notification_permission_failed", "err", err)
			return
		}
		e.permitted = ok
	})
	if !e.permitted {
		e.log.Debugw("alert_not_sent", "err", ErrNotificationDenied)
	}
	return e.permitted
}

func (e *AlertEngine) dispatch(n models.Notification) {
	e.metrics.Alerts.WithLabelValues(n.Tag).Inc()
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.notifier.Show(ctx, n); err != nil {
			e.log.Warnw("notification_failed", "tag", n.Tag, "err", err)
			return
		}
		if e.events != nil {
			e.events.Record(ctx, models.EventAlert, n.Body, map[string]any{"tag": n.Tag})
		}
	}()
}

// Wait blocks until every in-flight delivery has finished.
func (e *AlertEngine) Wait() { e.inflight.Wait() }
