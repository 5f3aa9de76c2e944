package service

import (
	"context"
	"sync"
	"time"

	"farm_telemetry/internal/frame"
	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/models"

	"github.com/google/uuid"
)

// Aggregator joins EC/temperature and water-level frames into complete
// readings. With maxWait > 0 a half-filled join is flushed as a stale reading
// once it has waited that long, using the last known value for the missing
// group.
type Aggregator struct {
	// emitMu is held from taking a reading until emit returns, so readings
	// reach the sink in the order they were taken.
	emitMu       sync.Mutex
	mu           sync.Mutex
	state        models.PartialReading
	pendingSince time.Time

	deviceID string
	maxWait  time.Duration
	emit     func(models.SensorReading)
	log      *logger.Logger
	now      func() time.Time
}

func NewAggregator(deviceID string, maxWait time.Duration, emit func(models.SensorReading), log *logger.Logger) *Aggregator {
	return &Aggregator{
		deviceID: deviceID,
		maxWait:  maxWait,
		emit:     emit,
		log:      log,
		now:      time.Now,
	}
}

// Accept folds one decoded frame into the join. It reports whether a
// reading was emitted. Frames of unknown kind are ignored.
func (a *Aggregator) Accept(f frame.Frame) bool {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	a.mu.Lock()
	switch f.Kind {
	case frame.KindECTemp:
		a.state.ECMicroSiemens = f.ECMicroSiemens
		a.state.WaterTempC = f.WaterTempC
		a.state.HaveECTemp = true
		a.state.SeenECTemp = true
	case frame.KindWaterLevel:
		a.state.WaterLevelMm = f.WaterLevelMm
		a.state.HaveWaterLevel = true
		a.state.SeenWaterLevel = true
	default:
		a.mu.Unlock()
		return false
	}

	now := a.now()
	if !a.state.Complete() {
		if a.pendingSince.IsZero() {
			a.pendingSince = now
		}
		a.mu.Unlock()
		return false
	}
	r := a.takeLocked(now, false)
	a.mu.Unlock()

	a.emit(r)
	return true
}

// Expire flushes a join that has been half-filled for at least maxWait.
// Nothing is emitted unless both groups have reported at least once.
func (a *Aggregator) Expire(now time.Time) bool {
	if a.maxWait <= 0 {
		return false
	}
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	a.mu.Lock()
	if !a.state.Pending() || a.pendingSince.IsZero() || now.Sub(a.pendingSince) < a.maxWait {
		a.mu.Unlock()
		return false
	}
	if !a.state.SeenECTemp || !a.state.SeenWaterLevel {
		a.mu.Unlock()
		return false
	}
	waited := now.Sub(a.pendingSince)
	r := a.takeLocked(now, true)
	a.mu.Unlock()

	a.log.Infow("reading_emitted_stale", "reading_id", r.ID, "waited", waited.String())
	a.emit(r)
	return true
}

// Run checks for expired joins until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	if a.maxWait <= 0 {
		return
	}
	every := a.maxWait / 4
	if every < time.Second {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Expire(a.now())
		}
	}
}

// State returns a copy of the accumulator.
func (a *Aggregator) State() models.PartialReading {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// takeLocked builds the reading and clears the gating flags. Values stay.
// ObservedAt has millisecond precision, matching what the store keeps.
func (a *Aggregator) takeLocked(now time.Time, stale bool) models.SensorReading {
	r := models.SensorReading{
		ID:             uuid.NewString(),
		DeviceID:       a.deviceID,
		ECMicroSiemens: a.state.ECMicroSiemens,
		WaterTempC:     a.state.WaterTempC,
		WaterLevelMm:   a.state.WaterLevelMm,
		Stale:          stale,
		ObservedAt:     now.UTC().Truncate(time.Millisecond),
	}
	a.state.HaveECTemp = false
	a.state.HaveWaterLevel = false
	a.pendingSince = time.Time{}
	return r
}
