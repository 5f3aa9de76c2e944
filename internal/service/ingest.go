package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"farm_telemetry/internal/clients"
	"farm_telemetry/internal/frame"
	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"
)

const (
	ingestQueueSize = 256
	persistTimeout  = 10 * time.Second
	drainTimeout    = 5 * time.Second
)

// FeedPublisher announces persisted readings to push subscribers.
type FeedPublisher interface {
	Publish(ctx context.Context, ev models.FeedEvent) error
}

// ReadingMirror receives a copy of every persisted reading.
type ReadingMirror interface {
	Mirror(ctx context.Context, r models.SensorReading) error
}

// Ingest runs the data path: bus payload -> decoder -> aggregator -> history,
// persistence and alerting. Decoding and aggregation happen on the caller's
// goroutine; persistence and alerting are queued to background workers.
type Ingest struct {
	agg        *Aggregator
	live       *Synchronizer
	readings   repository.ReadingRepo
	feed       FeedPublisher
	mirror     ReadingMirror
	alerts     *AlertEngine
	thresholds func() models.Thresholds
	relays     *RelayService
	metrics    *metrics.Metrics
	log        *logger.Logger

	writeQ chan models.SensorReading
	alertQ chan models.SensorReading
	wg     sync.WaitGroup
}

type IngestDeps struct {
	DeviceID   string
	MaxWait    time.Duration
	Live       *Synchronizer
	Readings   repository.ReadingRepo
	Feed       FeedPublisher
	Mirror     ReadingMirror
	Alerts     *AlertEngine
	Thresholds func() models.Thresholds
	Relays     *RelayService
	Metrics    *metrics.Metrics
	Log        *logger.Logger
}

func NewIngest(d IngestDeps) *Ingest {
	in := &Ingest{
		live:       d.Live,
		readings:   d.Readings,
		feed:       d.Feed,
		mirror:     d.Mirror,
		alerts:     d.Alerts,
		thresholds: d.Thresholds,
		relays:     d.Relays,
		metrics:    d.Metrics,
		log:        d.Log,
		writeQ:     make(chan models.SensorReading, ingestQueueSize),
		alertQ:     make(chan models.SensorReading, ingestQueueSize),
	}
	if in.thresholds == nil {
		in.thresholds = models.DefaultThresholds
	}
	in.agg = NewAggregator(d.DeviceID, d.MaxWait, in.emit, d.Log)
	return in
}

func (in *Ingest) Aggregator() *Aggregator { return in.agg }

// HandlePayload processes one message from the data topic. JSON objects are
// relay status reports; anything else goes to the frame decoder.
func (in *Ingest) HandlePayload(payload []byte) {
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		in.handleRelayStatus(trimmed)
		return
	}

	f, err := frame.Decode(payload)
	if err != nil {
		in.metrics.Frames.WithLabelValues("rejected").Inc()
		if !errors.Is(err, frame.ErrRejected) {
			in.log.Warnw("frame_decode_error", "err", err)
			return
		}
		in.log.Debugw("frame_rejected", "len", len(payload), "err", err)
		return
	}
	in.metrics.Frames.WithLabelValues(f.Kind.String()).Inc()

	switch f.Kind {
	case frame.KindECTemp:
		in.log.Debugw("frame_ec_temp", "ec_us_cm", f.ECMicroSiemens, "temp_c", f.WaterTempC)
	case frame.KindWaterLevel:
		in.log.Debugw("frame_water_level", "level_mm", f.WaterLevelMm)
	}
	in.agg.Accept(f)
}

func (in *Ingest) handleRelayStatus(b []byte) {
	var probe struct {
		Relay1Output *bool `json:"relay1_output"`
	}
	if err := json.Unmarshal(b, &probe); err != nil || probe.Relay1Output == nil {
		in.log.Debugw("data_topic_json_ignored", "err", err)
		return
	}
	var st models.RelayStatus
	if err := json.Unmarshal(b, &st); err != nil {
		in.log.Debugw("relay_status_malformed", "err", err)
		return
	}
	st.ReceivedAt = time.Now().UTC()
	if in.relays != nil {
		in.relays.UpdateStatus(st)
	}
}

// emit is the aggregator's sink. The history update is synchronous so the
// live view never waits on persistence; the rest is queued.
func (in *Ingest) emit(r models.SensorReading) {
	in.metrics.Readings.WithLabelValues(strconv.FormatBool(r.Stale)).Inc()
	in.log.Infow("reading_emitted", "reading_id", r.ID, "ec_us_cm", r.ECMicroSiemens,
		"temp_c", r.WaterTempC, "level_mm", r.WaterLevelMm, "stale", r.Stale)

	if in.live != nil {
		in.live.ApplyInsert(r)
	}
	in.enqueue(in.writeQ, r, "persist")
	if in.alerts != nil {
		in.enqueue(in.alertQ, r, "alert")
	}
}

func (in *Ingest) enqueue(q chan models.SensorReading, r models.SensorReading, name string) {
	select {
	case q <- r:
	default:
		in.log.Warnw("ingest_queue_full", "queue", name, "reading_id", r.ID)
	}
}

// Run starts the persistence and alert workers and the aggregator's expiry
// loop. It returns after ctx is cancelled and the persistence queue drained.
func (in *Ingest) Run(ctx context.Context) {
	in.wg.Add(3)
	go func() {
		defer in.wg.Done()
		in.agg.Run(ctx)
	}()
	go func() {
		defer in.wg.Done()
		in.persistLoop(ctx)
	}()
	go func() {
		defer in.wg.Done()
		in.alertLoop(ctx)
	}()
	in.wg.Wait()
}

func (in *Ingest) persistLoop(ctx context.Context) {
	for {
		select {
		case r := <-in.writeQ:
			in.persist(ctx, r)
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			for {
				select {
				case r := <-in.writeQ:
					in.persist(drainCtx, r)
				default:
					return
				}
			}
		}
	}
}

// persist writes once, then publishes to the feed and mirror only on success.
func (in *Ingest) persist(parent context.Context, r models.SensorReading) {
	ctx, cancel := context.WithTimeout(parent, persistTimeout)
	defer cancel()

	if err := in.readings.Insert(ctx, r); err != nil {
		in.metrics.PersistFailures.Inc()
		in.log.Errorw("reading_persist_failed", "reading_id", r.ID, "err", err)
		return
	}
	if in.feed != nil {
		if err := in.feed.Publish(ctx, models.FeedEvent{Op: models.FeedInsert, Reading: r}); err != nil {
			in.log.Warnw("feed_publish_failed", "reading_id", r.ID, "err", err)
		}
	}
	if in.mirror != nil {
		if err := in.mirror.Mirror(ctx, r); err != nil {
			in.log.Warnw("reading_mirror_failed", "reading_id", r.ID, "err", err)
		}
	}
}

func (in *Ingest) alertLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-in.alertQ:
			sent := in.alerts.Evaluate(ctx, r, in.thresholds())
			for _, n := range sent {
				in.log.Infow("alert_dispatched", "tag", n.Tag, "reading_id", r.ID)
			}
		}
	}
}

// Consume feeds bus messages to HandlePayload one at a time until ctx is
// cancelled or msgs is closed.
func (in *Ingest) Consume(ctx context.Context, msgs <-chan clients.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			in.HandlePayload(m.Payload)
		}
	}
}
