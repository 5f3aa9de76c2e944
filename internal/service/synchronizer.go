package service

import (
	"context"
	"io"
	"sync"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/models"
)

// ReadingSource answers the periodic pull.
type ReadingSource interface {
	Latest(ctx context.Context, limit int) ([]models.SensorReading, error)
}

// FeedSubscriber delivers insert/update events from the persistence side.
// handle is called from a single goroutine in delivery order.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, handle func(models.FeedEvent)) (io.Closer, error)
}

type SyncConfig struct {
	PullInterval time.Duration
	QuietWindow  time.Duration
	FreshPush    time.Duration
	FreshPull    time.Duration
}

func (c SyncConfig) withDefaults() SyncConfig {
	if c.PullInterval <= 0 {
		c.PullInterval = 30 * time.Second
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = 2 * time.Minute
	}
	if c.FreshPush <= 0 {
		c.FreshPush = 2 * time.Minute
	}
	if c.FreshPull <= 0 {
		c.FreshPull = 5 * time.Minute
	}
	return c
}

// Synchronizer reconciles pushed readings with periodic pulls into one LiveView.
type Synchronizer struct {
	history    *History
	source     ReadingSource
	feed       FeedSubscriber
	thresholds func() models.Thresholds
	cfg        SyncConfig
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time

	mu         sync.Mutex
	loading    bool
	pulled     bool
	sub        io.Closer
	lastPushAt time.Time
	lastSource string
}

// NewSynchronizer builds a synchronizer. With a nil feed it runs pull-only and
// judges freshness against the longer pull window.
func NewSynchronizer(h *History, source ReadingSource, feed FeedSubscriber, thresholds func() models.Thresholds,
	cfg SyncConfig, m *metrics.Metrics, log *logger.Logger) *Synchronizer {
	if thresholds == nil {
		thresholds = models.DefaultThresholds
	}
	return &Synchronizer{
		history:    h,
		source:     source,
		feed:       feed,
		thresholds: thresholds,
		cfg:        cfg.withDefaults(),
		metrics:    m,
		log:        log,
		now:        time.Now,
		loading:    true,
		lastSource: models.SourceNone,
	}
}

// Run performs the initial pull, subscribes to the feed and then re-pulls on
// the ticker whenever push has been quiet. The subscription is closed before
// Run returns.
func (s *Synchronizer) Run(ctx context.Context) {
	if err := s.Pull(ctx); err != nil {
		s.log.Warnw("live_initial_pull_failed", "err", err)
	}
	s.subscribe(ctx)
	defer s.unsubscribe()

	t := time.NewTicker(s.cfg.PullInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.subscribe(ctx)
			if s.quiet() {
				if err := s.Pull(ctx); err != nil {
					s.log.Warnw("live_pull_failed", "err", err)
				}
			}
			s.metrics.LiveConnected.Set(boolGauge(s.IsConnected()))
		}
	}
}

func (s *Synchronizer) subscribe(ctx context.Context) {
	if s.feed == nil {
		return
	}
	s.mu.Lock()
	active := s.sub != nil
	s.mu.Unlock()
	if active {
		return
	}

	sub, err := s.feed.Subscribe(ctx, s.HandleFeed)
	if err != nil {
		s.log.Warnw("live_subscribe_failed", "err", err)
		return
	}
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	s.log.Infow("live_subscribed")
}

func (s *Synchronizer) unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	if sub == nil {
		return
	}
	if err := sub.Close(); err != nil {
		s.log.Warnw("live_unsubscribe_failed", "err", err)
	}
}

func (s *Synchronizer) quiet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPushAt.IsZero() || s.now().Sub(s.lastPushAt) >= s.cfg.QuietWindow
}

// HandleFeed applies one pushed change.
func (s *Synchronizer) HandleFeed(ev models.FeedEvent) {
	switch ev.Op {
	case models.FeedInsert:
		s.ApplyInsert(ev.Reading)
	case models.FeedUpdate:
		s.ApplyUpdate(ev.Reading)
	default:
		s.log.Debugw("live_feed_op_ignored", "op", ev.Op)
	}
}

// ApplyInsert prepends a pushed or locally aggregated reading unless its id
// is already present.
func (s *Synchronizer) ApplyInsert(r models.SensorReading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPushAt = s.now()
	if !s.history.Insert(r) {
		return false
	}
	s.lastSource = models.SourcePush
	return true
}

// ApplyUpdate replaces a reading in place without reordering.
func (s *Synchronizer) ApplyUpdate(r models.SensorReading) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPushAt = s.now()
	if !s.history.Update(r) {
		return false
	}
	s.lastSource = models.SourcePush
	return true
}

// Pull fetches the latest window. The first successful pull always applies;
// later ones apply only when the window changed and the latest timestamp
// does not move backwards.
func (s *Synchronizer) Pull(ctx context.Context) error {
	rs, err := s.source.Latest(ctx, s.history.Capacity())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.loading = false
		return err
	}
	if !s.pulled {
		s.pulled = true
		s.loading = false
		s.history.Replace(rs)
		if len(rs) > 0 {
			s.lastSource = models.SourcePull
		}
		return nil
	}

	cur, have := s.history.Latest()
	if !have {
		if len(rs) > 0 {
			s.history.Replace(rs)
			s.lastSource = models.SourcePull
		}
		return nil
	}
	if len(rs) == 0 || rs[0].ObservedAt.Before(cur.ObservedAt) {
		return nil
	}
	if len(rs) == s.history.Len() && rs[0].ObservedAt.Equal(cur.ObservedAt) {
		return nil
	}
	s.history.Replace(rs)
	s.lastSource = models.SourcePull
	return nil
}

// IsConnected reports whether the device is actively reporting: the latest
// reading is fresh and, when a feed is configured, the subscription is up.
func (s *Synchronizer) IsConnected() bool {
	latest, ok := s.history.Latest()
	if !ok {
		return false
	}
	age := s.now().Sub(latest.ObservedAt)
	if s.feed == nil {
		return age < s.cfg.FreshPull
	}
	s.mu.Lock()
	active := s.sub != nil
	s.mu.Unlock()
	return active && age < s.cfg.FreshPush
}

func (s *Synchronizer) View() models.LiveView {
	s.mu.Lock()
	v := models.LiveView{Source: s.lastSource, Loading: s.loading}
	s.mu.Unlock()

	v.History = s.history.Snapshot()
	if len(v.History) > 0 {
		latest := v.History[0]
		v.LatestReading = &latest
		v.ECMilliSiemens = latest.ECMilliSiemens()
		v.WaterLevelPct = s.thresholds().WaterLevelPercent(latest.WaterLevelMm)
	}
	v.IsConnected = s.IsConnected()
	return v
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
