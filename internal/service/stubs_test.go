package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/models"
	"farm_telemetry/internal/repository"
)

type command struct {
	relay int
	on    bool
}

type stubDispatcher struct {
	mu   sync.Mutex
	cmds []command
	err  error
}

func (d *stubDispatcher) Dispatch(_ context.Context, relayID int, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, command{relayID, on})
	return d.err
}

func (d *stubDispatcher) commands() []command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]command(nil), d.cmds...)
}

type stubRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *stubRecorder) Record(_ context.Context, typ, _ string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, typ)
}

func (r *stubRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

type memScheduleRepo struct {
	mu    sync.Mutex
	rules []models.ScheduleRule
	err   error
}

func (m *memScheduleRepo) List(context.Context) ([]models.ScheduleRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ScheduleRule(nil), m.rules...), m.err
}

func (m *memScheduleRepo) Create(_ context.Context, r models.ScheduleRule) (models.ScheduleRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.ScheduleRule{}, m.err
	}
	if r.ID == "" {
		r.ID = "rule-" + string(rune('a'+len(m.rules)))
	}
	m.rules = append(m.rules, r)
	return r, nil
}

func (m *memScheduleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memScheduleRepo) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules[i].Enabled = enabled
			return nil
		}
	}
	return repository.ErrNotFound
}

type memTimerRepo struct {
	mu   sync.Mutex
	rows map[string]models.ArmedTimer
}

func newMemTimerRepo(ts ...models.ArmedTimer) *memTimerRepo {
	m := &memTimerRepo{rows: make(map[string]models.ArmedTimer)}
	for _, t := range ts {
		m.rows[t.Key] = t
	}
	return m
}

func (m *memTimerRepo) Save(_ context.Context, t models.ArmedTimer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[t.Key] = t
	return nil
}

func (m *memTimerRepo) List(context.Context) ([]models.ArmedTimer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ArmedTimer, 0, len(m.rows))
	for _, t := range m.rows {
		out = append(out, t)
	}
	return out, nil
}

func (m *memTimerRepo) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, key)
	return nil
}

func (m *memTimerRepo) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[key]
	return ok
}

type memReadingRepo struct {
	mu          sync.Mutex
	inserted    []models.SensorReading
	latest      []models.SensorReading
	insertErr   error
	latestErr   error
	latestCalls int
}

func (m *memReadingRepo) Insert(_ context.Context, r models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, r)
	return nil
}

func (m *memReadingRepo) Latest(context.Context, int) ([]models.SensorReading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestCalls++
	return append([]models.SensorReading(nil), m.latest...), m.latestErr
}

func (m *memReadingRepo) ListRange(context.Context, time.Time, time.Time, int, int) (models.ReadingPage, error) {
	return models.ReadingPage{}, errors.New("not used")
}

func (m *memReadingRepo) setLatest(rs []models.SensorReading) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = rs
}

func (m *memReadingRepo) insertedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

type stubNotifier struct {
	mu        sync.Mutex
	granted   bool
	permErr   error
	permCalls int
	shown     []models.Notification
	showErr   error
}

func (n *stubNotifier) RequestPermission(context.Context) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.permCalls++
	return n.granted, n.permErr
}

func (n *stubNotifier) Show(_ context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown = append(n.shown, note)
	return n.showErr
}

func (n *stubNotifier) shownTags() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.shown))
	for _, s := range n.shown {
		out = append(out, s.Tag)
	}
	return out
}

type stubPublisher struct {
	mu     sync.Mutex
	events []models.FeedEvent
}

func (p *stubPublisher) Publish(_ context.Context, ev models.FeedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type stubSubscriber struct {
	mu     sync.Mutex
	handle func(models.FeedEvent)
	err    error
	closed bool
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (s *stubSubscriber) Subscribe(_ context.Context, handle func(models.FeedEvent)) (io.Closer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.handle = handle
	return closerFunc(func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true
		return nil
	}), nil
}

func (s *stubSubscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testDeps() (*metrics.Metrics, *logger.Logger) {
	return metrics.New(), logger.Nop()
}
