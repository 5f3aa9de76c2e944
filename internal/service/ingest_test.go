package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"farm_telemetry/internal/clients"
	"farm_telemetry/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubMirror struct {
	mu sync.Mutex
	rs []models.SensorReading
}

func (m *stubMirror) Mirror(_ context.Context, r models.SensorReading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rs = append(m.rs, r)
	return nil
}

func (m *stubMirror) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rs)
}

type ingestFixture struct {
	in       *Ingest
	live     *Synchronizer
	history  *History
	readings *memReadingRepo
	feed     *stubPublisher
	mirror   *stubMirror
	notifier *stubNotifier
}

func newIngestFixture(t *testing.T, relays *RelayService) *ingestFixture {
	t.Helper()
	m, log := testDeps()
	f := &ingestFixture{
		history:  NewHistory(10),
		readings: &memReadingRepo{},
		feed:     &stubPublisher{},
		mirror:   &stubMirror{},
		notifier: &stubNotifier{granted: true},
	}
	f.live = NewSynchronizer(f.history, f.readings, nil, nil, SyncConfig{}, m, log)
	f.in = NewIngest(IngestDeps{
		DeviceID: "tank-1",
		Live:     f.live,
		Readings: f.readings,
		Feed:     f.feed,
		Mirror:   f.mirror,
		Alerts:   NewAlertEngine(f.notifier, time.Minute, nil, m, log),
		Relays:   relays,
		Metrics:  m,
		Log:      log,
	})
	return f
}

func (f *ingestFixture) run(t *testing.T) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.in.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		f.in.alerts.Wait()
	})
	return cancel
}

func TestIngest_FramesToPersistedReading(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.run(t)

	f.in.HandlePayload(ecTempFrame)
	if f.history.Len() != 0 {
		t.Fatal("reading emitted after one frame")
	}
	f.in.HandlePayload(waterLevelFrame)

	// The live view is updated before persistence completes.
	latest, ok := f.history.Latest()
	if !ok || latest.ECMicroSiemens != 2200 || latest.WaterTempC != 25 || latest.WaterLevelMm != 150 {
		t.Fatalf("latest = %+v ok=%v", latest, ok)
	}

	waitFor(t, "persist", func() bool { return f.readings.insertedCount() == 1 })
	waitFor(t, "feed publish", func() bool { return f.feed.count() == 1 })
	waitFor(t, "mirror", func() bool { return f.mirror.count() == 1 })
	// 2.2 mS/cm is above the default 2.0 maximum.
	waitFor(t, "ec-high alert", func() bool {
		got := f.notifier.shownTags()
		return len(got) == 1 && got[0] == models.TagECHigh
	})

	f.feed.mu.Lock()
	ev := f.feed.events[0]
	f.feed.mu.Unlock()
	if ev.Op != models.FeedInsert || ev.Reading.ID != latest.ID {
		t.Fatalf("feed event = %+v", ev)
	}
	if v := testutil.ToFloat64(f.in.metrics.Frames.WithLabelValues("ec_temp")); v != 1 {
		t.Fatalf("ec_temp frames = %v", v)
	}
}

func TestIngest_PersistFailureSkipsPublish(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.readings.insertErr = errors.New("database is locked")
	f.run(t)

	f.in.HandlePayload(ecTempFrame)
	f.in.HandlePayload(waterLevelFrame)

	waitFor(t, "persist failure", func() bool { return testutil.ToFloat64(f.in.metrics.PersistFailures) == 1 })
	if f.feed.count() != 0 || f.mirror.count() != 0 {
		t.Fatal("published a reading that was not persisted")
	}
	if f.history.Len() != 1 {
		t.Fatal("live view lost the reading")
	}
}

func TestIngest_RejectedFrames(t *testing.T) {
	f := newIngestFixture(t, nil)

	for _, p := range [][]byte{
		{0x03, 0x03},
		{0x01, 0x03, 0x02, 0x00, 0x10, 0x00, 0x00},
		[]byte("not a frame"),
	} {
		f.in.HandlePayload(p)
	}
	if v := testutil.ToFloat64(f.in.metrics.Frames.WithLabelValues("rejected")); v != 3 {
		t.Fatalf("rejected = %v", v)
	}
	if st := f.in.Aggregator().State(); st.HaveECTemp || st.HaveWaterLevel {
		t.Fatalf("rejected frame changed state: %+v", st)
	}
}

func TestIngest_RelayStatusReport(t *testing.T) {
	relays, _ := newTestRelays(t)
	f := newIngestFixture(t, relays)

	f.in.HandlePayload([]byte(`{"relay1_input":false,"relay1_output":true,"relay3_output":true}`))
	st, ok := relays.Status()
	if !ok || !st.Relay1Output || !st.Relay3Output || st.Relay2Output || st.ReceivedAt.IsZero() {
		t.Fatalf("status = %+v ok=%v", st, ok)
	}

	f.in.HandlePayload([]byte(`{"hello":"world"}`))
	if st2, _ := relays.Status(); !st2.ReceivedAt.Equal(st.ReceivedAt) {
		t.Fatal("non-status JSON replaced the relay status")
	}
	if v := testutil.ToFloat64(f.in.metrics.Frames.WithLabelValues("rejected")); v != 0 {
		t.Fatalf("JSON counted as a rejected frame: %v", v)
	}
}

func TestIngest_DrainsOnShutdown(t *testing.T) {
	f := newIngestFixture(t, nil)
	f.in.HandlePayload(ecTempFrame)
	f.in.HandlePayload(waterLevelFrame)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.in.Run(ctx)
	f.in.alerts.Wait()

	if f.readings.insertedCount() != 1 {
		t.Fatalf("queued reading not persisted on shutdown: %d", f.readings.insertedCount())
	}
}

func TestIngest_Consume(t *testing.T) {
	f := newIngestFixture(t, nil)
	msgs := make(chan clients.Message, 2)
	msgs <- clients.Message{Topic: "farm/data", Payload: ecTempFrame}
	msgs <- clients.Message{Topic: "farm/data", Payload: waterLevelFrame}
	close(msgs)

	f.in.Consume(context.Background(), msgs)
	if f.history.Len() != 1 {
		t.Fatalf("history len = %d", f.history.Len())
	}
}
