package service

import (
	"fmt"
	"testing"
	"time"

	"farm_telemetry/internal/models"
)

func reading(id string, at time.Time) models.SensorReading {
	return models.SensorReading{ID: id, DeviceID: "tank-1", ObservedAt: at}
}

func ids(rs []models.SensorReading) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestHistory_InsertNewestFirstAndBounded(t *testing.T) {
	h := NewHistory(3)
	base := time.Date(2025, 9, 12, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if !h.Insert(reading(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Second))) {
			t.Fatalf("insert r%d refused", i)
		}
	}
	got := ids(h.Snapshot())
	want := []string{"r4", "r3", "r2"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
	if h.Len() != 3 {
		t.Fatalf("len = %d", h.Len())
	}
}

func TestHistory_InsertDuplicateIgnored(t *testing.T) {
	h := NewHistory(5)
	now := time.Now()
	h.Insert(reading("a", now))
	if h.Insert(reading("a", now.Add(time.Second))) {
		t.Fatal("duplicate id inserted")
	}
	if h.Len() != 1 {
		t.Fatalf("len = %d", h.Len())
	}
}

func TestHistory_UpdateInPlace(t *testing.T) {
	h := NewHistory(5)
	now := time.Now()
	h.Insert(reading("a", now))
	h.Insert(reading("b", now.Add(time.Second)))

	upd := reading("a", now)
	upd.WaterLevelMm = 120
	if !h.Update(upd) {
		t.Fatal("update of present id failed")
	}
	snap := h.Snapshot()
	if snap[1].ID != "a" || snap[1].WaterLevelMm != 120 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if h.Update(reading("zzz", now)) {
		t.Fatal("update of absent id reported success")
	}
}

func TestHistory_ReplaceTruncatesAndDedups(t *testing.T) {
	h := NewHistory(2)
	now := time.Now()
	h.Replace([]models.SensorReading{reading("c", now), reading("c", now), reading("b", now), reading("a", now)})
	if got := ids(h.Snapshot()); fmt.Sprint(got) != "[c b]" {
		t.Fatalf("snapshot = %v", got)
	}
	latest, ok := h.Latest()
	if !ok || latest.ID != "c" {
		t.Fatalf("latest = %+v ok=%v", latest, ok)
	}
}

func TestHistory_DefaultCapacity(t *testing.T) {
	h := NewHistory(0)
	if h.Capacity() != defaultHistoryCapacity {
		t.Fatalf("capacity = %d", h.Capacity())
	}
	if _, ok := h.Latest(); ok {
		t.Fatal("empty history reported a latest reading")
	}
}

func TestHistory_SnapshotIsCopy(t *testing.T) {
	h := NewHistory(2)
	h.Insert(reading("a", time.Now()))
	snap := h.Snapshot()
	snap[0].ID = "mutated"
	if latest, _ := h.Latest(); latest.ID != "a" {
		t.Fatalf("snapshot aliased history: %q", latest.ID)
	}
}
