package service

import (
	"sync"

	"farm_telemetry/internal/models"
)

const defaultHistoryCapacity = 50

// History is the bounded, newest-first window of readings shown on the
// dashboard. Ids are unique within the window.
type History struct {
	mu       sync.RWMutex
	capacity int
	items    []models.SensorReading
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{capacity: capacity, items: make([]models.SensorReading, 0, capacity)}
}

// Insert prepends r unless a reading with the same id is already present.
func (h *History) Insert(r models.SensorReading) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, it := range h.items {
		if it.ID == r.ID {
			return false
		}
	}
	if len(h.items) < h.capacity {
		h.items = append(h.items, models.SensorReading{})
	}
	copy(h.items[1:], h.items)
	h.items[0] = r
	return true
}

// Update replaces the reading with the same id in place.
func (h *History) Update(r models.SensorReading) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.items {
		if h.items[i].ID == r.ID {
			h.items[i] = r
			return true
		}
	}
	return false
}

// Replace swaps the whole window. rs must be newest first.
func (h *History) Replace(rs []models.SensorReading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = h.items[:0]
	seen := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		if len(h.items) == h.capacity {
			break
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		h.items = append(h.items, r)
	}
}

func (h *History) Latest() (models.SensorReading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.items) == 0 {
		return models.SensorReading{}, false
	}
	return h.items[0], true
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

func (h *History) Capacity() int { return h.capacity }

// Snapshot returns a copy safe to hand to consumers.
func (h *History) Snapshot() []models.SensorReading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.SensorReading, len(h.items))
	copy(out, h.items)
	return out
}
