package models

import "time"

// Automation event types.
const (
	EventScheduleFired = "SCHEDULE_FIRED"
	EventAutoOff       = "AUTO_OFF"
	EventRelayCommand  = "RELAY_COMMAND"
	EventAlert         = "ALERT"
	EventFertigation   = "FERTIGATION"
)

// AutomationEvent is a single log entry.
type AutomationEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
