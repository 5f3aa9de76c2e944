package models

// Alert category tags. One cooldown window per tag.
const (
	TagECLow         = "ec-low"
	TagECHigh        = "ec-high"
	TagTempLow       = "temp-low"
	TagTempHigh      = "temp-high"
	TagWaterCritical = "water-critical"
	TagWaterHigh     = "water-high"
)

// Notification is what the alert engine hands to the notification facility.
type Notification struct {
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Tag                string         `json:"tag"`
	RequireInteraction bool           `json:"require_interaction"`
	Data               map[string]any `json:"data,omitempty"`
}
