package models

// Source of the most recent change applied to the live view.
const (
	SourcePush = "push"
	SourcePull = "pull"
	SourceNone = "none"
)

// LiveView is the reconciled "current reading" view handed to consumers.
type LiveView struct {
	LatestReading  *SensorReading  `json:"latest_reading"`
	History        []SensorReading `json:"history,omitempty"`
	IsConnected    bool            `json:"is_connected"`
	Source         string          `json:"source"`
	Loading        bool            `json:"loading"`
	ECMilliSiemens float64         `json:"ec_ms,omitempty"`
	WaterLevelPct  float64         `json:"water_level_pct,omitempty"`
}
