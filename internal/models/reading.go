package models

import "time"

// SensorReading is one complete, immutable snapshot of the nutrient tank.
type SensorReading struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"device_id"`
	ECMicroSiemens float64   `json:"ec_val"`     // µS/cm
	WaterTempC     float64   `json:"watertemp"`  // °C
	WaterLevelMm   float64   `json:"waterlevel"` // mmH2O
	Stale          bool      `json:"stale,omitempty"`
	ObservedAt     time.Time `json:"updated_at"`
}

// ECMilliSiemens returns EC in mS/cm, the unit thresholds are configured in.
func (r SensorReading) ECMilliSiemens() float64 {
	return r.ECMicroSiemens / 1000
}

// PartialReading accumulates the two sensor groups between emissions.
// Flags gate emission; values are retained across emissions.
type PartialReading struct {
	ECMicroSiemens float64
	WaterTempC     float64
	WaterLevelMm   float64
	HaveECTemp     bool
	HaveWaterLevel bool

	// seen* record whether a group has ever reported, so a stale emission
	// never fabricates a zero for a sensor that was never heard from.
	SeenECTemp     bool
	SeenWaterLevel bool
}

// Complete reports whether both groups arrived since the last emission.
func (p PartialReading) Complete() bool {
	return p.HaveECTemp && p.HaveWaterLevel
}

// Pending reports whether exactly one group is waiting for its partner.
func (p PartialReading) Pending() bool {
	return p.HaveECTemp != p.HaveWaterLevel
}

// ReadingPage is one page of a query-range result.
type ReadingPage struct {
	Readings []SensorReading `json:"readings"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Total    int             `json:"total"`
}
