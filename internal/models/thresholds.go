package models

import "time"

// Thresholds holds the alert bounds and tank geometry. Single row, id=1.
type Thresholds struct {
	ECMin           float64   `json:"ec_min"`   // mS/cm
	ECMax           float64   `json:"ec_max"`   // mS/cm
	TankMaxMm       float64   `json:"tank_max"` // mmH2O at 100%
	TempMinC        float64   `json:"temp_min"`
	TempMaxC        float64   `json:"temp_max"`
	WaterCriticalMm float64   `json:"water_critical"`
	WaterHighMm     float64   `json:"water_high"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultThresholds mirrors the values the dashboard shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ECMin:           1.2,
		ECMax:           2.0,
		TankMaxMm:       320,
		TempMinC:        18,
		TempMaxC:        28,
		WaterCriticalMm: 50,
		WaterHighMm:     300,
	}
}

// WaterLevelPercent converts a level in mm to a 0-100 fill percentage.
func (t Thresholds) WaterLevelPercent(levelMm float64) float64 {
	if t.TankMaxMm <= 0 {
		return 0
	}
	pct := levelMm / t.TankMaxMm * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
