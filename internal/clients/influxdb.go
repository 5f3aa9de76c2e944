package clients

import (
	"context"
	"fmt"

	"farm_telemetry/config"
	"farm_telemetry/internal/models"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

const readingMeasurement = "nutrient_tank"

// InfluxMirror copies completed readings into a time-series bucket.
type InfluxMirror struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func NewInfluxMirror(ctx context.Context, conf config.InfluxDBConfig) (*InfluxMirror, error) {
	client := influxdb2.NewClientWithOptions(conf.URL, conf.Token,
		influxdb2.DefaultOptions().SetUseGZip(true))

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check at %s: %w", conf.URL, err)
	}
	return &InfluxMirror{client: client, write: client.WriteAPIBlocking(conf.Org, conf.Bucket)}, nil
}

func (m *InfluxMirror) Mirror(ctx context.Context, r models.SensorReading) error {
	p := influxdb2.NewPoint(readingMeasurement,
		map[string]string{"device_id": r.DeviceID},
		map[string]interface{}{
			"ec_us_cm":   r.ECMicroSiemens,
			"water_temp": r.WaterTempC,
			"water_mm":   r.WaterLevelMm,
			"stale":      r.Stale,
		},
		r.ObservedAt)
	if err := m.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write %s: %w", r.ID, err)
	}
	return nil
}

func (m *InfluxMirror) Close() { m.client.Close() }
