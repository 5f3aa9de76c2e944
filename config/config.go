package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	DBPath          string
	DeviceID        string
	JWTSecret       string
	ShutdownTimeout time.Duration

	MQTT        MQTTConfig
	Redis       RedisConfig
	InfluxDB    InfluxDBConfig
	Notify      NotifyConfig
	History     HistoryConfig
	Aggregator  AggregatorConfig
	Live        LiveConfig
	Schedule    ScheduleConfig
	Alerts      AlertsConfig
	Fertigation FertigationConfig
	Events      EventsConfig
}

type MQTTConfig struct {
	Broker       string
	ClientID     string
	Username     string
	Password     string
	DataTopic    string
	CommandTopic string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	Channel  string
}

type InfluxDBConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

type NotifyConfig struct {
	URL   string
	Token string
}

type HistoryConfig struct {
	Capacity int
}

type AggregatorConfig struct {
	MaxWait time.Duration
}

type LiveConfig struct {
	PullInterval time.Duration
	QuietWindow  time.Duration
	FreshPush    time.Duration
	FreshPull    time.Duration
}

type ScheduleConfig struct {
	Timezone   string
	RelayCount int
}

type AlertsConfig struct {
	Cooldown time.Duration
}

type FertigationConfig struct {
	Relay int
}

// EventsConfig controls automation log retention. Retention 0 keeps everything.
type EventsConfig struct {
	Retention     time.Duration
	PruneSchedule string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("db.path", "farm.db")
	v.SetDefault("device.id", "sensor_01")
	v.SetDefault("shutdown_timeout", 10*time.Second)

	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "farm-telemetry")
	v.SetDefault("mqtt.data_topic", "dtu/34EAE7F0701C/data")
	v.SetDefault("mqtt.command_topic", "dtu/34EAE7F0701C/relay")

	v.SetDefault("redis.channel", "sensor:readings")

	v.SetDefault("history.capacity", 50)
	v.SetDefault("aggregator.max_wait", 2*time.Minute)

	v.SetDefault("live.pull_interval", 30*time.Second)
	v.SetDefault("live.quiet_window", 2*time.Minute)
	v.SetDefault("live.fresh_push", 2*time.Minute)
	v.SetDefault("live.fresh_pull", 5*time.Minute)

	v.SetDefault("schedule.timezone", "Local")
	v.SetDefault("schedule.relay_count", 4)

	v.SetDefault("alerts.cooldown", 5*time.Minute)
	v.SetDefault("fertigation.relay", 1)

	v.SetDefault("events.retention", 30*24*time.Hour)
	v.SetDefault("events.prune_schedule", "@hourly")
}

// Load reads configs/config.yml (if present) and FARM_* environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetString("port"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
		DBPath:          v.GetString("db.path"),
		DeviceID:        v.GetString("device.id"),
		JWTSecret:       v.GetString("auth.jwt_secret"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		MQTT: MQTTConfig{
			Broker:       v.GetString("mqtt.broker"),
			ClientID:     v.GetString("mqtt.client_id"),
			Username:     v.GetString("mqtt.username"),
			Password:     v.GetString("mqtt.password"),
			DataTopic:    v.GetString("mqtt.data_topic"),
			CommandTopic: v.GetString("mqtt.command_topic"),
		},
		Redis: RedisConfig{
			URL:      v.GetString("redis.url"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		InfluxDB: InfluxDBConfig{
			URL:    v.GetString("influxdb.url"),
			Token:  v.GetString("influxdb.token"),
			Org:    v.GetString("influxdb.org"),
			Bucket: v.GetString("influxdb.bucket"),
		},
		Notify: NotifyConfig{
			URL:   v.GetString("notify.url"),
			Token: v.GetString("notify.token"),
		},
		History:    HistoryConfig{Capacity: v.GetInt("history.capacity")},
		Aggregator: AggregatorConfig{MaxWait: v.GetDuration("aggregator.max_wait")},
		Live: LiveConfig{
			PullInterval: v.GetDuration("live.pull_interval"),
			QuietWindow:  v.GetDuration("live.quiet_window"),
			FreshPush:    v.GetDuration("live.fresh_push"),
			FreshPull:    v.GetDuration("live.fresh_pull"),
		},
		Schedule: ScheduleConfig{
			Timezone:   v.GetString("schedule.timezone"),
			RelayCount: v.GetInt("schedule.relay_count"),
		},
		Alerts:      AlertsConfig{Cooldown: v.GetDuration("alerts.cooldown")},
		Fertigation: FertigationConfig{Relay: v.GetInt("fertigation.relay")},
		Events: EventsConfig{
			Retention:     v.GetDuration("events.retention"),
			PruneSchedule: v.GetString("events.prune_schedule"),
		},
	}

	if cfg.History.Capacity <= 0 {
		return nil, fmt.Errorf("history.capacity must be positive, got %d", cfg.History.Capacity)
	}
	if cfg.Schedule.RelayCount <= 0 {
		return nil, fmt.Errorf("schedule.relay_count must be positive, got %d", cfg.Schedule.RelayCount)
	}
	return cfg, nil
}

// Location resolves schedule.timezone; "Local" or empty means the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}
