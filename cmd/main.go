package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"farm_telemetry/config"
	"farm_telemetry/internal/clients"
	"farm_telemetry/internal/handlers"
	"farm_telemetry/internal/logger"
	"farm_telemetry/internal/metrics"
	"farm_telemetry/internal/repository"
	"farm_telemetry/internal/repository/db"
	"farm_telemetry/internal/server"
	"farm_telemetry/internal/service"
)

const busQueueSize = 256

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.GetWithFormat(cfg.LogLevel, cfg.LogFormat)

	conn, err := openDB(cfg.DBPath, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(conn)
	m := metrics.New()

	// The bus outlives the runtime so shutdown can still publish.
	busCtx, busCancel := context.WithCancel(context.Background())
	defer busCancel()

	msgs := make(chan clients.Message, busQueueSize)
	bus, err := clients.NewMQTT(busCtx, cfg.MQTT, log, func(msg clients.Message) {
		select {
		case msgs <- msg:
		default:
			log.Warnw("bus_queue_full", "topic", msg.Topic)
		}
	})
	if err != nil {
		log.Fatalw("failed to start mqtt", "err", err)
	}

	deps := service.Deps{
		Config:     cfg,
		Repos:      repos,
		Dispatcher: bus,
		Metrics:    m,
		Log:        log,
	}
	feed, mirror := wireOptional(busCtx, cfg, &deps, log)

	rt := service.NewRuntime(deps)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := rt.Start(ctx, msgs); err != nil {
		log.Fatalw("failed to start runtime", "err", err)
	}

	apiHandler := handlers.NewHandler(rt.Service(), m.Handler(), log)
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	runHTTPServer(srv, log)

	waitForShutdown(cfg.ShutdownTimeout, log)

	cancel()
	rt.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
	if err := bus.Close(shutdownCtx); err != nil {
		log.Warnw("mqtt_close_failed", "err", err)
	}
	if feed != nil {
		if err := feed.Close(); err != nil {
			log.Warnw("redis_close_failed", "err", err)
		}
	}
	if mirror != nil {
		mirror.Close()
	}
	log.Infow("shutdown complete")
}

// wireOptional connects the collaborators that may be left unconfigured.
// Each is only assigned to deps when it came up, so the interfaces stay nil
// otherwise.
func wireOptional(ctx context.Context, cfg *config.Config, deps *service.Deps, log *logger.Logger) (*clients.Feed, *clients.InfluxMirror) {
	var (
		feed   *clients.Feed
		mirror *clients.InfluxMirror
		err    error
	)

	if cfg.Redis.URL != "" {
		if feed, err = clients.NewFeed(cfg.Redis, log); err != nil {
			log.Warnw("redis_unavailable", "err", err)
			feed = nil
		} else {
			deps.Publisher = feed
			deps.Subscriber = feed
		}
	} else {
		log.Infow("redis not configured; live view runs pull-only")
	}

	if cfg.InfluxDB.URL != "" {
		if mirror, err = clients.NewInfluxMirror(ctx, cfg.InfluxDB); err != nil {
			log.Warnw("influxdb_unavailable", "err", err)
			mirror = nil
		} else {
			deps.Mirror = mirror
		}
	}

	if cfg.Notify.URL != "" {
		deps.Notifier = clients.NewWebhookNotifier(cfg.Notify)
	} else {
		log.Infow("notify.url not set; alerts are checked but not delivered")
	}
	return feed, mirror
}

// openDB opens the SQLite file and applies the schema.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "farm.db")
		path = "farm.db"
	}
	return db.InitDB(path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, log *logger.Logger) {
	go func() {
		log.Infow("http_listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown blocks until SIGINT or SIGTERM.
func waitForShutdown(timeout time.Duration, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infow("shutting down", "signal", sig.String(), "timeout", timeout.String())
}
