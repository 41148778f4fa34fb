package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/internal/db"
	"bikeshare-monitor/internal/httpapi"
	"bikeshare-monitor/internal/migrate"
	"bikeshare-monitor/internal/modules/monitoring"
	monitoringviews "bikeshare-monitor/internal/modules/monitoring/views"
	"bikeshare-monitor/internal/mqtt"
)

const initialConnectTimeout = 5 * time.Second

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"staticDir", cfg.StaticDir,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"mqttEnabled", cfg.MQTTEnabled,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttRidesTopic", cfg.MQTTRidesTopic,
		"mqttPredictionsTopic", cfg.MQTTPredictionsTopic,
		"cacheTTL", cfg.CacheTTL,
		"defaultWindowHours", cfg.DefaultWindowHours,
	)

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	applied, err := migrate.Run(ctx, dbConn, logger)
	if err != nil {
		return err
	}
	logger.Info("database ready", "migrationsApplied", applied)

	if err := monitoringviews.LoadTemplates(); err != nil {
		return err
	}

	// Handlers are set before Connect: the broker may deliver queued messages
	// right after CONNACK.
	var (
		subscriber *mqtt.Subscriber
		broker     httpapi.BrokerStatus
		ingest     mqtt.IngestSubscriber
	)
	if cfg.MQTTEnabled {
		subscriber = mqtt.NewSubscriber(cfg, logger)
		broker = subscriber
		ingest = subscriber
	}

	mux := httpapi.NewMux(dbConn, cfg.StaticDir, broker)
	monitoring.RegisterFeature(mux, dbConn, ingest, cfg, logger)

	if subscriber != nil {
		connectCtx, connectCancel := context.WithTimeout(ctx, initialConnectTimeout)
		err := subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			logger.Warn("mqtt connection failed, retrying in background", "error", err)
			go func() {
				if err := subscriber.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("mqtt background connect stopped", "error", err)
				}
			}()
		}
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
