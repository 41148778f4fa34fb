package service

import (
	"context"
	"log/slog"

	"bikeshare-monitor/internal/modules/monitoring/repository"
	"bikeshare-monitor/internal/mqtt"
	"bikeshare-monitor/pkg/messages"
)

// RegisterIngestHandlers stores ride counts and predictions received over MQTT.
func RegisterIngestHandlers(subscriber mqtt.IngestSubscriber, repo repository.MonitoringRepository, logger *slog.Logger) {
	subscriber.SetRidesHandler(func(ctx context.Context, msg messages.RideCount) error {
		if err := repo.UpsertRideCount(ctx, msg.StationID, msg.Hour, *msg.Rides); err != nil {
			logger.Error("failed to store ride count",
				"station_id", msg.StationID,
				"hour", msg.Hour,
				"error", err,
			)
			return err
		}
		logger.Debug("stored ride count", "station_id", msg.StationID, "hour", msg.Hour)
		return nil
	})

	subscriber.SetPredictionsHandler(func(ctx context.Context, msg messages.Prediction) error {
		if err := repo.UpsertPrediction(ctx, msg.StationID, msg.Hour, *msg.PredictedDemand, msg.ModelVersion); err != nil {
			logger.Error("failed to store prediction",
				"station_id", msg.StationID,
				"hour", msg.Hour,
				"error", err,
			)
			return err
		}
		logger.Debug("stored prediction", "station_id", msg.StationID, "hour", msg.Hour)
		return nil
	})
}
