package monitoring

import (
	"database/sql"
	"log/slog"
	"net/http"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/internal/modules/monitoring/controller"
	"bikeshare-monitor/internal/modules/monitoring/repository"
	"bikeshare-monitor/internal/modules/monitoring/service"
	"bikeshare-monitor/internal/mqtt"
)

// RegisterFeature wires the monitoring dashboard and API onto mux. A nil
// subscriber leaves ingestion disabled; the dashboard still reads whatever
// the database holds.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, subscriber mqtt.IngestSubscriber, cfg config.Config, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	monitoringRepository := repository.NewRepository(db)
	adapter := service.NewCachedAdapter(monitoringRepository, cfg.CacheTTL)
	monitor := service.NewMonitor(adapter, logger)

	monitoringController := controller.NewMonitoringController(monitor, cfg.DefaultWindowHours)
	monitoringController.RegisterRoutes(mux)

	if subscriber != nil {
		service.RegisterIngestHandlers(subscriber, monitoringRepository, logger)
	}
}
