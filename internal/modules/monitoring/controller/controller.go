package controller

import (
	"net/http"

	"bikeshare-monitor/internal/modules/monitoring/service"
)

type MonitoringController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type monitoringControllerImpl struct {
	monitor       service.Monitor
	defaultWindow int
}

func NewMonitoringController(monitor service.Monitor, defaultWindow int) MonitoringController {
	return &monitoringControllerImpl{monitor: monitor, defaultWindow: clampWindow(defaultWindow)}
}

func (c *monitoringControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleDashboard)
	mux.HandleFunc("GET /partials/station", c.handleStationPartial)
	mux.HandleFunc("GET /charts/station", c.handleStationCharts)
	mux.HandleFunc("GET /api/v1/stations", c.handleStations)
	mux.HandleFunc("GET /api/v1/stations/{id}/series", c.handleSeries)
}
