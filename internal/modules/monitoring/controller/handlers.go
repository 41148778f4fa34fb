package controller

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/internal/modules/monitoring/plots"
	"bikeshare-monitor/internal/modules/monitoring/types"
	"bikeshare-monitor/internal/modules/monitoring/views"
	"bikeshare-monitor/internal/utils"
)

// statusFor maps a monitoring error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrDataUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (c *monitoringControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := resolveDashboardState(r, c.defaultWindow)

	data := &views.DashboardData{
		WindowHours:    state.WindowHours,
		MinWindowHours: config.MinWindowHours,
		MaxWindowHours: config.MaxWindowHours,
	}
	status := http.StatusOK

	stations, err := c.monitor.StationCatalog(ctx, state.WindowHours)
	switch {
	case errors.Is(err, types.ErrDataUnavailable):
		data.Unavailable = true
		status = http.StatusServiceUnavailable
	case err != nil:
		slog.ErrorContext(ctx, "dashboard: station catalog failed", "window_hours", state.WindowHours, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	default:
		data.Stations = stations
		data.SelectedStationID = selectStation(stations, state.StationID)
	}

	if data.SelectedStationID != "" {
		partial := &views.StationPartialData{StationID: data.SelectedStationID, WindowHours: state.WindowHours}
		series, err := c.monitor.StationSeries(ctx, data.SelectedStationID, state.WindowHours)
		switch {
		case errors.Is(err, types.ErrDataUnavailable):
			partial.Unavailable = true
			status = http.StatusServiceUnavailable
		case err != nil:
			slog.ErrorContext(ctx, "dashboard: station series failed", "station_id", data.SelectedStationID, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to load station")
			return
		default:
			partial.Summary = series.Summary
		}
		data.Station = partial
		state.StationID = data.SelectedStationID
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.ErrorContext(ctx, "dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	writeMonitorState(w, state)
	utils.WriteHTML(w, status, buf.Bytes())
}

// handleStationPartial renders metrics for one station. Failures render an
// in-page notice with status 200 so HTMX swaps it in.
func (c *monitoringControllerImpl) handleStationPartial(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	state := resolveDashboardState(r, c.defaultWindow)

	if state.StationID == "" {
		stations, err := c.monitor.StationCatalog(ctx, state.WindowHours)
		if err != nil && !errors.Is(err, types.ErrDataUnavailable) {
			slog.ErrorContext(ctx, "station partial: station catalog failed", "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
			return
		}
		state.StationID = selectStation(stations, "")
	}

	partial := &views.StationPartialData{StationID: state.StationID, WindowHours: state.WindowHours}
	if state.StationID != "" {
		series, err := c.monitor.StationSeries(ctx, state.StationID, state.WindowHours)
		switch {
		case errors.Is(err, types.ErrDataUnavailable):
			partial.Unavailable = true
		case err != nil:
			slog.ErrorContext(ctx, "station partial: station series failed", "station_id", state.StationID, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, "failed to load station")
			return
		default:
			partial.Summary = series.Summary
		}
	}

	var buf bytes.Buffer
	if err := views.RenderStationPartial(&buf, partial); err != nil {
		slog.ErrorContext(ctx, "station partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	writeMonitorState(w, state)
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

func (c *monitoringControllerImpl) handleStationCharts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stationID := r.URL.Query().Get("station_id")
	if err := validateStationID(stationID); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindowQuery(r, c.defaultWindow)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := c.monitor.StationSeries(ctx, stationID, window)
	if err != nil {
		slog.ErrorContext(ctx, "charts: station series failed", "station_id", stationID, "window_hours", window, "error", err)
		utils.WriteError(w, statusFor(err), "failed to load station data")
		return
	}

	var buf bytes.Buffer
	if err := plots.RenderStationPage(&buf, series); err != nil {
		if errors.Is(err, plots.ErrNoRecords) {
			utils.WriteError(w, http.StatusNotFound, views.NoDataMessage)
			return
		}
		slog.ErrorContext(ctx, "charts render failed", "station_id", stationID, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render charts")
		return
	}
	utils.WriteHTML(w, http.StatusOK, buf.Bytes())
}

type stationsResponse struct {
	WindowHours int      `json:"windowHours"`
	Stations    []string `json:"stations"`
}

func (c *monitoringControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	window, err := parseWindowQuery(r, c.defaultWindow)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	stations, err := c.monitor.StationCatalog(r.Context(), window)
	if err != nil {
		slog.ErrorContext(r.Context(), "api: station catalog failed", "window_hours", window, "error", err)
		utils.WriteError(w, statusFor(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, stationsResponse{WindowHours: window, Stations: stations})
}

func (c *monitoringControllerImpl) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing station id")
		return
	}
	if err := validateStationID(id); err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	window, err := parseWindowQuery(r, c.defaultWindow)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := c.monitor.StationSeries(r.Context(), id, window)
	if err != nil {
		slog.ErrorContext(r.Context(), "api: station series failed", "station_id", id, "window_hours", window, "error", err)
		utils.WriteError(w, statusFor(err), err.Error())
		return
	}
	utils.WriteJSON(w, http.StatusOK, series)
}
