package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/internal/modules/monitoring/engine"
	"bikeshare-monitor/internal/modules/monitoring/types"

	"golang.org/x/sync/errgroup"
)

// Monitor runs one fetch, join and aggregate cycle per call.
type Monitor interface {
	StationCatalog(ctx context.Context, windowHours int) ([]string, error)
	StationSeries(ctx context.Context, stationID string, windowHours int) (types.StationSeries, error)
}

type monitorImpl struct {
	adapter types.DataAdapter
	logger  *slog.Logger
}

func NewMonitor(adapter types.DataAdapter, logger *slog.Logger) Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &monitorImpl{adapter: adapter, logger: logger}
}

// ValidateWindow reports whether windowHours is within the selectable range.
func ValidateWindow(windowHours int) error {
	if windowHours < config.MinWindowHours || windowHours > config.MaxWindowHours {
		return fmt.Errorf("%w: %d hours (allowed %d-%d)", types.ErrInvalidWindow, windowHours, config.MinWindowHours, config.MaxWindowHours)
	}
	return nil
}

func (m *monitorImpl) StationCatalog(ctx context.Context, windowHours int) ([]string, error) {
	observed, predicted, err := m.fetch(ctx, windowHours)
	if err != nil {
		return nil, err
	}
	stations := engine.StationCatalog(observed, predicted)
	m.logger.DebugContext(ctx, "station catalog derived",
		"window_hours", windowHours,
		"stations", len(stations),
	)
	return stations, nil
}

func (m *monitorImpl) StationSeries(ctx context.Context, stationID string, windowHours int) (types.StationSeries, error) {
	observed, predicted, err := m.fetch(ctx, windowHours)
	if err != nil {
		return types.StationSeries{}, err
	}
	series := engine.BuildSeries(observed, predicted, stationID, windowHours)
	m.logger.DebugContext(ctx, "station series computed",
		"station_id", stationID,
		"window_hours", windowHours,
		"records", len(series.Records),
	)
	return series, nil
}

// fetch reads both datasets concurrently. Either failure aborts the cycle.
func (m *monitorImpl) fetch(ctx context.Context, windowHours int) ([]types.HourlyObservation, []types.HourlyPrediction, error) {
	if err := ValidateWindow(windowHours); err != nil {
		return nil, nil, err
	}

	var (
		observed  []types.HourlyObservation
		predicted []types.HourlyPrediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		observed, err = m.adapter.FetchObservedRides(gctx, windowHours)
		if err != nil {
			return unavailable("observed rides", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		predicted, err = m.adapter.FetchPredictedDemand(gctx, windowHours)
		if err != nil {
			return unavailable("predicted demand", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		m.logger.ErrorContext(ctx, "monitoring fetch failed", "window_hours", windowHours, "error", err)
		return nil, nil, err
	}
	return observed, predicted, nil
}

func unavailable(source string, err error) error {
	if errors.Is(err, types.ErrDataUnavailable) {
		return fmt.Errorf("fetch %s: %w", source, err)
	}
	return fmt.Errorf("fetch %s: %w: %w", source, types.ErrDataUnavailable, err)
}
