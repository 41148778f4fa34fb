package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"bikeshare-monitor/internal/modules/monitoring/types"
)

//go:embed sql/fetch-observed-rides.sql
var fetchObservedRidesSQL string

//go:embed sql/fetch-predicted-demand.sql
var fetchPredictedDemandSQL string

//go:embed sql/upsert-ride-count.sql
var upsertRideCountSQL string

//go:embed sql/upsert-prediction.sql
var upsertPredictionSQL string

// hourLayout is fixed width in UTC so stored hours compare correctly as text.
const hourLayout = "2006-01-02T15:04:05Z"

// MonitoringRepository is the SQLite-backed data adapter plus the ingest writes.
type MonitoringRepository interface {
	types.DataAdapter
	UpsertRideCount(ctx context.Context, stationID string, hour time.Time, rides int) error
	UpsertPrediction(ctx context.Context, stationID string, hour time.Time, predictedDemand float64, modelVersion string) error
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

type Option func(*repositoryImpl)

// WithClock replaces time.Now as the end of every window.
func WithClock(now func() time.Time) Option {
	return func(r *repositoryImpl) { r.now = now }
}

func NewRepository(db *sql.DB, opts ...Option) MonitoringRepository {
	r := &repositoryImpl{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// window returns the bounds (now - windowHours, now] as stored text.
func (r *repositoryImpl) window(windowHours int) (string, string, error) {
	if windowHours < 1 {
		return "", "", fmt.Errorf("window hours must be >= 1, got %d", windowHours)
	}
	to := r.now().UTC()
	from := to.Add(-time.Duration(windowHours) * time.Hour)
	return formatHour(from), formatHour(to), nil
}

func formatHour(t time.Time) string {
	return t.UTC().Format(hourLayout)
}

func parseHour(s string) (time.Time, error) {
	t, err := time.Parse(hourLayout, s)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(time.RFC3339Nano, s)
		if err2 != nil {
			return time.Time{}, fmt.Errorf("parse hour %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func (r *repositoryImpl) FetchObservedRides(ctx context.Context, windowHours int) ([]types.HourlyObservation, error) {
	from, to, err := r.window(windowHours)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fetchObservedRidesSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch observed rides: %w: %w", types.ErrDataUnavailable, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close observed rides rows", "error", err)
		}
	}()

	out := make([]types.HourlyObservation, 0)
	for rows.Next() {
		var o types.HourlyObservation
		var hour string
		if err := rows.Scan(&o.StationID, &hour, &o.Rides); err != nil {
			return nil, fmt.Errorf("scan observed rides: %w: %w", types.ErrDataUnavailable, err)
		}
		if o.Hour, err = parseHour(hour); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch observed rides: %w: %w", types.ErrDataUnavailable, err)
	}
	return out, nil
}

func (r *repositoryImpl) FetchPredictedDemand(ctx context.Context, windowHours int) ([]types.HourlyPrediction, error) {
	from, to, err := r.window(windowHours)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, fetchPredictedDemandSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch predicted demand: %w: %w", types.ErrDataUnavailable, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close predicted demand rows", "error", err)
		}
	}()

	out := make([]types.HourlyPrediction, 0)
	for rows.Next() {
		var p types.HourlyPrediction
		var hour string
		if err := rows.Scan(&p.StationID, &hour, &p.PredictedDemand); err != nil {
			return nil, fmt.Errorf("scan predicted demand: %w: %w", types.ErrDataUnavailable, err)
		}
		if p.Hour, err = parseHour(hour); err != nil {
			return nil, fmt.Errorf("%w: %w", types.ErrDataUnavailable, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch predicted demand: %w: %w", types.ErrDataUnavailable, err)
	}
	return out, nil
}

func (r *repositoryImpl) UpsertRideCount(ctx context.Context, stationID string, hour time.Time, rides int) error {
	if rides < 0 {
		return fmt.Errorf("rides must be >= 0: %d", rides)
	}
	if _, err := r.db.ExecContext(ctx, upsertRideCountSQL, stationID, formatHour(hour.Truncate(time.Hour)), rides); err != nil {
		return fmt.Errorf("upsert ride count: %w", err)
	}
	return nil
}

func (r *repositoryImpl) UpsertPrediction(ctx context.Context, stationID string, hour time.Time, predictedDemand float64, modelVersion string) error {
	if predictedDemand < 0 {
		return fmt.Errorf("predicted_demand must be >= 0: %f", predictedDemand)
	}
	var version any
	if modelVersion != "" {
		version = modelVersion
	}
	if _, err := r.db.ExecContext(ctx, upsertPredictionSQL, stationID, formatHour(hour.Truncate(time.Hour)), predictedDemand, version); err != nil {
		return fmt.Errorf("upsert prediction: %w", err)
	}
	return nil
}
