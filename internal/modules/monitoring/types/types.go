package types

import (
	"context"
	"errors"
	"time"
)

// ErrDataUnavailable marks a failed fetch from either source. The cycle that
// hit it is abandoned; callers report it rather than retry.
var ErrDataUnavailable = errors.New("monitoring data unavailable")

// ErrInvalidWindow is returned for a window outside [1, 672] hours.
var ErrInvalidWindow = errors.New("invalid window")

// HourlyObservation is the number of rides started at a station in one hour.
type HourlyObservation struct {
	StationID string    `json:"stationId"`
	Hour      time.Time `json:"hour"`
	Rides     int       `json:"rides"`
}

// HourlyPrediction is the forecast ride count for a station and hour.
type HourlyPrediction struct {
	StationID       string    `json:"stationId"`
	Hour            time.Time `json:"hour"`
	PredictedDemand float64   `json:"predictedDemand"`
}

// JoinedRecord pairs an observation with the prediction for the same station and hour.
type JoinedRecord struct {
	StationID       string    `json:"stationId"`
	Hour            time.Time `json:"hour"`
	Rides           int       `json:"rides"`
	PredictedDemand float64   `json:"predictedDemand"`
	AbsoluteError   float64   `json:"absoluteError"`
}

type Summary struct {
	MeanAbsoluteError float64 `json:"meanAbsoluteError"`
	MaxAbsoluteError  float64 `json:"maxAbsoluteError"`
	Count             int     `json:"count"`
}

// StationSeries is one station's joined records in ascending hour order.
// Summary is nil when there are no records.
type StationSeries struct {
	StationID   string         `json:"stationId"`
	WindowHours int            `json:"windowHours"`
	Records     []JoinedRecord `json:"records"`
	Summary     *Summary       `json:"summary"`
}

// Empty reports whether the series has no records.
func (s StationSeries) Empty() bool {
	return len(s.Records) == 0
}

// DataAdapter reads the trailing windowHours of rides and predictions.
// Implementations are read-only and wrap failures with ErrDataUnavailable.
type DataAdapter interface {
	FetchObservedRides(ctx context.Context, windowHours int) ([]HourlyObservation, error)
	FetchPredictedDemand(ctx context.Context, windowHours int) ([]HourlyPrediction, error)
}
