// Package messages holds the MQTT payloads exchanged between the ingest
// publisher and the monitor's subscriber.
package messages

import (
	"errors"
	"fmt"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxStationIDLength bounds a station id, in characters.
const MaxStationIDLength = 64

var (
	ErrStationIDRequired = errors.New("station_id is required")
	ErrInvalidStationID  = fmt.Errorf("station_id must be valid UTF-8 of at most %d characters without control characters", MaxStationIDLength)
)

// RideCount is the observed number of rides started at a station during one hour.
type RideCount struct {
	StationID string    `json:"station_id"`
	Hour      time.Time `json:"hour"`
	Rides     *int      `json:"rides"`
}

// Prediction is the forecast demand for a station and hour.
type Prediction struct {
	StationID       string    `json:"station_id"`
	Hour            time.Time `json:"hour"`
	PredictedDemand *float64  `json:"predicted_demand"`
	ModelVersion    string    `json:"model_version,omitempty"`
}

// TruncateHour normalises t to the start of its hour in UTC.
func TruncateHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// ValidateStationID is the station id rule shared by ingest and the HTTP
// surface, so every stored id can be selected again.
func ValidateStationID(id string) error {
	if id == "" {
		return ErrStationIDRequired
	}
	if !utf8.ValidString(id) || utf8.RuneCountInString(id) > MaxStationIDLength {
		return ErrInvalidStationID
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return ErrInvalidStationID
		}
	}
	return nil
}
