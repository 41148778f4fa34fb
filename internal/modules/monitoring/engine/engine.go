// Package engine joins observed rides with predicted demand and computes
// per-station error metrics. It performs no I/O.
package engine

import (
	"cmp"
	"errors"
	"math"
	"slices"
	"strconv"
	"time"

	"bikeshare-monitor/internal/modules/monitoring/types"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptyResult is returned by Summarize for an empty record set.
var ErrEmptyResult = errors.New("no records to summarize")

type joinKey struct {
	stationID string
	hour      time.Time
}

// keyOf compares instants exactly: zone and monotonic reading are dropped,
// sub-second precision is kept.
func keyOf(stationID string, hour time.Time) joinKey {
	return joinKey{stationID: stationID, hour: hour.UTC().Round(0)}
}

// Join inner-joins observations and predictions on exact (station, hour)
// equality. A key repeated on either side keeps its last row, so the result
// never holds more records than the smaller input. Hours are returned in UTC.
func Join(observed []types.HourlyObservation, predicted []types.HourlyPrediction) []types.JoinedRecord {
	demandByKey := make(map[joinKey]float64, len(predicted))
	for _, p := range predicted {
		demandByKey[keyOf(p.StationID, p.Hour)] = p.PredictedDemand
	}

	out := make([]types.JoinedRecord, 0, min(len(observed), len(predicted)))
	position := make(map[joinKey]int, len(observed))
	for _, o := range observed {
		k := keyOf(o.StationID, o.Hour)
		demand, ok := demandByKey[k]
		if !ok {
			continue
		}
		rec := types.JoinedRecord{
			StationID:       o.StationID,
			Hour:            o.Hour.UTC(),
			Rides:           o.Rides,
			PredictedDemand: demand,
			AbsoluteError:   AbsoluteError(demand, o.Rides),
		}
		if i, seen := position[k]; seen {
			out[i] = rec
			continue
		}
		position[k] = len(out)
		out = append(out, rec)
	}
	return out
}

// AbsoluteError is |predicted - rides|.
func AbsoluteError(predicted float64, rides int) float64 {
	return math.Abs(predicted - float64(rides))
}

// Catalog returns the distinct station ids in records, sorted with
// CompareStationIDs.
func Catalog(records []types.JoinedRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if _, ok := seen[r.StationID]; ok {
			continue
		}
		seen[r.StationID] = struct{}{}
		out = append(out, r.StationID)
	}
	slices.SortFunc(out, CompareStationIDs)
	return out
}

// CompareStationIDs orders numeric ids by value ahead of non-numeric ids,
// which sort lexically.
func CompareStationIDs(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	switch {
	case errA == nil && errB == nil:
		if c := cmp.Compare(fa, fb); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// FilterStation returns the records for stationID ordered by ascending hour.
// Records sharing an hour keep their input order.
func FilterStation(records []types.JoinedRecord, stationID string) []types.JoinedRecord {
	out := make([]types.JoinedRecord, 0)
	for _, r := range records {
		if r.StationID == stationID {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b types.JoinedRecord) int {
		return a.Hour.Compare(b.Hour)
	})
	return out
}

// Summarize computes the mean and maximum absolute error and the record count.
func Summarize(records []types.JoinedRecord) (types.Summary, error) {
	if len(records) == 0 {
		return types.Summary{}, ErrEmptyResult
	}
	errs := make([]float64, len(records))
	for i, r := range records {
		errs[i] = r.AbsoluteError
	}
	return types.Summary{
		MeanAbsoluteError: stat.Mean(errs, nil),
		MaxAbsoluteError:  floats.Max(errs),
		Count:             len(errs),
	}, nil
}

// BuildSeries joins both datasets, keeps stationID and summarises it.
// An unknown station gives an empty series with a nil Summary.
func BuildSeries(observed []types.HourlyObservation, predicted []types.HourlyPrediction, stationID string, windowHours int) types.StationSeries {
	records := FilterStation(Join(observed, predicted), stationID)
	series := types.StationSeries{
		StationID:   stationID,
		WindowHours: windowHours,
		Records:     records,
	}
	if summary, err := Summarize(records); err == nil {
		series.Summary = &summary
	}
	return series
}

// StationCatalog joins both datasets and returns their common stations.
func StationCatalog(observed []types.HourlyObservation, predicted []types.HourlyPrediction) []string {
	return Catalog(Join(observed, predicted))
}
