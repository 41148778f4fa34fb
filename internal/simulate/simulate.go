// Package simulate generates plausible hourly ride counts and predictions for
// local development and smoke tests.
package simulate

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"bikeshare-monitor/pkg/messages"

	"gonum.org/v1/gonum/floats"
)

const (
	dayPeriodSec = 24 * 60 * 60
	// Model version stamped on generated predictions.
	ModelVersion = "simulated"
)

type Options struct {
	Stations int
	Hours    int
	Seed     uint64
	// MissingPredictionRate is the fraction of hours left without a prediction.
	MissingPredictionRate float64
	Now                   func() time.Time
}

type Dataset struct {
	Rides       []messages.RideCount
	Predictions []messages.Prediction
}

// GenerateHours returns n consecutive hour starts ending at the hour containing now.
func GenerateHours(n int, now func() time.Time) []time.Time {
	last := messages.TruncateHour(now())
	t := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		t = append(t, last.Add(-time.Duration(i)*time.Hour))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func (s Series) Scale(c float64) Series {
	floats.Scale(c, s)
	return s
}

// ClampNonNegative replaces negative values with zero.
func (s Series) ClampNonNegative() Series {
	for i, v := range s {
		if v < 0 {
			s[i] = 0
		}
	}
	return s
}

func GenerateConst(n int, val float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = val
	}
	return y
}

// GenerateDailyWave is a 24h sinusoid peaking at peakHour UTC.
func GenerateDailyWave(t []time.Time, amp float64, peakHour int) Series {
	offset := float64(dayPeriodSec/4 - peakHour*3600)
	y := make(Series, len(t))
	for i := range t {
		y[i] = amp * math.Sin(2.0*math.Pi/dayPeriodSec*(float64(t[i].Unix())+offset))
	}
	return y
}

func GenerateNoise(r *rand.Rand, n int, scale float64) Series {
	y := make(Series, n)
	for i := range y {
		y[i] = r.NormFloat64() * scale
	}
	return y
}

// Generate builds rides and predictions for Stations stations over the last
// Hours hours. Observed rides follow the station's daily profile plus noise;
// predictions follow the same profile with independent error.
func Generate(opts Options) Dataset {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	r := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	hours := GenerateHours(opts.Hours, opts.Now)

	var ds Dataset
	for s := 1; s <= opts.Stations; s++ {
		stationID := strconv.Itoa(s)
		base := 4 + r.Float64()*8
		peak := 7 + r.IntN(12)
		profile := GenerateConst(len(hours), base).Add(GenerateDailyWave(hours, base*0.8, peak))

		observed := append(Series(nil), profile...).Add(GenerateNoise(r, len(hours), base*0.25)).ClampNonNegative()
		predicted := append(Series(nil), profile...).Scale(1 + (r.Float64()-0.5)*0.2).
			Add(GenerateNoise(r, len(hours), base*0.15)).ClampNonNegative()

		for i, h := range hours {
			rides := int(math.Round(observed[i]))
			ds.Rides = append(ds.Rides, messages.RideCount{StationID: stationID, Hour: h, Rides: &rides})

			if r.Float64() < opts.MissingPredictionRate {
				continue
			}
			demand := math.Round(predicted[i]*100) / 100
			ds.Predictions = append(ds.Predictions, messages.Prediction{
				StationID:       stationID,
				Hour:            h,
				PredictedDemand: &demand,
				ModelVersion:    ModelVersion,
			})
		}
	}
	return ds
}
