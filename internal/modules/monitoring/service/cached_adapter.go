package service

import (
	"context"
	"time"

	"bikeshare-monitor/internal/cache"
	"bikeshare-monitor/internal/modules/monitoring/types"
)

type cachedAdapter struct {
	rides       *cache.Memo[int, []types.HourlyObservation]
	predictions *cache.Memo[int, []types.HourlyPrediction]
}

// NewCachedAdapter memoises both fetches per window for ttl. Failed fetches
// are not stored. A zero ttl returns inner unchanged.
func NewCachedAdapter(inner types.DataAdapter, ttl time.Duration, opts ...cache.Option) types.DataAdapter {
	if ttl <= 0 {
		return inner
	}
	return &cachedAdapter{
		rides:       cache.New[int, []types.HourlyObservation](ttl, inner.FetchObservedRides, opts...),
		predictions: cache.New[int, []types.HourlyPrediction](ttl, inner.FetchPredictedDemand, opts...),
	}
}

func (c *cachedAdapter) FetchObservedRides(ctx context.Context, windowHours int) ([]types.HourlyObservation, error) {
	return c.rides.Get(ctx, windowHours)
}

func (c *cachedAdapter) FetchPredictedDemand(ctx context.Context, windowHours int) ([]types.HourlyPrediction, error) {
	return c.predictions.Get(ctx, windowHours)
}
