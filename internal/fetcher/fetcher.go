package fetcher

import (
	"context"
	"time"
)

// Candle is one aggregated interval of the tracked index.
type Candle struct {
	Timestamp time.Time
	Close     float64
}

// DaySummary carries the current trading day figures.
type DaySummary struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// QuoteFetcher retrieves the latest index value and the day summary.
type QuoteFetcher interface {
	FetchLastValue(ctx context.Context) (time.Time, float64, error)
	FetchDaySummary(ctx context.Context) (DaySummary, error)
}

// CandleFetcher retrieves historical candles for a time window.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, start, end time.Time) ([]Candle, error)
}
