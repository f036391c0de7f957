package domain

import (
	"fmt"
	"time"
)

// ReturnPoint is one periodic return.
type ReturnPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Return    float64   `json:"return"`
}

// ReturnSeries is an ordered sequence of periodic returns with strictly increasing timestamps.
// Producers hand it over once; consumers never modify it.
type ReturnSeries []ReturnPoint

// Values returns the bare return values in order.
func (s ReturnSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Return
	}
	return out
}

// Validate checks timestamp ordering.
func (s ReturnSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Timestamp.After(s[i-1].Timestamp) {
			return fmt.Errorf("%w: index %d (%s) after %s", ErrUnorderedReturns, i,
				s[i].Timestamp.Format(time.RFC3339), s[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Within returns the points whose timestamps fall inside r.
func (s ReturnSeries) Within(r DateRange) ReturnSeries {
	var out ReturnSeries
	for _, p := range s {
		if r.Contains(p.Timestamp) {
			out = append(out, p)
		}
	}
	return out
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
