package window

import (
	"fmt"

	"MandiCast/internal/domain/models"
)

// DefaultLookback is the number of prices fed to the model.
const DefaultLookback = 30

// Set is a supervised training set built from one price series.
type Set struct {
	Windows [][]float64
	Labels  []float64
	Scaler  Scaler
}

// Len returns the number of (window, label) pairs.
func (s *Set) Len() int { return len(s.Windows) }

// Build scales the full series with a freshly fitted scaler and emits every
// contiguous lookback window paired with the value right after it.
func Build(series models.PriceSeries, lookback int) (*Set, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	n := series.Len()
	if n < lookback+1 {
		return nil, fmt.Errorf("series of %d points, need %d: %w", n, lookback+1, models.ErrInsufficientData)
	}

	prices := series.Prices()
	sc, err := FitScaler(prices)
	if err != nil {
		return nil, err
	}
	scaled := sc.TransformAll(prices)

	count := n - lookback
	set := &Set{
		Windows: make([][]float64, count),
		Labels:  make([]float64, count),
		Scaler:  sc,
	}
	for i := 0; i < count; i++ {
		w := make([]float64, lookback)
		copy(w, scaled[i:i+lookback])
		set.Windows[i] = w
		set.Labels[i] = scaled[i+lookback]
	}
	return set, nil
}

// Recent builds the inference window from the last lookback prices, scaled
// by a scaler fit on just those prices.
func Recent(series models.PriceSeries, lookback int) ([]float64, Scaler, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if series.Len() < lookback {
		return nil, Scaler{}, fmt.Errorf("series of %d points, need %d: %w", series.Len(), lookback, models.ErrInsufficientData)
	}
	prices := series.Tail(lookback).Prices()
	sc, err := FitScaler(prices)
	if err != nil {
		return nil, Scaler{}, err
	}
	return sc.TransformAll(prices), sc, nil
}
