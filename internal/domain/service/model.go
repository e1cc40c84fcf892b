package service

import "io"

// PriceModel maps a scaled lookback window to the next scaled value.
type PriceModel interface {
	Predict(window []float64) (float64, error)
}

// PersistentModel is a PriceModel that can serialize itself.
type PersistentModel interface {
	PriceModel
	Save(w io.Writer) error
}
