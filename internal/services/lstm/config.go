package lstm

import "fmt"

// Config fixes the network shape and optimizer settings.
type Config struct {
	Lookback        int     `json:"lookback"`
	Hidden          int     `json:"hidden"`
	DenseUnits      int     `json:"dense_units"`
	Dropout         float64 `json:"dropout"`
	LearningRate    float64 `json:"learning_rate"`
	ValidationSplit float64 `json:"validation_split"`
	Seed            uint64  `json:"seed"`
}

// DefaultConfig is LSTM(50) -> Dropout(0.2) -> LSTM(50) -> Dropout(0.2) ->
// Dense(25, relu) -> Dense(1), Adam(0.001), 20% trailing validation.
func DefaultConfig() Config {
	return Config{
		Lookback:        30,
		Hidden:          50,
		DenseUnits:      25,
		Dropout:         0.2,
		LearningRate:    0.001,
		ValidationSplit: 0.2,
		Seed:            42,
	}
}

// Validate rejects shapes the network cannot be built with.
func (c Config) Validate() error {
	if c.Lookback <= 0 || c.Hidden <= 0 || c.DenseUnits <= 0 {
		return fmt.Errorf("lstm config: lookback, hidden and dense_units must be positive")
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("lstm config: dropout must be in [0,1), got %v", c.Dropout)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("lstm config: learning_rate must be positive")
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("lstm config: validation_split must be in [0,1), got %v", c.ValidationSplit)
	}
	return nil
}
