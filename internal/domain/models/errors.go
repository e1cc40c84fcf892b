package models

import "errors"

// Client-visible errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrCropNotServed = errors.New("crop not served in this market")
)

// Recoverable errors. These never reach the query surface; the forecast
// service turns them into fallbacks.
var (
	ErrNoData           = errors.New("no data")
	ErrInsufficientData = errors.New("insufficient data")
	ErrModelNotReady    = errors.New("model not ready")
	ErrModelAbsent      = errors.New("model absent")
	ErrFeedUnavailable  = errors.New("price feed unavailable")
)
