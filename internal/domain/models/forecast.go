package models

import "time"

// Current-price sources.
const (
	SourceLiveFeed   = "live feed"
	SourceHistorical = "historical fallback"
)

// Prediction sources.
const (
	SourceModel = "model"
	SourceTrend = "trend"
)

// Trend ratios applied to the current price.
const (
	TrendDay30 = 1.04
	TrendDay60 = 1.08
	TrendDay90 = 1.12
)

// DefaultPrice is used when neither the live feed nor the dataset has a price.
const DefaultPrice = 2500.0

// PriceForecast is the externally visible forecast for one (market, crop).
// Note: no transport (json/http) concerns here.
type PriceForecast struct {
	Market           string
	Crop             string
	District         string
	Current          float64
	Day30            float64
	Day60            float64
	Day90            float64
	Currency         string
	Unit             string
	CurrentSource    string
	PredictionSource string
	Timestamp        time.Time
}

// CropQuote is one entry of an aggregate response.
type CropQuote struct {
	Crop        string
	Current     float64
	Day30       float64
	Day60       float64
	Day90       float64
	Placeholder bool
}

// PlaceholderQuote is substituted for any pair that fails inside an aggregate.
func PlaceholderQuote(crop string) CropQuote {
	return CropQuote{
		Crop:        crop,
		Current:     2500,
		Day30:       2600,
		Day60:       2700,
		Day90:       2800,
		Placeholder: true,
	}
}

// Quote reduces a forecast to its aggregate entry.
func (f *PriceForecast) Quote() CropQuote {
	return CropQuote{
		Crop:    f.Crop,
		Current: f.Current,
		Day30:   f.Day30,
		Day60:   f.Day60,
		Day90:   f.Day90,
	}
}

// MarketQuotes is every crop of one market.
type MarketQuotes struct {
	District string
	Market   string
	Crops    []CropQuote
}

// DistrictQuotes is every market of one district.
type DistrictQuotes struct {
	District string
	Markets  []MarketQuotes
}
