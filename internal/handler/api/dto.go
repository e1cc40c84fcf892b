package api

import (
	"time"

	"MandiCast/internal/domain/models"
	"MandiCast/internal/usecase"
)

type DistrictsResponse struct {
	Districts []string `json:"districts"`
	Total     int      `json:"total"`
}

type DistrictResponse struct {
	District     string   `json:"district"`
	Markets      []string `json:"markets"`
	Crops        []string `json:"crops"`
	TotalMarkets int      `json:"total_markets"`
}

type ForecastResponse struct {
	Market           string    `json:"market"`
	Crop             string    `json:"crop"`
	District         string    `json:"district"`
	Current          float64   `json:"current"`
	Day30            float64   `json:"day_30"`
	Day60            float64   `json:"day_60"`
	Day90            float64   `json:"day_90"`
	Currency         string    `json:"currency"`
	Unit             string    `json:"unit"`
	CurrentSource    string    `json:"current_source"`
	PredictionSource string    `json:"prediction_source"`
	Timestamp        time.Time `json:"timestamp"`
}

func toForecastResponse(f *models.PriceForecast) ForecastResponse {
	return ForecastResponse{
		Market:           f.Market,
		Crop:             f.Crop,
		District:         f.District,
		Current:          f.Current,
		Day30:            f.Day30,
		Day60:            f.Day60,
		Day90:            f.Day90,
		Currency:         f.Currency,
		Unit:             f.Unit,
		CurrentSource:    f.CurrentSource,
		PredictionSource: f.PredictionSource,
		Timestamp:        f.Timestamp,
	}
}

type CropQuoteResponse struct {
	Crop        string  `json:"crop"`
	Current     float64 `json:"current"`
	Day30       float64 `json:"day_30"`
	Day60       float64 `json:"day_60"`
	Day90       float64 `json:"day_90"`
	Placeholder bool    `json:"placeholder,omitempty"`
}

func toQuotes(qs []models.CropQuote) []CropQuoteResponse {
	out := make([]CropQuoteResponse, 0, len(qs))
	for _, q := range qs {
		out = append(out, CropQuoteResponse{
			Crop:        q.Crop,
			Current:     q.Current,
			Day30:       q.Day30,
			Day60:       q.Day60,
			Day90:       q.Day90,
			Placeholder: q.Placeholder,
		})
	}
	return out
}

type MarketPricesResponse struct {
	District   string              `json:"district"`
	Market     string              `json:"market"`
	CropsCount int                 `json:"crops_count"`
	Prices     []CropQuoteResponse `json:"prices"`
}

type DistrictMarketResponse struct {
	Market string              `json:"market"`
	Crops  []CropQuoteResponse `json:"crops"`
}

type DistrictPricesResponse struct {
	District string                   `json:"district"`
	Markets  []DistrictMarketResponse `json:"markets"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
}

type HistoryResponse struct {
	District string         `json:"district"`
	Market   string         `json:"market"`
	Crop     string         `json:"crop"`
	Count    int            `json:"count"`
	Points   []HistoryPoint `json:"points"`
}

func toHistoryResponse(r *usecase.GetHistoryResult) HistoryResponse {
	pts := make([]HistoryPoint, 0, len(r.Points))
	for _, p := range r.Points {
		pts = append(pts, HistoryPoint{Date: p.Date.Format("2006-01-02"), Price: p.Price})
	}
	return HistoryResponse{District: r.District, Market: r.Market, Crop: r.Crop, Count: r.Count, Points: pts}
}

type HealthResponse struct {
	Status       string `json:"status"`
	CSVLoaded    bool   `json:"csv_loaded"`
	Records      int    `json:"records"`
	ModelsLoaded int    `json:"models_loaded"`
	Database     string `json:"database"`
}
