package models

import "time"

// PredictionRecord is one audit-log entry for a served forecast.
type PredictionRecord struct {
	ID           string    `json:"id"`
	Market       string    `json:"market"`
	Crop         string    `json:"crop"`
	Date         time.Time `json:"date"`
	CurrentPrice float64   `json:"current_price"`
	Price30      float64   `json:"price_30"`
	Price60      float64   `json:"price_60"`
	Price90      float64   `json:"price_90"`
	CreatedAt    time.Time `json:"created_at"`
}

// Key is the partition/message key used by the kafka sink.
func (r *PredictionRecord) Key() string { return r.Market + "|" + r.Crop }

// AuditMessageType tags prediction records on the redis work queue.
const AuditMessageType = "audit.record"
