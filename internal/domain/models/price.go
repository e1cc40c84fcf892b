package models

import "time"

// Source column names of the historical mandi dataset.
const (
	ColMarket   = "Market Name"
	ColVariety  = "Variety"
	ColGroup    = "Group"
	ColDistrict = "District Name"
	ColDate     = "Reported Date"
	ColPrice    = "Modal Price (Rs./Quintal)"
)

// RawRecord is one row of the historical dataset.
// Extra holds every column the pipeline does not interpret.
type RawRecord struct {
	Market   string
	Variety  string
	Group    string
	District string
	Date     time.Time
	Price    float64
	HasPrice bool
	Extra    map[string]string
}

// Table is the immutable in-memory dataset loaded at start-up.
type Table struct {
	Source  string
	Columns map[string]bool
	Records []RawRecord
}

// HasColumn reports whether the source schema carried the named column.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	return t.Columns[name]
}

// Len returns the number of loaded records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// PricePoint is a single (date, price) observation.
type PricePoint struct {
	Date  time.Time
	Price float64
}

// PriceSeries is ordered strictly by date, one point per date.
type PriceSeries struct {
	Market string
	Crop   string
	Points []PricePoint
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// Prices returns the price column in order.
func (s PriceSeries) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Latest returns the most recent point.
func (s PriceSeries) Latest() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Tail returns the last n points (or all of them when fewer exist).
func (s PriceSeries) Tail(n int) PriceSeries {
	if n <= 0 || n >= len(s.Points) {
		return s
	}
	return PriceSeries{Market: s.Market, Crop: s.Crop, Points: s.Points[len(s.Points)-n:]}
}
