package series

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	xutil "MandiCast/pkg/util"

	"golang.org/x/text/cases"
)

// Extractor filters the loaded dataset down to single (market, crop) series.
// It never mutates the table and is safe for concurrent use.
type Extractor struct {
	table  *models.Table
	folded []foldedRow

	hasMarket bool
	hasCrop   bool
	hasPrice  bool
}

type foldedRow struct {
	market  string
	variety string
	group   string
}

type dedupKey struct {
	market, variety, group, district string
	date                             time.Time
	price                            float64
}

// NewExtractor indexes t. A nil table yields an extractor that always
// reports no data.
func NewExtractor(t *models.Table) *Extractor {
	e := &Extractor{table: t}
	if t == nil {
		return e
	}
	e.hasMarket = t.HasColumn(models.ColMarket)
	e.hasCrop = t.HasColumn(models.ColVariety) || t.HasColumn(models.ColGroup)
	e.hasPrice = t.HasColumn(models.ColPrice)

	fold := cases.Fold()
	e.folded = make([]foldedRow, len(t.Records))
	for i, r := range t.Records {
		e.folded[i] = foldedRow{
			market:  fold.String(r.Market),
			variety: fold.String(r.Variety),
			group:   fold.String(r.Group),
		}
	}
	return e
}

// Filter returns the records whose market contains market and whose variety
// or group contains crop, case-insensitively, sorted ascending by date.
func (e *Extractor) Filter(market, crop string) ([]models.RawRecord, error) {
	if e.table == nil {
		return nil, fmt.Errorf("dataset not loaded: %w", models.ErrNoData)
	}
	if market != "" && !e.hasMarket {
		return nil, fmt.Errorf("column %q missing: %w", models.ColMarket, models.ErrNoData)
	}

	fold := cases.Fold()
	qm := fold.String(strings.TrimSpace(market))
	qc := fold.String(strings.TrimSpace(crop))
	filterCrop := qc != "" && e.hasCrop

	seen := make(map[dedupKey]struct{})
	out := make([]models.RawRecord, 0, 64)
	for i, f := range e.folded {
		if qm != "" && !strings.Contains(f.market, qm) {
			continue
		}
		if filterCrop && !strings.Contains(f.variety, qc) && !strings.Contains(f.group, qc) {
			continue
		}
		r := e.table.Records[i]
		k := dedupKey{r.Market, r.Variety, r.Group, r.District, r.Date, r.Price}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("market %q crop %q: %w", market, crop, models.ErrNoData)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Series returns the (date, price) series for market and crop. Records that
// share a calendar day collapse to the one with the latest timestamp; equal
// timestamps keep the last one in file order.
func (e *Extractor) Series(market, crop string) (models.PriceSeries, error) {
	recs, err := e.Filter(market, crop)
	if err != nil {
		return models.PriceSeries{}, err
	}
	if !e.hasPrice {
		return models.PriceSeries{}, fmt.Errorf("column %q missing: %w", models.ColPrice, models.ErrNoData)
	}

	s := models.PriceSeries{Market: market, Crop: crop, Points: make([]models.PricePoint, 0, len(recs))}
	for _, r := range recs {
		if !r.HasPrice {
			continue
		}
		day := xutil.Day(r.Date)
		if n := len(s.Points); n > 0 && s.Points[n-1].Date.Equal(day) {
			s.Points[n-1].Price = r.Price
			continue
		}
		s.Points = append(s.Points, models.PricePoint{Date: day, Price: r.Price})
	}
	if len(s.Points) == 0 {
		return models.PriceSeries{}, fmt.Errorf("market %q crop %q has no prices: %w", market, crop, models.ErrNoData)
	}
	return s, nil
}

// LatestPrice returns the most recent price for market and crop.
func (e *Extractor) LatestPrice(market, crop string) (float64, error) {
	s, err := e.Series(market, crop)
	if err != nil {
		return 0, err
	}
	p, _ := s.Latest()
	return p.Price, nil
}

// Loaded reports whether a dataset was loaded at start-up.
func (e *Extractor) Loaded() bool { return e.table != nil }

// Len returns the number of loaded records.
func (e *Extractor) Len() int { return e.table.Len() }

var _ domrepo.SeriesSource = (*Extractor)(nil)
