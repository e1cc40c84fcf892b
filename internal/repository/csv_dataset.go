package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"MandiCast/internal/domain/models"
	applogger "MandiCast/pkg/logger"
	xutil "MandiCast/pkg/util"
)

// LoadDataset reads the historical price CSV at path.
func LoadDataset(path string, l *applogger.Logger) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	start := time.Now()
	t, skipped, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	t.Source = path
	if l != nil {
		l.Info("dataset loaded",
			applogger.String("path", path),
			applogger.Int("records", t.Len()),
			applogger.Int("skipped", skipped),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return t, nil
}

// ReadDataset parses CSV rows into a Table. Rows whose reported date cannot be
// parsed are skipped and counted. A missing or non-finite price leaves the row
// in place with HasPrice false.
func ReadDataset(r io.Reader) (*models.Table, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("empty file")
		}
		return nil, 0, fmt.Errorf("header: %w", err)
	}

	idx := make(map[string]int, len(header))
	cols := make(map[string]bool, len(header))
	names := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		names[i] = h
		idx[h] = i
		cols[h] = true
	}
	if !cols[models.ColDate] {
		return nil, 0, fmt.Errorf("column %q is required", models.ColDate)
	}

	known := map[string]bool{
		models.ColMarket: true, models.ColVariety: true, models.ColGroup: true,
		models.ColDistrict: true, models.ColDate: true, models.ColPrice: true,
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	t := &models.Table{Columns: cols, Records: make([]models.RawRecord, 0, 4096)}
	skipped := 0
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, skipped, fmt.Errorf("line %d: %w", line, err)
		}

		date, ok := xutil.ParseDate(get(row, models.ColDate))
		if !ok {
			skipped++
			continue
		}
		rec := models.RawRecord{
			Market:   get(row, models.ColMarket),
			Variety:  get(row, models.ColVariety),
			Group:    get(row, models.ColGroup),
			District: get(row, models.ColDistrict),
			Date:     date,
		}
		if p, ok := xutil.ParseFloat(get(row, models.ColPrice)); ok && !math.IsNaN(p) && !math.IsInf(p, 0) {
			rec.Price = p
			rec.HasPrice = true
		}
		for i, v := range row {
			if i >= len(names) || known[names[i]] || v == "" {
				continue
			}
			if rec.Extra == nil {
				rec.Extra = make(map[string]string)
			}
			rec.Extra[names[i]] = v
		}
		t.Records = append(t.Records, rec)
	}
	return t, skipped, nil
}
