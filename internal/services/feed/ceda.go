package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	xhttp "MandiCast/pkg/http"
	applogger "MandiCast/pkg/logger"
	xutil "MandiCast/pkg/util"
)

// DefaultBaseURL is the public CEDA agri-market API.
const DefaultBaseURL = "https://api.ceda.ashoka.edu.in/v1"

// Config holds the CEDA client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
	Limit   int
}

// CEDAClient fetches the current quote for a commodity in a market.
type CEDAClient struct {
	client  *xhttp.Client
	limit   int
	log     *applogger.Logger
	metrics domrepo.Metrics
}

// NewCEDAClient builds a client. logger and metrics may be nil.
func NewCEDAClient(cfg Config, l *applogger.Logger, m domrepo.Metrics) *CEDAClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1
	}
	return &CEDAClient{
		client: xhttp.NewClient(
			xhttp.WithBaseURL(cfg.BaseURL),
			xhttp.WithTimeout(cfg.Timeout),
			xhttp.WithRetry(cfg.Retries, 200*time.Millisecond),
			xhttp.WithHeader("X-API-Key", cfg.APIKey),
		),
		limit:   cfg.Limit,
		log:     l,
		metrics: m,
	}
}

type quote struct {
	Price json.RawMessage `json:"price"`
}

// CurrentPrice returns the first quoted price. Every failure, including an
// empty list or a non-positive price, wraps models.ErrFeedUnavailable.
func (c *CEDAClient) CurrentPrice(ctx context.Context, crop, market string) (float64, error) {
	start := time.Now()
	price, err := c.fetch(ctx, crop, market)
	if c.metrics != nil {
		c.metrics.RecordLatency("feed", time.Since(start).Seconds())
	}
	if err != nil {
		if c.log != nil {
			c.log.Debug("live feed unavailable",
				applogger.String("crop", crop),
				applogger.String("market", market),
				applogger.Error(err),
			)
		}
		return 0, fmt.Errorf("ceda %s/%s: %w: %v", market, crop, models.ErrFeedUnavailable, err)
	}
	return price, nil
}

func (c *CEDAClient) fetch(ctx context.Context, crop, market string) (float64, error) {
	var raw []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    "/commodities",
		QueryParams: map[string][]string{
			"commodity": {crop},
			"market":    {market},
			"limit":     {strconv.Itoa(c.limit)},
		},
	}, &raw)
	if err != nil {
		return 0, err
	}

	quotes, err := decodeQuotes(raw)
	if err != nil {
		return 0, err
	}
	if len(quotes) == 0 {
		return 0, fmt.Errorf("no quotes")
	}
	return parsePrice(quotes[0].Price)
}

// decodeQuotes accepts a bare list or an object wrapping it under "data".
func decodeQuotes(raw []byte) ([]quote, error) {
	raw = bytes.TrimSpace(raw)
	var quotes []quote
	if len(raw) > 0 && raw[0] == '{' {
		var env struct {
			Data []quote `json:"data"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode quotes: %w", err)
		}
		return env.Data, nil
	}
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return nil, fmt.Errorf("decode quotes: %w", err)
	}
	return quotes, nil
}

// parsePrice accepts a JSON number or a numeric string.
func parsePrice(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("quote has no price")
	}
	var p float64
	if err := json.Unmarshal(raw, &p); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("price %s: not a number", raw)
		}
		var ok bool
		if p, ok = xutil.ParseFloat(s); !ok {
			return 0, fmt.Errorf("price %q: not a number", s)
		}
	}
	if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
		return 0, fmt.Errorf("price %v out of range", p)
	}
	return p, nil
}

var _ domrepo.PriceFeed = (*CEDAClient)(nil)
