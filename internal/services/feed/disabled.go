package feed

import (
	"context"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
)

// Disabled is the feed used when no API key is configured.
type Disabled struct{}

func (Disabled) CurrentPrice(context.Context, string, string) (float64, error) {
	return 0, models.ErrFeedUnavailable
}

var _ domrepo.PriceFeed = Disabled{}
