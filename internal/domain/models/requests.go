package models

// Requests for market HTTP endpoints. Defined in domain for consistency and reuse.

type PriceRequest struct {
	Market string `param:"market" validate:"required,max=128"`
	Crop   string `param:"crop" validate:"required,max=64"`
}

type MarketRequest struct {
	Market string `param:"market" validate:"required,max=128"`
}

type DistrictRequest struct {
	District string `param:"district" validate:"required,max=64"`
}

type HistoryRequest struct {
	Market string `param:"market" validate:"required,max=128"`
	Crop   string `param:"crop" validate:"required,max=64"`
	Limit  int    `query:"limit" default:"90" validate:"gte=1,lte=5000"`
}
