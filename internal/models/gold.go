package models

import "time"

// GoldPrice is one clean daily bar as served from the gold view.
type GoldPrice struct {
	Symbol    string    `json:"symbol"`
	PriceDate time.Time `json:"price_date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    *int64    `json:"volume,omitempty"`
	AdjClose  *float64  `json:"adj_close,omitempty"`
}

// SymbolSummary aggregates recent gold prices for one symbol.
type SymbolSummary struct {
	Symbol     string    `json:"symbol"`
	Days       int       `json:"days"`
	RowCount   int64     `json:"row_count"`
	FirstDate  time.Time `json:"first_date"`
	LastDate   time.Time `json:"last_date"`
	MinClose   float64   `json:"min_close"`
	MaxClose   float64   `json:"max_close"`
	AvgClose   float64   `json:"avg_close"`
	CloseStdev *float64  `json:"close_stdev,omitempty"`
	AvgVolume  *float64  `json:"avg_volume,omitempty"`
}

// DateRange is the span of dates present in the gold view.
type DateRange struct {
	MinDate *time.Time `json:"min_date"`
	MaxDate *time.Time `json:"max_date"`
}

// WarehouseHealth is the counter set exposed on the health endpoint.
type WarehouseHealth struct {
	Assets       int64 `json:"assets"`
	RawPrices    int64 `json:"raw_prices"`
	GoldPrices   int64 `json:"gold_prices"`
	Batches      int64 `json:"batches"`
	FailedBatches int64 `json:"failed_batches"`
}
