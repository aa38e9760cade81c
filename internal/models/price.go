package models

import (
	"time"
)

// GranularityDaily is the only granularity the daily-bar pipeline writes.
// The upsert key includes granularity so intraday data can coexist later.
const GranularityDaily = "DAILY"

// StagedRow is the transient, file-scoped representation of one input row
// after column-name normalization. Fields stay raw strings; nil means the
// source column was absent or empty. Lives only for one load attempt.
type StagedRow struct {
	Symbol     *string
	Date       *string
	Open       *string
	High       *string
	Low        *string
	Close      *string
	Volume     *string
	AdjClose   *string
	SourceFile string
	RowNum     int
}

// PriceRecord is a validated canonical daily bar ready for persistence.
// Unique on (asset_id, price_date, source_id, granularity); upserts are
// last-write-wins with no history retained.
type PriceRecord struct {
	AssetID     int64
	BatchID     int64
	SourceID    int64
	PriceDate   time.Time
	Granularity string
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      *int64   // nullable
	AdjClose    *float64 // nullable
}

// CheckOHLC reports whether the bar satisfies the OHLC invariant:
// high >= max(open, close), low <= min(open, close), high >= low, and all
// four prices strictly positive.
func (p PriceRecord) CheckOHLC() bool {
	return ValidOHLC(p.Open, p.High, p.Low, p.Close)
}

// ValidOHLC is the OHLC invariant over bare values, shared by the quality
// scorer and the price loader so the two can never disagree.
func ValidOHLC(open, high, low, close float64) bool {
	if open <= 0 || high <= 0 || low <= 0 || close <= 0 {
		return false
	}
	if high < open || high < close || high < low {
		return false
	}
	if low > open || low > close {
		return false
	}
	return true
}
