package models

import (
	"time"
)

// QualityReport is the ephemeral result of evaluating one batch of staged
// rows. Only the scalar Score is durably stored (on the batch audit row).
type QualityReport struct {
	BatchName    string         `json:"batch_name"`
	GeneratedAt  time.Time      `json:"generated_at"`
	RowCount     int            `json:"row_count"`
	Score        float64        `json:"quality_score"`
	SubScores    SubScores      `json:"sub_scores"`
	Duplicates   DuplicateStats `json:"duplicates"`
	Outliers     OutlierStats   `json:"outliers"`
	SummaryStats SummaryStats   `json:"summary_stats"`
}

// SubScores breaks the composite score into its four equally-weighted parts,
// each on a 0-100 scale.
type SubScores struct {
	Completeness float64 `json:"completeness"`
	Validity     float64 `json:"validity"`
	Consistency  float64 `json:"consistency"`
	Uniqueness   float64 `json:"uniqueness"`
}

// DuplicateStats counts rows sharing a (symbol, date) key with at least one
// other row.
type DuplicateStats struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// RowRef points back at a staged row for reporting.
type RowRef struct {
	RowNum int    `json:"row_number"`
	Symbol string `json:"symbol"`
	Date   string `json:"date"`
}

// OutlierStats lists rows flagged by range checks. These are advisory; they
// do not affect the score directly.
type OutlierStats struct {
	NegativePrices []RowRef `json:"negative_prices"`
	ExtremeMoves   []RowRef `json:"extreme_moves"` // >50% day-over-day close change
	ZeroVolumes    []RowRef `json:"zero_volumes"`
}

// SummaryStats describes the shape of the batch.
type SummaryStats struct {
	UniqueSymbols int    `json:"unique_symbols"`
	MinDate       string `json:"min_date"`
	MaxDate       string `json:"max_date"`
}
