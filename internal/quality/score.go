// Package quality computes the composite data-quality score that gates
// whether a staged batch may be loaded into the warehouse.
package quality

import (
	"math"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// DateLayout is the canonical ISO date format accepted by the pipeline.
const DateLayout = "2006-01-02"

// Score computes the 0-100 composite quality score as the average of four
// equally-weighted sub-scores: completeness, validity, consistency, and
// uniqueness. Empty input scores 0 exactly: zero cells means zero
// completeness, not 100%, even though the uniqueness sub-score alone would
// be vacuously 100.
func Score(rows []models.StagedRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	sub := SubScores(rows)
	total := (sub.Completeness + sub.Validity + sub.Consistency + sub.Uniqueness) / 4
	return round2(total)
}

// SubScores computes the four sub-scores individually, each on a 0-100 scale.
func SubScores(rows []models.StagedRow) models.SubScores {
	sub := models.SubScores{
		Completeness: completeness(rows),
		Validity:     validity(rows),
		Consistency:  consistency(rows),
		Uniqueness:   uniqueness(rows),
	}
	log.Debugf("quality sub-scores: completeness=%.1f validity=%.1f consistency=%.1f uniqueness=%.1f",
		sub.Completeness, sub.Validity, sub.Consistency, sub.Uniqueness)
	return sub
}

// completeness is the fraction of non-null cells among the required fields
// (symbol, date, close) across all rows.
func completeness(rows []models.StagedRow) float64 {
	totalCells := len(rows) * 3
	if totalCells == 0 {
		return 0
	}
	missing := 0
	for _, r := range rows {
		if r.Symbol == nil {
			missing++
		}
		if r.Date == nil {
			missing++
		}
		if r.Close == nil {
			missing++
		}
	}
	return float64(totalCells-missing) / float64(totalCells) * 100
}

// validity is the fraction of rows whose present date parses as ISO and
// whose present numeric fields all parse as numbers. Absent fields do not
// invalidate a row; completeness covers those.
func validity(rows []models.StagedRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	valid := 0
	for _, r := range rows {
		if rowIsValid(r) {
			valid++
		}
	}
	return float64(valid) / float64(len(rows)) * 100
}

func rowIsValid(r models.StagedRow) bool {
	if r.Date != nil {
		if _, err := time.Parse(DateLayout, *r.Date); err != nil {
			return false
		}
	}
	for _, f := range []*string{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if f == nil {
			continue
		}
		if _, err := strconv.ParseFloat(*f, 64); err != nil {
			return false
		}
	}
	return true
}

// consistency is the fraction of OHLC-complete rows satisfying the OHLC
// invariant. Rows missing any of the four price fields, or with a price that
// does not parse, are excluded from the denominator rather than counted
// against it.
func consistency(rows []models.StagedRow) float64 {
	consistent, total := 0, 0
	for _, r := range rows {
		open, ok1 := parsePrice(r.Open)
		high, ok2 := parsePrice(r.High)
		low, ok3 := parsePrice(r.Low)
		close, ok4 := parsePrice(r.Close)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			continue
		}
		total++
		if models.ValidOHLC(open, high, low, close) {
			consistent++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(consistent) / float64(total) * 100
}

// uniqueness is 1 minus the fraction of rows sharing a (symbol, date) key
// with at least one other row. Empty input is vacuously unique (100); the
// overall Score never sees this because it returns 0 on empty input first.
func uniqueness(rows []models.StagedRow) float64 {
	if len(rows) == 0 {
		return 100
	}
	dupes := duplicateRowCount(rows)
	return float64(len(rows)-dupes) / float64(len(rows)) * 100
}

// duplicateRowCount counts every row that is part of a (symbol, date) group
// of size > 1, not just the extras.
func duplicateRowCount(rows []models.StagedRow) int {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[dupKey(r)]++
	}
	dupes := 0
	for _, r := range rows {
		if counts[dupKey(r)] > 1 {
			dupes++
		}
	}
	return dupes
}

func dupKey(r models.StagedRow) string {
	sym, date := "", ""
	if r.Symbol != nil {
		sym = *r.Symbol
	}
	if r.Date != nil {
		date = *r.Date
	}
	return sym + "\x00" + date
}

func parsePrice(s *string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
