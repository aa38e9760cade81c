package quality

import (
	"sort"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// Report evaluates a batch of staged rows and produces the full quality
// report: the composite score plus duplicate statistics, outlier lists, and
// summary statistics. Only the score is durably stored; the rest is for
// operators and logs.
func Report(rows []models.StagedRow, batchName string) models.QualityReport {
	report := models.QualityReport{
		BatchName:   batchName,
		GeneratedAt: time.Now().UTC(),
		RowCount:    len(rows),
	}

	report.Score = Score(rows)
	if len(rows) > 0 {
		report.SubScores = SubScores(rows)
	}

	dupes := duplicateRowCount(rows)
	report.Duplicates = models.DuplicateStats{Count: dupes}
	if len(rows) > 0 {
		report.Duplicates.Percentage = float64(dupes) / float64(len(rows)) * 100
	}

	report.Outliers = findOutliers(rows)
	report.SummaryStats = summaryStats(rows)

	log.Infof("quality report for %s: score=%.1f rows=%d duplicates=%d",
		batchName, report.Score, report.RowCount, dupes)
	return report
}

// findOutliers runs the advisory range checks: negative prices, day-over-day
// close moves above 50% (per symbol, in date order), and zero-volume rows.
func findOutliers(rows []models.StagedRow) models.OutlierStats {
	var out models.OutlierStats

	for _, r := range rows {
		for _, f := range []*string{r.Open, r.High, r.Low, r.Close} {
			if v, ok := parsePrice(f); ok && v < 0 {
				out.NegativePrices = append(out.NegativePrices, rowRef(r))
				break
			}
		}
		if r.Volume != nil {
			if v, err := strconv.ParseFloat(*r.Volume, 64); err == nil && v == 0 {
				out.ZeroVolumes = append(out.ZeroVolumes, rowRef(r))
			}
		}
	}

	out.ExtremeMoves = extremeMoves(rows)
	return out
}

type datedClose struct {
	row   models.StagedRow
	date  time.Time
	close float64
}

// extremeMoves flags rows whose close changed more than 50% from the prior
// trading day of the same symbol. Rows without a parseable symbol, date, and
// close cannot participate.
func extremeMoves(rows []models.StagedRow) []models.RowRef {
	bySymbol := make(map[string][]datedClose)
	for _, r := range rows {
		if r.Symbol == nil || r.Date == nil {
			continue
		}
		date, err := time.Parse(DateLayout, *r.Date)
		if err != nil {
			continue
		}
		close, ok := parsePrice(r.Close)
		if !ok {
			continue
		}
		bySymbol[*r.Symbol] = append(bySymbol[*r.Symbol], datedClose{row: r, date: date, close: close})
	}

	var flagged []models.RowRef
	for _, series := range bySymbol {
		sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })
		for i := 1; i < len(series); i++ {
			prev := series[i-1].close
			if prev == 0 {
				continue
			}
			pctChange := (series[i].close - prev) / prev * 100
			if pctChange > 50 || pctChange < -50 {
				flagged = append(flagged, rowRef(series[i].row))
			}
		}
	}

	// Deterministic output regardless of map iteration order.
	sort.Slice(flagged, func(i, j int) bool { return flagged[i].RowNum < flagged[j].RowNum })
	return flagged
}

func summaryStats(rows []models.StagedRow) models.SummaryStats {
	var stats models.SummaryStats
	symbols := make(map[string]struct{})
	for _, r := range rows {
		if r.Symbol != nil {
			symbols[*r.Symbol] = struct{}{}
		}
		if r.Date != nil {
			if stats.MinDate == "" || *r.Date < stats.MinDate {
				stats.MinDate = *r.Date
			}
			if *r.Date > stats.MaxDate {
				stats.MaxDate = *r.Date
			}
		}
	}
	stats.UniqueSymbols = len(symbols)
	return stats
}

func rowRef(r models.StagedRow) models.RowRef {
	ref := models.RowRef{RowNum: r.RowNum}
	if r.Symbol != nil {
		ref.Symbol = *r.Symbol
	}
	if r.Date != nil {
		ref.Date = *r.Date
	}
	return ref
}
