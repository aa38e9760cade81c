package quality

import (
	"testing"

	"stockwarehouse/internal/models"
)

func TestReportCleanBatch(t *testing.T) {
	report := Report(cleanRows(5), "AAPL_daily.csv")
	if report.BatchName != "AAPL_daily.csv" {
		t.Errorf("unexpected batch name %q", report.BatchName)
	}
	if report.RowCount != 5 {
		t.Errorf("expected row count 5, got %d", report.RowCount)
	}
	if report.Score != 100 {
		t.Errorf("expected score 100, got %v", report.Score)
	}
	if report.Duplicates.Count != 0 || report.Duplicates.Percentage != 0 {
		t.Errorf("unexpected duplicates: %+v", report.Duplicates)
	}
	if len(report.Outliers.NegativePrices) != 0 || len(report.Outliers.ExtremeMoves) != 0 {
		t.Errorf("clean batch must have no outliers: %+v", report.Outliers)
	}
	if report.SummaryStats.UniqueSymbols != 1 {
		t.Errorf("expected 1 unique symbol, got %d", report.SummaryStats.UniqueSymbols)
	}
	if report.SummaryStats.MinDate != "2024-01-02" || report.SummaryStats.MaxDate != "2024-01-06" {
		t.Errorf("unexpected date range: %s..%s", report.SummaryStats.MinDate, report.SummaryStats.MaxDate)
	}
}

func TestReportEmptyBatch(t *testing.T) {
	report := Report(nil, "empty.csv")
	if report.Score != 0 {
		t.Errorf("empty batch must score 0, got %v", report.Score)
	}
	if report.RowCount != 0 {
		t.Errorf("expected row count 0, got %d", report.RowCount)
	}
	if report.Duplicates.Percentage != 0 {
		t.Errorf("empty batch duplicate percentage must be 0, got %v", report.Duplicates.Percentage)
	}
}

func TestReportDuplicatePercentage(t *testing.T) {
	rows := []models.StagedRow{
		row(1, "AAPL", "2024-01-02", "100", "105", "99", "104", ""),
		row(2, "AAPL", "2024-01-02", "100", "105", "99", "104", ""),
		row(3, "AAPL", "2024-01-03", "100", "105", "99", "104", ""),
		row(4, "AAPL", "2024-01-04", "100", "105", "99", "104", ""),
	}
	report := Report(rows, "dup.csv")
	if report.Duplicates.Count != 2 {
		t.Errorf("expected 2 duplicate rows, got %d", report.Duplicates.Count)
	}
	if report.Duplicates.Percentage != 50 {
		t.Errorf("expected 50%% duplicates, got %v", report.Duplicates.Percentage)
	}
}

func TestReportNegativePriceOutliers(t *testing.T) {
	rows := []models.StagedRow{
		row(1, "AAPL", "2024-01-02", "100", "105", "99", "104", ""),
		row(2, "AAPL", "2024-01-03", "-5", "105", "99", "104", ""),
	}
	report := Report(rows, "neg.csv")
	if len(report.Outliers.NegativePrices) != 1 {
		t.Fatalf("expected 1 negative price outlier, got %d", len(report.Outliers.NegativePrices))
	}
	if report.Outliers.NegativePrices[0].RowNum != 2 {
		t.Errorf("expected row 2 flagged, got %d", report.Outliers.NegativePrices[0].RowNum)
	}
}

func TestReportZeroVolumeOutliers(t *testing.T) {
	rows := []models.StagedRow{
		row(1, "AAPL", "2024-01-02", "100", "105", "99", "104", "0"),
		row(2, "AAPL", "2024-01-03", "100", "105", "99", "104", "1000"),
	}
	report := Report(rows, "zv.csv")
	if len(report.Outliers.ZeroVolumes) != 1 || report.Outliers.ZeroVolumes[0].RowNum != 1 {
		t.Errorf("expected row 1 flagged for zero volume, got %+v", report.Outliers.ZeroVolumes)
	}
}

func TestReportExtremeMoves(t *testing.T) {
	// Out-of-order input: the detector must sort by date per symbol.
	rows := []models.StagedRow{
		row(1, "AAPL", "2024-01-04", "100", "200", "95", "180", ""), // +80% vs 01-03
		row(2, "AAPL", "2024-01-02", "100", "105", "99", "100", ""),
		row(3, "AAPL", "2024-01-03", "100", "105", "99", "100", ""),
		row(4, "MSFT", "2024-01-02", "400", "405", "399", "400", ""),
		row(5, "MSFT", "2024-01-03", "400", "405", "399", "404", ""), // +1%, fine
	}
	report := Report(rows, "moves.csv")
	if len(report.Outliers.ExtremeMoves) != 1 {
		t.Fatalf("expected 1 extreme move, got %+v", report.Outliers.ExtremeMoves)
	}
	if report.Outliers.ExtremeMoves[0].RowNum != 1 {
		t.Errorf("expected row 1 flagged, got %d", report.Outliers.ExtremeMoves[0].RowNum)
	}
}

func TestReportExtremeMovesNegativeDirection(t *testing.T) {
	rows := []models.StagedRow{
		row(1, "AAPL", "2024-01-02", "100", "105", "99", "100", ""),
		row(2, "AAPL", "2024-01-03", "40", "45", "35", "40", ""), // -60%
	}
	report := Report(rows, "crash.csv")
	if len(report.Outliers.ExtremeMoves) != 1 || report.Outliers.ExtremeMoves[0].RowNum != 2 {
		t.Errorf("expected row 2 flagged for -60%% move, got %+v", report.Outliers.ExtremeMoves)
	}
}
