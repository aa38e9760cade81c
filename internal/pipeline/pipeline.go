// Package pipeline orchestrates the load of one price file end to end:
// normalize, stage, score, gate, persist, finalize. Every attempt leaves a
// batch audit row with a terminal status, except structural failures that
// happen before the input is readable at all.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/config"
	"stockwarehouse/internal/loader"
	"stockwarehouse/internal/models"
	"stockwarehouse/internal/quality"
	"stockwarehouse/internal/repository"
	"stockwarehouse/internal/staging"
)

// ErrQualityGate is returned when a file's quality report fails the
// configured thresholds. The batch is finalized FAILED before this surfaces.
var ErrQualityGate = errors.New("quality gate rejected batch")

// StagingStore persists normalized rows into the staging table.
type StagingStore interface {
	Replace(ctx context.Context, rows []models.StagedRow) (int, error)
}

// SourceResolver maps a source name to its identifier.
type SourceResolver interface {
	Resolve(ctx context.Context, sourceName string) (int64, error)
}

// AssetStore resolves or creates asset identity.
type AssetStore interface {
	Upsert(ctx context.Context, in repository.AssetInput) (int64, error)
}

// BatchStore opens and finalizes batch audit rows.
type BatchStore interface {
	Open(ctx context.Context, meta models.BatchMeta) (int64, error)
	Finalize(ctx context.Context, batchID int64, status models.BatchStatus, errorMessage string, rowCount *int) error
}

// PriceLoader validates and persists staged rows as price facts.
type PriceLoader interface {
	Insert(ctx context.Context, rows []models.StagedRow, assetID, batchID, sourceID int64) (int, []loader.Rejection, error)
}

// FileResult is the outcome of loading one file.
type FileResult struct {
	Path      string             `json:"path"`
	Symbol    string             `json:"symbol"`
	BatchID   int64              `json:"batch_id"`
	Score     float64            `json:"quality_score"`
	Persisted int                `json:"persisted"`
	Rejected  int                `json:"rejected"`
	Status    models.BatchStatus `json:"status"`
}

// Pipeline loads one file at a time through staging, quality and the loader.
type Pipeline struct {
	cfg     *config.Config
	staging StagingStore
	sources SourceResolver
	assets  AssetStore
	batches BatchStore
	loader  PriceLoader

	// The staging table is purge-then-write and has exactly one writer at
	// a time; after a concurrent run it holds the last file staged.
	stagingMu sync.Mutex
}

func New(cfg *config.Config, stagingStore StagingStore, sources SourceResolver,
	assets AssetStore, batches BatchStore, priceLoader PriceLoader) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		staging: stagingStore,
		sources: sources,
		assets:  assets,
		batches: batches,
		loader:  priceLoader,
	}
}

// LoadFile runs the full load for one CSV file against the named source.
// Structural input failures surface before any batch row exists; once a
// batch is open, every path finalizes it to a terminal status.
func (p *Pipeline) LoadFile(ctx context.Context, path, sourceName string) (*FileResult, error) {
	rows, err := staging.NormalizeFile(path)
	if err != nil {
		return nil, err
	}

	summary := staging.Summarize(rows)
	log.WithFields(log.Fields{
		"file":     filepath.Base(path),
		"rows":     summary.RowCount,
		"symbols":  summary.SymbolCount,
		"min_date": summary.MinDate,
		"max_date": summary.MaxDate,
	}).Info("staged input")

	p.stagingMu.Lock()
	_, err = p.staging.Replace(ctx, rows)
	p.stagingMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to stage %s: %w", path, err)
	}

	batchName := newBatchName(path)
	report := quality.Report(rows, batchName)
	p.logAdvisories(batchName, report)

	sourceID, err := p.sources.Resolve(ctx, sourceName)
	if err != nil {
		return nil, err
	}

	symbol := fileSymbol(rows, path)
	assetID, err := p.assets.Upsert(ctx, repository.AssetInput{
		Symbol:    symbol,
		AssetType: string(models.AssetTypeStock),
	})
	if err != nil {
		return nil, err
	}

	batchID, err := p.batches.Open(ctx, models.BatchMeta{
		SourceID:     sourceID,
		Name:         batchName,
		FilePath:     path,
		FileSize:     fileSize(path),
		RowCount:     len(rows),
		QualityScore: report.Score,
	})
	if err != nil {
		return nil, err
	}

	result := &FileResult{Path: path, Symbol: symbol, BatchID: batchID, Score: report.Score}

	if reason := p.gateFailure(report); reason != "" {
		if err := p.batches.Finalize(ctx, batchID, models.BatchStatusFailed, reason, nil); err != nil {
			log.Errorf("failed to finalize rejected batch %d: %v", batchID, err)
		}
		result.Status = models.BatchStatusFailed
		return result, fmt.Errorf("%s (score %.2f): %w", reason, report.Score, ErrQualityGate)
	}

	persisted, rejections, err := p.loader.Insert(ctx, rows, assetID, batchID, sourceID)
	result.Persisted = persisted
	result.Rejected = len(rejections)
	if err != nil {
		if ferr := p.batches.Finalize(ctx, batchID, models.BatchStatusFailed, err.Error(), &persisted); ferr != nil {
			log.Errorf("failed to finalize failed batch %d: %v", batchID, ferr)
		}
		result.Status = models.BatchStatusFailed
		return result, err
	}

	status := models.BatchStatusSuccess
	message := ""
	switch {
	case persisted == 0:
		status = models.BatchStatusFailed
		message = "no rows persisted"
	case len(rejections) > 0:
		status = models.BatchStatusPartial
		message = fmt.Sprintf("%d rows rejected", len(rejections))
	}
	if err := p.batches.Finalize(ctx, batchID, status, message, &persisted); err != nil {
		return result, fmt.Errorf("failed to finalize batch %d: %w", batchID, err)
	}
	result.Status = status

	log.WithFields(log.Fields{
		"file":      batchName,
		"symbol":    symbol,
		"batch_id":  batchID,
		"score":     report.Score,
		"persisted": persisted,
		"rejected":  len(rejections),
		"status":    status,
	}).Info("file load complete")
	return result, nil
}

// gateFailure returns a rejection reason, or "" when the report passes.
// The gate enforces the composite score only; the null and duplicate
// thresholds are advisory and never reject a batch on their own (duplicates
// in particular are tolerated by the keep-last upsert).
func (p *Pipeline) gateFailure(report models.QualityReport) string {
	if report.Score < p.cfg.QCMinScore {
		return fmt.Sprintf("quality score %.2f below minimum %.2f", report.Score, p.cfg.QCMinScore)
	}
	return ""
}

// logAdvisories warns when the advisory thresholds are exceeded.
func (p *Pipeline) logAdvisories(batchName string, report models.QualityReport) {
	if report.RowCount == 0 {
		return
	}
	nullPct := 100 - report.SubScores.Completeness
	if nullPct > p.cfg.QCMaxNullPct {
		log.Warnf("%s: null rate %.2f%% above advisory maximum %.2f%%", batchName, nullPct, p.cfg.QCMaxNullPct)
	}
	if report.Duplicates.Percentage > p.cfg.QCMaxDupPct {
		log.Warnf("%s: duplicate rate %.2f%% above advisory maximum %.2f%%",
			batchName, report.Duplicates.Percentage, p.cfg.QCMaxDupPct)
	}
}

// newBatchName builds an effectively-unique audit name for one load attempt
// from the file stem and a timestamp, so retries of the same file stay
// distinguishable in batch_meta.
func newBatchName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fmt.Sprintf("%s_%s", stem, time.Now().UTC().Format("20060102_150405.000000000"))
}

// fileSymbol prefers the symbol carried on the staged rows and falls back
// to filename inference.
func fileSymbol(rows []models.StagedRow, path string) string {
	for _, r := range rows {
		if r.Symbol != nil && *r.Symbol != "" {
			return *r.Symbol
		}
	}
	return staging.SymbolFromFilename(path)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
