package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// BatchRepository tracks load-attempt lineage in the batch_meta table.
// Batch rows are append-then-finalize: created at the start of a load
// attempt, finalized exactly once to a terminal status, never deleted.
type BatchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

// Open inserts the audit row for a new load attempt and returns its id.
// The row starts in the implicit RUNNING state; a batch still RUNNING after
// the process exits marks a crash mid-load.
func (r *BatchRepository) Open(ctx context.Context, meta models.BatchMeta) (int64, error) {
	var batchID int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO batch_meta (source_id, batch_name, file_path, file_size_bytes,
		                        row_count, quality_score)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		RETURNING batch_id
	`, meta.SourceID, meta.Name, meta.FilePath, meta.FileSize, meta.RowCount,
		meta.QualityScore).Scan(&batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to create batch %s: %w", meta.Name, err)
	}

	log.Infof("opened batch %s with id %d", meta.Name, batchID)
	return batchID, nil
}

// Finalize moves a batch to a terminal status and stamps its end time.
// rowCount, when non-nil, overwrites the count declared at open time with
// the number of rows actually persisted.
func (r *BatchRepository) Finalize(ctx context.Context, batchID int64, status models.BatchStatus, errorMessage string, rowCount *int) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE batch_meta
		SET status = $2,
		    end_time = NOW(),
		    error_message = NULLIF($3, ''),
		    row_count = COALESCE($4, row_count)
		WHERE batch_id = $1
	`, batchID, status, errorMessage, rowCount)
	if err != nil {
		return fmt.Errorf("failed to finalize batch %d: %w", batchID, err)
	}

	log.Infof("finalized batch %d as %s", batchID, status)
	return nil
}

// Get retrieves one batch audit row.
func (r *BatchRepository) Get(ctx context.Context, batchID int64) (*models.Batch, error) {
	query := `
		SELECT batch_id, source_id, batch_name, file_path, file_size_bytes,
		       row_count, quality_score, status, start_time, end_time, error_message
		FROM batch_meta
		WHERE batch_id = $1
	`
	b := &models.Batch{}
	err := r.pool.QueryRow(ctx, query, batchID).Scan(
		&b.ID, &b.SourceID, &b.Name, &b.FilePath, &b.FileSize, &b.RowCount,
		&b.QualityScore, &b.Status, &b.StartTime, &b.EndTime, &b.ErrorMessage,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch %d: %w", batchID, err)
	}
	return b, nil
}

// FailedFiles returns the file paths whose most recent batch for the named
// source ended FAILED. Used by the retry command to reprocess only files
// that never succeeded afterward.
func (r *BatchRepository) FailedFiles(ctx context.Context, sourceName string) ([]string, error) {
	query := `
		SELECT DISTINCT ON (bm.file_path) bm.file_path, bm.status
		FROM batch_meta bm
		JOIN data_source ds ON ds.source_id = bm.source_id
		WHERE ds.source_name = $1 AND bm.file_path IS NOT NULL
		ORDER BY bm.file_path, bm.start_time DESC
	`
	rows, err := r.pool.Query(ctx, query, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to query failed files: %w", err)
	}
	defer rows.Close()

	var failed []string
	for rows.Next() {
		var path string
		var status models.BatchStatus
		if err := rows.Scan(&path, &status); err != nil {
			return nil, fmt.Errorf("failed to scan batch row: %w", err)
		}
		if status == models.BatchStatusFailed {
			failed = append(failed, path)
		}
	}
	return failed, rows.Err()
}
