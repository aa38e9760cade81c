package staging

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// Store persists staged rows into the stage_raw_prices working table.
// The staging area is a single-writer resource: Replace purges before it
// writes, and the purge is not isolated from other writers. Callers must not
// share one staging table between concurrent load attempts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a staging store over the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Replace purges the staging table and bulk-writes rows into it. The purge
// runs in its own transaction before the write begins (two-phase, matching
// the table's purge-before-write contract).
func (s *Store) Replace(ctx context.Context, rows []models.StagedRow) (int, error) {
	if err := s.Purge(ctx); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO stage_raw_prices (symbol, date_str, open_str, high_str,
		                              low_str, close_str, volume_str, adj_close_str,
		                              source_file, row_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(query, r.Symbol, r.Date, r.Open, r.High, r.Low, r.Close,
			r.Volume, r.AdjClose, r.SourceFile, r.RowNum)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("failed to write staging row: %w", err)
		}
	}

	log.Debugf("staged %d rows into stage_raw_prices", len(rows))
	return len(rows), nil
}

// Purge truncates the staging table in its own transaction.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE stage_raw_prices`); err != nil {
		return fmt.Errorf("failed to purge staging table: %w", err)
	}
	return nil
}

// Fetch reads back everything currently staged, in row order.
func (s *Store) Fetch(ctx context.Context) ([]models.StagedRow, error) {
	query := `
		SELECT symbol, date_str, open_str, high_str, low_str, close_str,
		       volume_str, adj_close_str, source_file, row_number
		FROM stage_raw_prices
		ORDER BY row_number
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query staging table: %w", err)
	}
	defer rows.Close()

	var staged []models.StagedRow
	for rows.Next() {
		var r models.StagedRow
		if err := rows.Scan(&r.Symbol, &r.Date, &r.Open, &r.High, &r.Low, &r.Close,
			&r.Volume, &r.AdjClose, &r.SourceFile, &r.RowNum); err != nil {
			return nil, fmt.Errorf("failed to scan staged row: %w", err)
		}
		staged = append(staged, r)
	}
	return staged, rows.Err()
}
