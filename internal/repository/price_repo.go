package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// PriceRepository persists validated price facts into price_raw with
// last-write-wins upsert semantics on (asset_id, price_date, source_id,
// granularity).
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new PriceRepository.
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

const upsertPriceSQL = `
	INSERT INTO price_raw (
		asset_id, batch_id, source_id, price_date, granularity,
		open, high, low, close, volume, adj_close
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (asset_id, price_date, source_id, granularity)
	DO UPDATE SET
		batch_id = EXCLUDED.batch_id,
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		volume = EXCLUDED.volume,
		adj_close = EXCLUDED.adj_close,
		created_at = NOW()
`

// UpsertChunk persists one chunk of price records. A statement-level failure
// (a *pgconn.PgError from the server) is logged and that row skipped; the
// rest of the chunk continues. Any other failure is treated as
// connection-level: the chunk aborts and the error propagates so the caller
// can fail the batch.
func (r *PriceRepository) UpsertChunk(ctx context.Context, records []models.PriceRecord) (int, error) {
	persisted := 0
	for _, rec := range records {
		_, err := r.pool.Exec(ctx, upsertPriceSQL,
			rec.AssetID, rec.BatchID, rec.SourceID, rec.PriceDate, rec.Granularity,
			rec.Open, rec.High, rec.Low, rec.Close, rec.Volume, rec.AdjClose,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				log.Warnf("skipping price row for asset %d on %s: %v",
					rec.AssetID, rec.PriceDate.Format("2006-01-02"), err)
				continue
			}
			return persisted, fmt.Errorf("price upsert aborted: %w", err)
		}
		persisted++
	}
	return persisted, nil
}

// CountForAsset returns the number of stored price facts for an asset and
// source at daily granularity.
func (r *PriceRepository) CountForAsset(ctx context.Context, assetID, sourceID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM price_raw
		WHERE asset_id = $1 AND source_id = $2 AND granularity = $3
	`, assetID, sourceID, models.GranularityDaily).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count price facts: %w", err)
	}
	return count, nil
}
