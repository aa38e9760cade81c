package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockwarehouse/internal/models"
)

// QueryRepository serves the read API from the gold view and metadata tables.
type QueryRepository struct {
	pool *pgxpool.Pool
}

func NewQueryRepository(pool *pgxpool.Pool) *QueryRepository {
	return &QueryRepository{pool: pool}
}

// Prices returns gold bars for the given symbols within [from, to],
// ordered by symbol then date. Empty symbols means all symbols.
func (r *QueryRepository) Prices(ctx context.Context, symbols []string, from, to time.Time, limit int) ([]models.GoldPrice, error) {
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	query := `
		SELECT symbol, price_date, open, high, low, close, volume, adj_close
		FROM price_gold
		WHERE price_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if len(symbols) > 0 {
		query += ` AND symbol = ANY($3)`
		args = append(args, symbols)
	}
	query += fmt.Sprintf(` ORDER BY symbol, price_date LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	return scanGoldPrices(rows)
}

// LatestPrices returns the most recent gold bar per symbol.
func (r *QueryRepository) LatestPrices(ctx context.Context, symbols []string) ([]models.GoldPrice, error) {
	query := `
		SELECT DISTINCT ON (symbol)
			symbol, price_date, open, high, low, close, volume, adj_close
		FROM price_gold`
	var args []any
	if len(symbols) > 0 {
		query += ` WHERE symbol = ANY($1)`
		args = append(args, symbols)
	}
	query += ` ORDER BY symbol, price_date DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest prices: %w", err)
	}
	defer rows.Close()

	return scanGoldPrices(rows)
}

// SymbolSummary aggregates the last `days` calendar days of gold bars for
// one symbol. Returns ErrAssetNotFound when the symbol has no gold rows in
// the window.
func (r *QueryRepository) SymbolSummary(ctx context.Context, symbol string, days int) (*models.SymbolSummary, error) {
	if days <= 0 {
		days = 30
	}
	summary := &models.SymbolSummary{Symbol: symbol, Days: days}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), MIN(price_date), MAX(price_date),
		       MIN(close), MAX(close), AVG(close), STDDEV(close), AVG(volume)
		FROM price_gold
		WHERE symbol = $1
		  AND price_date >= CURRENT_DATE - $2::int
		HAVING COUNT(*) > 0`,
		symbol, days,
	).Scan(&summary.RowCount, &summary.FirstDate, &summary.LastDate,
		&summary.MinClose, &summary.MaxClose, &summary.AvgClose,
		&summary.CloseStdev, &summary.AvgVolume)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no prices for %s in last %d days: %w", symbol, days, ErrAssetNotFound)
		}
		return nil, fmt.Errorf("failed to summarize %s: %w", symbol, err)
	}
	return summary, nil
}

// Symbols lists the distinct symbols present in the gold view.
func (r *QueryRepository) Symbols(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT symbol FROM price_gold ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// DateRange returns the min and max dates present in the gold view.
func (r *QueryRepository) DateRange(ctx context.Context) (*models.DateRange, error) {
	dr := &models.DateRange{}
	err := r.pool.QueryRow(ctx,
		`SELECT MIN(price_date), MAX(price_date) FROM price_gold`,
	).Scan(&dr.MinDate, &dr.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query date range: %w", err)
	}
	return dr, nil
}

// Health reads the counters shown on the health endpoint.
func (r *QueryRepository) Health(ctx context.Context) (*models.WarehouseHealth, error) {
	h := &models.WarehouseHealth{}
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM asset),
			(SELECT COUNT(*) FROM price_raw),
			(SELECT COUNT(*) FROM price_gold),
			(SELECT COUNT(*) FROM batch_meta),
			(SELECT COUNT(*) FROM batch_meta WHERE status = 'FAILED')`,
	).Scan(&h.Assets, &h.RawPrices, &h.GoldPrices, &h.Batches, &h.FailedBatches)
	if err != nil {
		return nil, fmt.Errorf("failed to query health counters: %w", err)
	}
	return h, nil
}

func scanGoldPrices(rows pgx.Rows) ([]models.GoldPrice, error) {
	var prices []models.GoldPrice
	for rows.Next() {
		var p models.GoldPrice
		if err := rows.Scan(&p.Symbol, &p.PriceDate, &p.Open, &p.High, &p.Low,
			&p.Close, &p.Volume, &p.AdjClose); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
