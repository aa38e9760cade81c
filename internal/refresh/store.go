package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresViewStore implements ViewStore against pg catalogs.
type PostgresViewStore struct {
	pool *pgxpool.Pool
}

func NewPostgresViewStore(pool *pgxpool.Pool) *PostgresViewStore {
	return &PostgresViewStore{pool: pool}
}

func (s *PostgresViewStore) ViewExists(ctx context.Context, view string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_matviews WHERE matviewname = $1)`,
		view).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query pg_matviews: %w", err)
	}
	return exists, nil
}

func (s *PostgresViewStore) HasUniqueIndex(ctx context.Context, view string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE tablename = $1 AND indexdef ILIKE '%UNIQUE%'
		)`, view).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query pg_indexes: %w", err)
	}
	return exists, nil
}

func (s *PostgresViewStore) Refresh(ctx context.Context, view string, concurrent bool) error {
	stmt := "REFRESH MATERIALIZED VIEW "
	if concurrent {
		stmt += "CONCURRENTLY "
	}
	// View names come from our own config, not user input.
	stmt += view
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return err
	}
	return nil
}

// FreshnessReport describes how far the gold view lags behind raw data.
type FreshnessReport struct {
	View        string     `json:"view"`
	ViewLatest  *time.Time `json:"view_latest"`
	RawLatest   *time.Time `json:"raw_latest"`
	Lag         string     `json:"lag"`
	Fresh       bool       `json:"fresh"`
}

// Freshness compares the newest created_at visible in the view against the
// newest in price_raw. The view is fresh when it trails raw by at most maxAge.
func Freshness(ctx context.Context, pool *pgxpool.Pool, view string, maxAge time.Duration) (*FreshnessReport, error) {
	report := &FreshnessReport{View: view}

	var viewLatest, rawLatest *time.Time
	if err := pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT MAX(created_at) FROM %s`, view)).Scan(&viewLatest); err != nil {
		return nil, fmt.Errorf("failed to read view freshness: %w", err)
	}
	if err := pool.QueryRow(ctx,
		`SELECT MAX(created_at) FROM price_raw`).Scan(&rawLatest); err != nil {
		return nil, fmt.Errorf("failed to read raw freshness: %w", err)
	}
	report.ViewLatest = viewLatest
	report.RawLatest = rawLatest

	switch {
	case rawLatest == nil:
		// Nothing loaded yet, nothing can be stale.
		report.Fresh = true
		report.Lag = "0s"
	case viewLatest == nil:
		report.Fresh = false
		report.Lag = "never refreshed"
	default:
		lag := rawLatest.Sub(*viewLatest)
		if lag < 0 {
			lag = 0
		}
		report.Lag = lag.Round(time.Second).String()
		report.Fresh = lag <= maxAge
	}
	return report, nil
}

// ViewStats summarizes the content of the gold view.
type ViewStats struct {
	View        string     `json:"view"`
	RowCount    int64      `json:"row_count"`
	SymbolCount int64      `json:"symbol_count"`
	MinDate     *time.Time `json:"min_date"`
	MaxDate     *time.Time `json:"max_date"`
	Populated   bool       `json:"populated"`
}

// Stats reads row, symbol and date-range counters from the view.
func Stats(ctx context.Context, pool *pgxpool.Pool, view string) (*ViewStats, error) {
	stats := &ViewStats{View: view}
	query := fmt.Sprintf(
		`SELECT COUNT(*), COUNT(DISTINCT symbol), MIN(price_date), MAX(price_date) FROM %s`, view)
	err := pool.QueryRow(ctx, query).Scan(&stats.RowCount, &stats.SymbolCount, &stats.MinDate, &stats.MaxDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats for %s: %w", view, err)
	}
	stats.Populated = stats.RowCount > 0
	return stats, nil
}
