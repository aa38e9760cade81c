package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

var ErrAssetNotFound = errors.New("asset not found")

// AssetRepository maintains canonical asset identity in the asset table.
type AssetRepository struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// AssetInput carries the fields a load attempt may know about an asset.
// Optional fields left empty never clear existing values.
type AssetInput struct {
	Symbol      string
	AssetType   string
	Currency    string // defaults to USD when empty
	Exchange    string
	CompanyName string
	Sector      string
}

// Upsert resolves an asset by (symbol, asset_type), creating it on first
// sighting. When the asset already exists, only the supplied non-empty
// optional fields are merged in (coalesce semantics); the identifier never
// changes across sightings.
func (r *AssetRepository) Upsert(ctx context.Context, in AssetInput) (int64, error) {
	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	var assetID int64
	err := r.pool.QueryRow(ctx, `
		SELECT asset_id FROM asset
		WHERE symbol = $1 AND asset_type = $2
	`, in.Symbol, in.AssetType).Scan(&assetID)

	if err == nil {
		if in.CompanyName != "" || in.Sector != "" || in.Exchange != "" {
			// NULLIF turns empty inputs into NULL so COALESCE keeps the
			// stored value.
			_, err = r.pool.Exec(ctx, `
				UPDATE asset
				SET company_name = COALESCE(NULLIF($2, ''), company_name),
				    sector       = COALESCE(NULLIF($3, ''), sector),
				    exchange     = COALESCE(NULLIF($4, ''), exchange),
				    updated_at   = NOW()
				WHERE asset_id = $1
			`, assetID, in.CompanyName, in.Sector, in.Exchange)
			if err != nil {
				return 0, fmt.Errorf("failed to update asset %s metadata: %w", in.Symbol, err)
			}
		}
		return assetID, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up asset %s: %w", in.Symbol, err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO asset (symbol, asset_type, currency, exchange, company_name, sector)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
		RETURNING asset_id
	`, in.Symbol, in.AssetType, currency, in.Exchange, in.CompanyName, in.Sector).Scan(&assetID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset %s: %w", in.Symbol, err)
	}

	log.Infof("created asset %s (%s) with id %d", in.Symbol, in.AssetType, assetID)
	return assetID, nil
}

// GetBySymbol retrieves an asset by symbol and type.
func (r *AssetRepository) GetBySymbol(ctx context.Context, symbol, assetType string) (*models.Asset, error) {
	query := `
		SELECT asset_id, symbol, asset_type, currency, exchange, company_name,
		       sector, market_cap, is_active, created_at, updated_at
		FROM asset
		WHERE symbol = $1 AND asset_type = $2
	`
	a := &models.Asset{}
	err := r.pool.QueryRow(ctx, query, symbol, assetType).Scan(
		&a.ID, &a.Symbol, &a.AssetType, &a.Currency, &a.Exchange, &a.CompanyName,
		&a.Sector, &a.MarketCap, &a.IsActive, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return a, nil
}

// LoadedSymbols returns the distinct symbols that already have price facts
// from the named source. The bulk dispatcher computes this skip-set once per
// run, before any workers start, so it cannot race against loads finishing
// mid-run.
func (r *AssetRepository) LoadedSymbols(ctx context.Context, sourceName string) (map[string]bool, error) {
	query := `
		SELECT DISTINCT a.symbol
		FROM asset a
		JOIN price_raw pr ON a.asset_id = pr.asset_id
		JOIN data_source ds ON pr.source_id = ds.source_id
		WHERE ds.source_name = $1
	`
	rows, err := r.pool.Query(ctx, query, sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to query loaded symbols: %w", err)
	}
	defer rows.Close()

	loaded := make(map[string]bool)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		loaded[symbol] = true
	}
	return loaded, rows.Err()
}
