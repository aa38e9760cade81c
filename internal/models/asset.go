package models

import (
	"time"
)

// AssetType classifies a canonical asset identity.
type AssetType string

const (
	AssetTypeStock  AssetType = "STOCK"
	AssetTypeETF    AssetType = "ETF"
	AssetTypeCrypto AssetType = "CRYPTO"
	AssetTypeIndex  AssetType = "INDEX"
)

// Asset represents a canonical security identity in the warehouse.
// Unique on (symbol, asset_type); created on first sighting and never deleted
// by the pipeline.
type Asset struct {
	ID          int64      `json:"asset_id"`
	Symbol      string     `json:"symbol"`
	AssetType   string     `json:"asset_type"`
	Currency    string     `json:"currency"`
	Exchange    *string    `json:"exchange"`     // nullable
	CompanyName *string    `json:"company_name"` // nullable
	Sector      *string    `json:"sector"`       // nullable
	MarketCap   *int64     `json:"market_cap"`   // nullable
	IsActive    bool       `json:"is_active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// DataSource is a named provenance origin (a specific feed). Read-only to the
// ETL pipeline; resolved by name.
type DataSource struct {
	ID             int64     `json:"source_id"`
	Name           string    `json:"source_name"`
	Type           string    `json:"source_type"`
	Description    *string   `json:"description"` // nullable
	IsActive       bool      `json:"is_active"`
	RateLimit      *int      `json:"rate_limit"` // requests per minute, nullable
	APIKeyRequired bool      `json:"api_key_required"`
	CreatedAt      time.Time `json:"created_at"`
}
