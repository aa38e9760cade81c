package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockwarehouse/internal/models"
)

var ErrSourceNotFound = errors.New("data source not found or inactive")

// SourceRepository resolves named data sources. The pipeline only reads
// from data_source; sources are provisioned out of band.
type SourceRepository struct {
	pool *pgxpool.Pool
}

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{pool: pool}
}

// Resolve returns the id for an active source by name. An absent or
// inactive source is an error; loads cannot proceed without provenance.
func (r *SourceRepository) Resolve(ctx context.Context, sourceName string) (int64, error) {
	var sourceID int64
	err := r.pool.QueryRow(ctx, `
		SELECT source_id FROM data_source
		WHERE source_name = $1 AND is_active = true
	`, sourceName).Scan(&sourceID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceName)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve source %s: %w", sourceName, err)
	}
	return sourceID, nil
}

// List returns all registered sources, active or not, ordered for display.
func (r *SourceRepository) List(ctx context.Context) ([]models.DataSource, error) {
	query := `
		SELECT source_id, source_name, source_type, description, is_active,
		       rate_limit, api_key_required, created_at
		FROM data_source
		ORDER BY source_type, source_name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data sources: %w", err)
	}
	defer rows.Close()

	var sources []models.DataSource
	for rows.Next() {
		var s models.DataSource
		if err := rows.Scan(&s.ID, &s.Name, &s.Type, &s.Description, &s.IsActive,
			&s.RateLimit, &s.APIKeyRequired, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}
