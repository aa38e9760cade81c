package repository

import (
	"context"
	"errors"
	"testing"
)

func TestSymbolSummaryUnknownSymbol(t *testing.T) {
	repo := NewQueryRepository(testPool)
	_, err := repo.SymbolSummary(context.Background(), "NOSUCHSYM", 30)
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound for a symbol with no gold rows, got %v", err)
	}
}
