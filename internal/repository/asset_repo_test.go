package repository

import (
	"context"
	"errors"
	"testing"
)

func TestAssetUpsertStableIdentity(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(testPool)
	symbol := uniqueSymbol(t)

	first, err := repo.Upsert(ctx, AssetInput{Symbol: symbol, AssetType: "STOCK"})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	second, err := repo.Upsert(ctx, AssetInput{Symbol: symbol, AssetType: "STOCK"})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if first != second {
		t.Errorf("asset identity must be stable: %d vs %d", first, second)
	}
}

func TestAssetUpsertCoalescesOptionalFields(t *testing.T) {
	ctx := context.Background()
	repo := NewAssetRepository(testPool)
	symbol := uniqueSymbol(t)

	id, err := repo.Upsert(ctx, AssetInput{
		Symbol:    symbol,
		AssetType: "STOCK",
		Exchange:  "NASDAQ",
		Sector:    "Technology",
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	// A later sighting with empty optionals must not clear stored values,
	// and new optionals must merge in.
	if _, err := repo.Upsert(ctx, AssetInput{
		Symbol:      symbol,
		AssetType:   "STOCK",
		CompanyName: "Test Corp",
	}); err != nil {
		t.Fatalf("merge upsert failed: %v", err)
	}

	asset, err := repo.GetBySymbol(ctx, symbol, "STOCK")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if asset.ID != id {
		t.Errorf("identity changed across upserts: %d vs %d", asset.ID, id)
	}
	if asset.Exchange == nil || *asset.Exchange != "NASDAQ" {
		t.Errorf("exchange was cleared by empty input: %v", asset.Exchange)
	}
	if asset.Sector == nil || *asset.Sector != "Technology" {
		t.Errorf("sector was cleared by empty input: %v", asset.Sector)
	}
	if asset.CompanyName == nil || *asset.CompanyName != "Test Corp" {
		t.Errorf("new optional field did not merge: %v", asset.CompanyName)
	}
	if asset.Currency != "USD" {
		t.Errorf("expected default currency USD, got %s", asset.Currency)
	}
}

func TestAssetGetBySymbolNotFound(t *testing.T) {
	repo := NewAssetRepository(testPool)
	_, err := repo.GetBySymbol(context.Background(), "NOSUCHSYM", "STOCK")
	if !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestSourceResolve(t *testing.T) {
	repo := NewSourceRepository(testPool)
	if _, err := repo.Resolve(context.Background(), "yahoo"); err != nil {
		t.Errorf("seeded source must resolve: %v", err)
	}
	_, err := repo.Resolve(context.Background(), "no-such-source")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}
