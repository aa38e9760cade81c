package repository

import (
	"context"
	"testing"
	"time"

	"stockwarehouse/internal/models"
)

func testRecord(assetID, batchID, sourceID int64, date string, close float64) models.PriceRecord {
	d, _ := time.Parse("2006-01-02", date)
	volume := int64(1000000)
	return models.PriceRecord{
		AssetID:     assetID,
		BatchID:     batchID,
		SourceID:    sourceID,
		PriceDate:   d,
		Granularity: models.GranularityDaily,
		Open:        close - 2,
		High:        close + 3,
		Low:         close - 4,
		Close:       close,
		Volume:      &volume,
	}
}

func TestPriceUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	sourceID := testSourceID(t)
	assetID, err := NewAssetRepository(testPool).Upsert(ctx, AssetInput{Symbol: uniqueSymbol(t), AssetType: "STOCK"})
	if err != nil {
		t.Fatalf("asset upsert failed: %v", err)
	}
	batchID, _ := openTestBatch(t, "/data/idem.csv")
	repo := NewPriceRepository(testPool)

	records := []models.PriceRecord{
		testRecord(assetID, batchID, sourceID, "2024-01-02", 104),
		testRecord(assetID, batchID, sourceID, "2024-01-03", 105),
	}

	n, err := repo.UpsertChunk(ctx, records)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 persisted, got %d", n)
	}

	// Re-running the same chunk must not grow the table.
	if _, err := repo.UpsertChunk(ctx, records); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	count, err := repo.CountForAsset(ctx, assetID, sourceID)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("re-running a load must be idempotent, got %d rows", count)
	}
}

func TestPriceUpsertLastWriteWins(t *testing.T) {
	ctx := context.Background()
	sourceID := testSourceID(t)
	assetID, err := NewAssetRepository(testPool).Upsert(ctx, AssetInput{Symbol: uniqueSymbol(t), AssetType: "STOCK"})
	if err != nil {
		t.Fatalf("asset upsert failed: %v", err)
	}
	batch1, _ := openTestBatch(t, "/data/v1.csv")
	batch2, _ := openTestBatch(t, "/data/v2.csv")
	repo := NewPriceRepository(testPool)

	first := testRecord(assetID, batch1, sourceID, "2024-01-02", 104)
	if _, err := repo.UpsertChunk(ctx, []models.PriceRecord{first}); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	corrected := testRecord(assetID, batch2, sourceID, "2024-01-02", 110)
	if _, err := repo.UpsertChunk(ctx, []models.PriceRecord{corrected}); err != nil {
		t.Fatalf("corrected write failed: %v", err)
	}

	var close float64
	var gotBatch int64
	err = testPool.QueryRow(ctx,
		`SELECT close, batch_id FROM price_raw
		 WHERE asset_id = $1 AND price_date = $2 AND source_id = $3 AND granularity = $4`,
		assetID, first.PriceDate, sourceID, models.GranularityDaily,
	).Scan(&close, &gotBatch)
	if err != nil {
		t.Fatalf("readback failed: %v", err)
	}
	if close != 110 {
		t.Errorf("last write must win, got close %v", close)
	}
	if gotBatch != batch2 {
		t.Errorf("lineage must point at the overwriting batch, got %d want %d", gotBatch, batch2)
	}
}
