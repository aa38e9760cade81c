package repository

import (
	"context"
	"testing"
	"time"

	"stockwarehouse/internal/models"
)

func openTestBatch(t *testing.T, filePath string) (int64, *BatchRepository) {
	t.Helper()
	repo := NewBatchRepository(testPool)
	id, err := repo.Open(context.Background(), models.BatchMeta{
		SourceID:     testSourceID(t),
		Name:         "batch_test",
		FilePath:     filePath,
		FileSize:     1024,
		RowCount:     10,
		QualityScore: 95.5,
	})
	if err != nil {
		t.Fatalf("failed to open batch: %v", err)
	}
	return id, repo
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	id, repo := openTestBatch(t, "/data/AAPL.csv")

	batch, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if batch.Status != models.BatchStatusRunning {
		t.Errorf("new batch must be RUNNING, got %s", batch.Status)
	}
	if batch.EndTime != nil {
		t.Error("new batch must have no end time")
	}
	if batch.QualityScore == nil || *batch.QualityScore != 95.5 {
		t.Errorf("quality score not stored: %v", batch.QualityScore)
	}

	rows := 8
	if err := repo.Finalize(ctx, id, models.BatchStatusSuccess, "", &rows); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	batch, err = repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get after finalize failed: %v", err)
	}
	if batch.Status != models.BatchStatusSuccess {
		t.Errorf("expected SUCCESS, got %s", batch.Status)
	}
	if batch.EndTime == nil {
		t.Error("finalized batch must have an end time")
	}
	if batch.RowCount == nil || *batch.RowCount != 8 {
		t.Errorf("row count not updated: %v", batch.RowCount)
	}
	if batch.ErrorMessage != nil {
		t.Errorf("success must not carry an error message: %v", *batch.ErrorMessage)
	}
}

func TestBatchFinalizeFailedKeepsAuditRow(t *testing.T) {
	ctx := context.Background()
	id, repo := openTestBatch(t, "/data/BAD.csv")

	if err := repo.Finalize(ctx, id, models.BatchStatusFailed, "quality score 40.00 below minimum 75.00", nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	batch, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("failed batch must remain queryable: %v", err)
	}
	if batch.Status != models.BatchStatusFailed {
		t.Errorf("expected FAILED, got %s", batch.Status)
	}
	if batch.ErrorMessage == nil {
		t.Error("failure reason must be recorded")
	}
	// Row count from open time survives when finalize passes nil.
	if batch.RowCount == nil || *batch.RowCount != 10 {
		t.Errorf("nil row count must not clear the stored value: %v", batch.RowCount)
	}
}

func TestBatchFailedFilesLatestAttemptWins(t *testing.T) {
	ctx := context.Background()
	file := "/data/retry_" + uniqueSymbol(t) + ".csv"

	// First attempt fails.
	id1, repo := openTestBatch(t, file)
	if err := repo.Finalize(ctx, id1, models.BatchStatusFailed, "boom", nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	files, err := repo.FailedFiles(ctx, "yahoo")
	if err != nil {
		t.Fatalf("failed files query failed: %v", err)
	}
	if !containsString(files, file) {
		t.Fatalf("failed file missing from retry list: %v", files)
	}

	// A later successful attempt removes it from the retry list.
	time.Sleep(10 * time.Millisecond) // ensure distinct start_time ordering
	id2, _ := openTestBatch(t, file)
	rows := 10
	if err := repo.Finalize(ctx, id2, models.BatchStatusSuccess, "", &rows); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	files, err = repo.FailedFiles(ctx, "yahoo")
	if err != nil {
		t.Fatalf("failed files query failed: %v", err)
	}
	if containsString(files, file) {
		t.Errorf("file with a later successful attempt must not be retried: %v", files)
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
