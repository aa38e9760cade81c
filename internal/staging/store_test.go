package staging

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// stagingPool connects for DB-backed tests, skipping when PG_URL is unset so
// the pure normalizer tests above always run.
func stagingPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		t.Skip("PG_URL environment variable not set, skipping integration test")
	}
	pool, err := pgxpool.New(context.Background(), pgURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestStoreReplaceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore(stagingPool(t))

	input := "Date,Open,High,Low,Close,Volume\n2024-01-02,100,105,99,104,1000000\n2024-01-03,104,,103,105,\n"
	rows, err := Normalize(strings.NewReader(input), "AAPL_store_test.csv")
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	n, err := store.Replace(ctx, rows)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 staged rows, got %d", n)
	}

	fetched, err := store.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(fetched) != 2 {
		t.Fatalf("expected 2 fetched rows, got %d", len(fetched))
	}
	if fetched[0].RowNum != 1 || fetched[1].RowNum != 2 {
		t.Errorf("fetch must preserve row order: %d, %d", fetched[0].RowNum, fetched[1].RowNum)
	}
	if fetched[0].Close == nil || *fetched[0].Close != "104" {
		t.Errorf("staged text must round-trip exactly, got %v", fetched[0].Close)
	}
	if fetched[1].High != nil {
		t.Errorf("nil fields must round-trip as nil, got %v", fetched[1].High)
	}

	// A second Replace purges the first batch entirely.
	replacement := rows[:1]
	if _, err := store.Replace(ctx, replacement); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}
	fetched, err = store.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(fetched) != 1 {
		t.Errorf("replace must purge prior contents, got %d rows", len(fetched))
	}
}
