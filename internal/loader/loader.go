// Package loader validates staged rows and persists the ones that survive
// as price facts. Each row is handled independently: a bad row is counted
// and skipped, never aborting the batch.
package loader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// DateLayout is the single canonical date format the loader accepts.
// Anything else is a row-level rejection, not a batch failure.
const DateLayout = "2006-01-02"

// RejectReason classifies why a row was not persisted.
type RejectReason string

const (
	RejectBadDate    RejectReason = "unparseable date"
	RejectBadPrice   RejectReason = "unparseable price field"
	RejectBadOHLC    RejectReason = "OHLC invariant violated"
	RejectMissing    RejectReason = "missing required field"
	RejectStatement  RejectReason = "statement-level persistence failure"
)

// Rejection is the structured outcome for a row that was not persisted.
// Rejections are aggregated and reported; they are not errors.
type Rejection struct {
	RowNum int
	Reason RejectReason
	Detail string
}

// PriceStore persists chunks of validated records. The chunk call returns
// how many records actually persisted; statement-level failures inside a
// chunk reduce the count without erroring, while a returned error means the
// store is unusable and the batch must abort.
type PriceStore interface {
	UpsertChunk(ctx context.Context, records []models.PriceRecord) (int, error)
}

// Loader runs the validate-then-persist pipeline for one batch of rows.
type Loader struct {
	store     PriceStore
	chunkSize int
}

// New creates a Loader writing through store in chunks of chunkSize rows.
func New(store PriceStore, chunkSize int) *Loader {
	if chunkSize <= 0 {
		chunkSize = 10000
	}
	return &Loader{store: store, chunkSize: chunkSize}
}

// ValidateRows converts staged rows into validated price records, rejecting
// rows that fail strict parsing of the date or any OHLC price, or that
// violate the OHLC invariant. Volume and adjusted close are best-effort:
// a parse failure there nulls the field instead of rejecting the row.
func ValidateRows(rows []models.StagedRow, assetID, batchID, sourceID int64) ([]models.PriceRecord, []Rejection) {
	var records []models.PriceRecord
	var rejections []Rejection

	reject := func(r models.StagedRow, reason RejectReason, detail string) {
		rejections = append(rejections, Rejection{RowNum: r.RowNum, Reason: reason, Detail: detail})
	}

	for _, r := range rows {
		if r.Date == nil {
			reject(r, RejectMissing, "date")
			continue
		}
		priceDate, err := time.Parse(DateLayout, *r.Date)
		if err != nil {
			reject(r, RejectBadDate, *r.Date)
			continue
		}

		open, err := requiredPrice(r.Open, "open")
		if err != nil {
			reject(r, RejectBadPrice, err.Error())
			continue
		}
		high, err := requiredPrice(r.High, "high")
		if err != nil {
			reject(r, RejectBadPrice, err.Error())
			continue
		}
		low, err := requiredPrice(r.Low, "low")
		if err != nil {
			reject(r, RejectBadPrice, err.Error())
			continue
		}
		close, err := requiredPrice(r.Close, "close")
		if err != nil {
			reject(r, RejectBadPrice, err.Error())
			continue
		}

		if !models.ValidOHLC(open, high, low, close) {
			reject(r, RejectBadOHLC, fmt.Sprintf("o=%g h=%g l=%g c=%g", open, high, low, close))
			continue
		}

		records = append(records, models.PriceRecord{
			AssetID:     assetID,
			BatchID:     batchID,
			SourceID:    sourceID,
			PriceDate:   priceDate,
			Granularity: models.GranularityDaily,
			Open:        open,
			High:        high,
			Low:         low,
			Close:       close,
			Volume:      parseVolume(r.Volume),
			AdjClose:    parseAdjClose(r.AdjClose),
		})
	}

	return records, rejections
}

// Insert validates rows and persists the accepted records in fixed-size
// chunks. It returns the number of rows actually persisted and the
// structured rejections. A store error aborts the remaining chunks and
// propagates; rows rejected by validation or skipped inside a chunk do not.
func (l *Loader) Insert(ctx context.Context, rows []models.StagedRow, assetID, batchID, sourceID int64) (int, []Rejection, error) {
	records, rejections := ValidateRows(rows, assetID, batchID, sourceID)
	if len(records) == 0 {
		log.Warnf("no valid price rows to insert (%d rejected)", len(rejections))
		return 0, rejections, nil
	}

	persisted := 0
	for start := 0; start < len(records); start += l.chunkSize {
		end := start + l.chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		n, err := l.store.UpsertChunk(ctx, chunk)
		persisted += n
		if err != nil {
			return persisted, rejections, fmt.Errorf("failed to persist price chunk: %w", err)
		}
		// Rows the store skipped at statement level still count as rejections.
		for i := 0; i < len(chunk)-n; i++ {
			rejections = append(rejections, Rejection{Reason: RejectStatement})
		}
	}

	log.Infof("persisted %d price rows, rejected %d", persisted, len(rejections))
	return persisted, rejections, nil
}

func requiredPrice(s *string, name string) (float64, error) {
	if s == nil {
		return 0, fmt.Errorf("%s missing", name)
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q", name, *s)
	}
	return f, nil
}

// parseVolume accepts integer or float-formatted volumes ("1000000",
// "1e6", "1000000.0"); anything unparseable becomes null.
func parseVolume(s *string) *int64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

func parseAdjClose(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &f
}
