package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"stockwarehouse/internal/models"
)

// StructuralError means the input file cannot be staged at all: missing,
// unreadable, or empty. It is raised before any persistence happens.
type StructuralError struct {
	Path   string
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural error in %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("structural error in %s: %s", e.Path, e.Reason)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// IsStructuralError reports whether err is a staging structural error.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// columnAliases maps each canonical field to its accepted source column
// names, compared case-insensitively. First alias present in the header wins.
var columnAliases = map[string][]string{
	"date":           {"date", "trade_date", "timestamp"},
	"open":           {"open"},
	"high":           {"high"},
	"low":            {"low"},
	"close":          {"close", "closing_price"},
	"volume":         {"volume", "vol"},
	"adjusted_close": {"adj close", "adj_close", "adjclose", "adjusted_close"},
	"symbol":         {"symbol", "ticker"},
}

var (
	symbolLeading = regexp.MustCompile(`^([A-Z]{1,5})`)
	symbolBefore  = regexp.MustCompile(`([A-Z]{1,5})[_-]`)
	symbolDashed  = regexp.MustCompile(`([A-Z-]{1,10})`)
	nonSymbol     = regexp.MustCompile(`[^A-Z-]`)
)

// SymbolFromFilename infers a ticker symbol from a data file name.
// Tries a leading run of 1-5 uppercase letters, then the same before an
// underscore or dash, then any run of uppercase letters and dashes, and
// finally strips the name down to uppercase letters and dashes. Returns
// "UNKNOWN" when nothing survives.
func SymbolFromFilename(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	upper := strings.ToUpper(stem)

	for _, re := range []*regexp.Regexp{symbolLeading, symbolBefore, symbolDashed} {
		if m := re.FindStringSubmatch(upper); m != nil {
			return m[1]
		}
	}

	cleaned := nonSymbol.ReplaceAllString(upper, "")
	if cleaned == "" {
		return "UNKNOWN"
	}
	return cleaned
}

// NormalizeFile parses a delimited price file into staged rows. The file must
// exist, be readable, and contain a header plus at least one data row.
func NormalizeFile(path string) ([]models.StagedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &StructuralError{Path: path, Reason: "file does not exist", Err: err}
		}
		return nil, &StructuralError{Path: path, Reason: "file is unreadable", Err: err}
	}
	defer f.Close()

	return Normalize(f, path)
}

// Normalize parses CSV content into staged rows, resolving header names
// through the alias table and inferring the symbol from sourceFile when the
// header carries none. Fields that remain unresolved are nil on every row;
// that is not an error by itself.
func Normalize(r io.Reader, sourceFile string) ([]models.StagedRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // ragged rows handled per field

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &StructuralError{Path: sourceFile, Reason: "file is empty"}
	}
	if err != nil {
		return nil, &StructuralError{Path: sourceFile, Reason: "failed to read header", Err: err}
	}

	colIdx := resolveColumns(header)
	if _, hasDate := colIdx["date"]; !hasDate {
		if _, hasClose := colIdx["close"]; !hasClose {
			return nil, &StructuralError{Path: sourceFile, Reason: "no recognized columns in header"}
		}
	}

	var inferredSymbol *string
	if _, ok := colIdx["symbol"]; !ok {
		sym := SymbolFromFilename(sourceFile)
		inferredSymbol = &sym
		log.Infof("inferred symbol %q from filename %s", sym, sourceFile)
	}

	field := func(record []string, name string) *string {
		idx, ok := colIdx[name]
		if !ok || idx >= len(record) {
			return nil
		}
		v := strings.TrimSpace(record[idx])
		if v == "" {
			return nil
		}
		return &v
	}

	var rows []models.StagedRow
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &StructuralError{Path: sourceFile, Reason: fmt.Sprintf("failed to read row %d", rowNum+1), Err: err}
		}
		rowNum++

		row := models.StagedRow{
			Symbol:     field(record, "symbol"),
			Date:       field(record, "date"),
			Open:       field(record, "open"),
			High:       field(record, "high"),
			Low:        field(record, "low"),
			Close:      field(record, "close"),
			Volume:     field(record, "volume"),
			AdjClose:   field(record, "adjusted_close"),
			SourceFile: sourceFile,
			RowNum:     rowNum,
		}
		if row.Symbol == nil && inferredSymbol != nil {
			row.Symbol = inferredSymbol
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, &StructuralError{Path: sourceFile, Reason: "file has a header but no data rows"}
	}

	log.Debugf("normalized %d rows from %s", len(rows), sourceFile)
	return rows, nil
}

// resolveColumns maps canonical field names to header indexes. For each
// canonical field the first matching alias wins; later aliases and duplicate
// header columns are ignored.
func resolveColumns(header []string) map[string]int {
	headerIdx := make(map[string]int)
	for i, col := range header {
		key := strings.ToLower(strings.TrimSpace(col))
		if _, seen := headerIdx[key]; !seen {
			headerIdx[key] = i
		}
	}

	colIdx := make(map[string]int)
	for canonical, aliases := range columnAliases {
		for _, alias := range aliases {
			if idx, ok := headerIdx[alias]; ok {
				colIdx[canonical] = idx
				break
			}
		}
	}
	return colIdx
}

// Summary describes the shape of a set of staged rows.
type Summary struct {
	RowCount      int
	SymbolCount   int
	MinDate       string
	MaxDate       string
	DistinctFiles int
}

// Summarize computes summary statistics over staged rows. Date comparisons
// are lexicographic, which is correct for ISO-formatted dates and harmless
// for anything else at reporting granularity.
func Summarize(rows []models.StagedRow) Summary {
	s := Summary{RowCount: len(rows)}

	symbols := make(map[string]struct{})
	files := make(map[string]struct{})
	for _, row := range rows {
		if row.Symbol != nil {
			symbols[*row.Symbol] = struct{}{}
		}
		files[row.SourceFile] = struct{}{}
		if row.Date != nil {
			if s.MinDate == "" || *row.Date < s.MinDate {
				s.MinDate = *row.Date
			}
			if *row.Date > s.MaxDate {
				s.MaxDate = *row.Date
			}
		}
	}
	s.SymbolCount = len(symbols)
	s.DistinctFiles = len(files)
	return s
}
