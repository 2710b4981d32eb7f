package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// hardRowLimit bounds the detail scan when no end row is configured, so a
// workbook with stray formatting far down the sheet cannot cause an
// unbounded scan.
const hardRowLimit = 10000

// MappingConfig declares where budget data lives in the workbook: fixed
// cell addresses for header fields and column letters for line-item fields.
// Field names that match a known header/item slot fill that slot; any other
// mapped name lands in the extras map.
type MappingConfig struct {
	// SheetName is preferred when the workbook contains it; otherwise
	// SheetIndex (1-based) selects the sheet.
	SheetName  string `mapstructure:"sheet_name"`
	SheetIndex int    `mapstructure:"sheet_index"`

	Header HeaderMapping `mapstructure:"header"`
	Detail DetailMapping `mapstructure:"detail"`
}

// HeaderMapping maps header field names to cell addresses (e.g. "B2").
type HeaderMapping struct {
	Cells map[string]string `mapstructure:"cells"`
}

// DetailMapping maps item field names to column letters, plus the row range
// to scan. EndRow 0 means "read until the first blank row", bounded by
// hardRowLimit.
type DetailMapping struct {
	StartRow int               `mapstructure:"start_row"`
	EndRow   int               `mapstructure:"end_row"`
	Columns  map[string]string `mapstructure:"columns"`
}

// DefaultMapping returns the stock budget template layout.
func DefaultMapping() MappingConfig {
	return MappingConfig{
		SheetName:  "Budget",
		SheetIndex: 1,
		Header: HeaderMapping{
			Cells: map[string]string{
				"Title":         "B2",
				"RequestNumber": "B3",
				"Description":   "B4",
				"Channel":       "B5",
				"Owner":         "B6",
				"Frequency":     "B7",
				"Vendor":        "B8",
				"FiscalYear":    "B9",
				"FiscalQuarter": "B10",
				"Currency":      "B11",
			},
		},
		Detail: DetailMapping{
			StartRow: 14,
			EndRow:   0,
			Columns: map[string]string{
				"LineDescription": "A",
				"Category":        "B",
				"SubCategory":     "C",
				"Quantity":        "D",
				"UnitPrice":       "E",
				"Amount":          "F",
				"CostCenter":      "G",
				"AccountCode":     "H",
				"Jan":             "I",
				"Feb":             "J",
				"Mar":             "K",
				"Apr":             "L",
				"May":             "M",
				"Jun":             "N",
				"Jul":             "O",
				"Aug":             "P",
				"Sep":             "Q",
				"Oct":             "R",
				"Nov":             "S",
				"Dec":             "T",
			},
		},
	}
}

// Validate checks that the mapping is usable.
func (m MappingConfig) Validate() error {
	if m.SheetName == "" && m.SheetIndex < 1 {
		return fmt.Errorf("mapping needs a sheet name or a 1-based sheet index")
	}
	if m.Detail.StartRow < 1 {
		return fmt.Errorf("detail start_row must be >= 1, got %d", m.Detail.StartRow)
	}
	if m.Detail.EndRow < 0 {
		return fmt.Errorf("detail end_row must be >= 0, got %d", m.Detail.EndRow)
	}
	if len(m.Detail.Columns) == 0 {
		return fmt.Errorf("detail mapping has no columns")
	}
	for field, col := range m.Detail.Columns {
		if _, err := excelize.ColumnNameToNumber(col); err != nil {
			return fmt.Errorf("invalid column %q for field %q: %w", col, field, err)
		}
	}
	return nil
}

// stopColumn returns the leftmost mapped detail column. A row whose cell in
// this column is blank marks the end of the data block.
func (m MappingConfig) stopColumn() string {
	best := ""
	bestNum := 0
	for _, col := range m.Detail.Columns {
		n, err := excelize.ColumnNameToNumber(col)
		if err != nil {
			continue
		}
		if best == "" || n < bestNum {
			best, bestNum = col, n
		}
	}
	if best == "" {
		return "A"
	}
	return best
}
