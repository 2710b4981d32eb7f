package entity

import (
	"github.com/shopspring/decimal"
)

// Severity classifies a validation issue.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
)

// ValidationIssue is a single extraction or reconciliation finding.
// RowNumber is nil for header- and file-scoped issues.
type ValidationIssue struct {
	RowNumber *int     `json:"rowNumber,omitempty"`
	Field     string   `json:"field"`
	Message   string   `json:"message"`
	Severity  Severity `json:"severity"`
}

// ParsedHeader holds the header fields extracted from the workbook. Nil
// means the mapped cell was empty or absent; defaults are applied at commit
// time, not here.
type ParsedHeader struct {
	RequestNumber *string              `json:"requestNumber,omitempty"`
	Title         *string              `json:"title,omitempty"`
	Description   *string              `json:"description,omitempty"`
	Channel       *string              `json:"channel,omitempty"`
	Owner         *string              `json:"owner,omitempty"`
	Frequency     *string              `json:"frequency,omitempty"`
	Vendor        *string              `json:"vendor,omitempty"`
	TotalAmount   *decimal.Decimal     `json:"totalAmount,omitempty"`
	Currency      *string              `json:"currency,omitempty"`
	FiscalYear    *int                 `json:"fiscalYear,omitempty"`
	FiscalQuarter *int                 `json:"fiscalQuarter,omitempty"`
	Extras        map[string]CellValue `json:"extras,omitempty"`
}

// ParsedItem is one extracted line item. RowNumber is a 1-based output
// counter independent of the physical sheet row.
type ParsedItem struct {
	RowNumber       int                  `json:"rowNumber"`
	LineDescription *string              `json:"lineDescription,omitempty"`
	Category        *string              `json:"category,omitempty"`
	SubCategory     *string              `json:"subCategory,omitempty"`
	Amount          *decimal.Decimal     `json:"amount,omitempty"`
	Quantity        *decimal.Decimal     `json:"quantity,omitempty"`
	UnitPrice       *decimal.Decimal     `json:"unitPrice,omitempty"`
	CostCenter      *string              `json:"costCenter,omitempty"`
	AccountCode     *string              `json:"accountCode,omitempty"`
	Jan             *decimal.Decimal     `json:"jan,omitempty"`
	Feb             *decimal.Decimal     `json:"feb,omitempty"`
	Mar             *decimal.Decimal     `json:"mar,omitempty"`
	Apr             *decimal.Decimal     `json:"apr,omitempty"`
	May             *decimal.Decimal     `json:"may,omitempty"`
	Jun             *decimal.Decimal     `json:"jun,omitempty"`
	Jul             *decimal.Decimal     `json:"jul,omitempty"`
	Aug             *decimal.Decimal     `json:"aug,omitempty"`
	Sep             *decimal.Decimal     `json:"sep,omitempty"`
	Oct             *decimal.Decimal     `json:"oct,omitempty"`
	Nov             *decimal.Decimal     `json:"nov,omitempty"`
	Dec             *decimal.Decimal     `json:"dec,omitempty"`
	Extras          map[string]CellValue `json:"extras,omitempty"`
	HasErrors       bool                 `json:"hasErrors"`
}

// ParsedBudgetData is the snapshot produced by one extraction pass: header,
// ordered line items, and cumulative issues from extraction and
// reconciliation. It is owned by the ImportRun that produced it and persisted
// as serialized JSON.
type ParsedBudgetData struct {
	Header ParsedHeader      `json:"header"`
	Items  []ParsedItem      `json:"items"`
	Issues []ValidationIssue `json:"issues"`
}

// IsValid reports whether the snapshot carries no blocking issue.
func (d *ParsedBudgetData) IsValid() bool {
	return d.ErrorCount() == 0
}

// ErrorCount returns the number of Error-severity issues.
func (d *ParsedBudgetData) ErrorCount() int {
	n := 0
	for _, issue := range d.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// ItemAmountSum returns the decimal sum of all item amounts, treating unset
// amounts as zero.
func (d *ParsedBudgetData) ItemAmountSum() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range d.Items {
		if item.Amount != nil {
			sum = sum.Add(*item.Amount)
		}
	}
	return sum
}
