// Package validate reconciles an extracted budget snapshot. All checks are
// pure and append to the snapshot's issue list; the import service runs them
// exactly once per parse, before the snapshot is frozen.
package validate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/garyjia/budget-import/internal/domain/entity"
)

// totalTolerance is the absolute difference allowed between the declared
// header total and the sum of item amounts, in the currency's minor unit.
var totalTolerance = decimal.New(1, -2) // 0.01

// Snapshot cross-checks the parsed data and appends reconciliation issues.
// Both findings are warnings: an empty or mismatched import is surfaced for
// human review, not blocked.
func Snapshot(data *entity.ParsedBudgetData) {
	if len(data.Items) == 0 {
		data.Issues = append(data.Issues, entity.ValidationIssue{
			Field:    "Items",
			Message:  "No line items found in the file",
			Severity: entity.SeverityWarning,
		})
	}

	if data.Header.TotalAmount != nil {
		declared := *data.Header.TotalAmount
		calculated := data.ItemAmountSum()
		if calculated.Sub(declared).Abs().GreaterThan(totalTolerance) {
			data.Issues = append(data.Issues, entity.ValidationIssue{
				Field: "TotalAmount",
				Message: fmt.Sprintf("Header total (%s) doesn't match sum of items (%s)",
					declared.StringFixed(2), calculated.StringFixed(2)),
				Severity: entity.SeverityWarning,
			})
		}
	}
}
