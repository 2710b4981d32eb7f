package port

import (
	"io"

	"github.com/garyjia/budget-import/internal/domain/entity"
)

// BudgetFileParser is the extraction engine. Parse never fails: faults are
// converted into a file-scoped Error issue inside the snapshot.
type BudgetFileParser interface {
	Parse(r io.Reader) *entity.ParsedBudgetData
}
