package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CellKind identifies the type of a raw spreadsheet cell value.
type CellKind string

const (
	CellKindNull    CellKind = "null"
	CellKindString  CellKind = "string"
	CellKindNumber  CellKind = "number"
	CellKindBoolean CellKind = "boolean"
	CellKindDate    CellKind = "date"
)

// CellValue is a closed sum type for spreadsheet cell contents. Mapped fields
// that do not correspond to a fixed header/item slot are kept as CellValues in
// an extras map, so the original cell type survives serialization.
type CellValue struct {
	Kind CellKind
	Str  string
	Num  decimal.Decimal
	Bool bool
	Date time.Time
}

// NullCell returns the empty cell value.
func NullCell() CellValue {
	return CellValue{Kind: CellKindNull}
}

// StringCell returns a text cell value.
func StringCell(s string) CellValue {
	return CellValue{Kind: CellKindString, Str: s}
}

// NumberCell returns a numeric cell value.
func NumberCell(d decimal.Decimal) CellValue {
	return CellValue{Kind: CellKindNumber, Num: d}
}

// BoolCell returns a boolean cell value.
func BoolCell(b bool) CellValue {
	return CellValue{Kind: CellKindBoolean, Bool: b}
}

// DateCell returns a date cell value.
func DateCell(t time.Time) CellValue {
	return CellValue{Kind: CellKindDate, Date: t}
}

// IsNull reports whether the cell is empty.
func (v CellValue) IsNull() bool {
	return v.Kind == CellKindNull || v.Kind == ""
}

// Text renders the cell value as a string, the way it would appear in a
// spreadsheet cell.
func (v CellValue) Text() string {
	switch v.Kind {
	case CellKindString:
		return v.Str
	case CellKindNumber:
		return v.Num.String()
	case CellKindBoolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case CellKindDate:
		return v.Date.Format("2006-01-02")
	default:
		return ""
	}
}

// Equal reports whether two cell values have the same kind and content.
func (v CellValue) Equal(o CellValue) bool {
	if v.IsNull() && o.IsNull() {
		return true
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case CellKindString:
		return v.Str == o.Str
	case CellKindNumber:
		return v.Num.Equal(o.Num)
	case CellKindBoolean:
		return v.Bool == o.Bool
	case CellKindDate:
		return v.Date.Equal(o.Date)
	}
	return true
}

type cellValueJSON struct {
	Kind  CellKind `json:"kind"`
	Value string   `json:"value,omitempty"`
}

// MarshalJSON encodes the cell as {"kind": ..., "value": ...}. Numbers are
// encoded as decimal strings and dates as RFC 3339 so the round trip is
// lossless.
func (v CellValue) MarshalJSON() ([]byte, error) {
	out := cellValueJSON{Kind: v.Kind}
	if v.IsNull() {
		out.Kind = CellKindNull
		return json.Marshal(out)
	}
	switch v.Kind {
	case CellKindString:
		out.Value = v.Str
	case CellKindNumber:
		out.Value = v.Num.String()
	case CellKindBoolean:
		out.Value = v.Text()
	case CellKindDate:
		out.Value = v.Date.UTC().Format(time.RFC3339)
	default:
		return nil, fmt.Errorf("unknown cell kind: %q", v.Kind)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a cell encoded by MarshalJSON.
func (v *CellValue) UnmarshalJSON(data []byte) error {
	var in cellValueJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case CellKindNull, "":
		*v = NullCell()
	case CellKindString:
		*v = StringCell(in.Value)
	case CellKindNumber:
		d, err := decimal.NewFromString(in.Value)
		if err != nil {
			return fmt.Errorf("invalid number cell %q: %w", in.Value, err)
		}
		*v = NumberCell(d)
	case CellKindBoolean:
		*v = BoolCell(in.Value == "true")
	case CellKindDate:
		t, err := time.Parse(time.RFC3339, in.Value)
		if err != nil {
			return fmt.Errorf("invalid date cell %q: %w", in.Value, err)
		}
		*v = DateCell(t)
	default:
		return fmt.Errorf("unknown cell kind: %q", in.Kind)
	}
	return nil
}
