package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellValueJSONRoundTrip(t *testing.T) {
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cell CellValue
	}{
		{"null", NullCell()},
		{"string", StringCell("Marketing Q3")},
		{"empty string", StringCell("")},
		{"number", NumberCell(decimal.RequireFromString("1234.5600"))},
		{"negative number", NumberCell(decimal.RequireFromString("-0.01"))},
		{"bool true", BoolCell(true)},
		{"bool false", BoolCell(false)},
		{"date", DateCell(date)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(tt.cell)
			require.NoError(t, err)

			var got CellValue
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.True(t, tt.cell.Equal(got), "want %+v, got %+v", tt.cell, got)
		})
	}
}

func TestCellValueNumbersKeepPrecision(t *testing.T) {
	// float64 would mangle this; the decimal string encoding must not.
	cell := NumberCell(decimal.RequireFromString("9007199254740993.17"))

	raw, err := json.Marshal(cell)
	require.NoError(t, err)

	var got CellValue
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "9007199254740993.17", got.Num.String())
}

func TestCellValueText(t *testing.T) {
	assert.Equal(t, "", NullCell().Text())
	assert.Equal(t, "hello", StringCell("hello").Text())
	assert.Equal(t, "12.5", NumberCell(decimal.RequireFromString("12.5")).Text())
	assert.Equal(t, "true", BoolCell(true).Text())
	assert.Equal(t, "2026-03-15", DateCell(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)).Text())
}

func TestCellValueUnmarshalRejectsGarbage(t *testing.T) {
	var cell CellValue
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"number","value":"not-a-number"}`), &cell))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"date","value":"yesterday"}`), &cell))
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"blob","value":"x"}`), &cell))
}

func TestParsedSnapshotRoundTrip(t *testing.T) {
	total := decimal.RequireFromString("150.25")
	amount := decimal.RequireFromString("150.25")
	year := 2026
	row := 1

	data := ParsedBudgetData{
		Header: ParsedHeader{
			Title:       strP("Q3 Media Budget"),
			TotalAmount: &total,
			FiscalYear:  &year,
			Extras: map[string]CellValue{
				"CostCode": StringCell("CC-881"),
				"Approved": BoolCell(true),
			},
		},
		Items: []ParsedItem{
			{
				RowNumber:       1,
				LineDescription: strP("Display ads"),
				Amount:          &amount,
				Extras: map[string]CellValue{
					"Region": StringCell("EMEA"),
					"Weight": NumberCell(decimal.RequireFromString("0.35")),
				},
			},
		},
		Issues: []ValidationIssue{
			{RowNumber: &row, Field: "Amount", Message: "Invalid number: x", Severity: SeverityError},
			{Field: "TotalAmount", Message: "mismatch", Severity: SeverityWarning},
		},
	}

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var got ParsedBudgetData
	require.NoError(t, json.Unmarshal(raw, &got))

	require.NotNil(t, got.Header.Title)
	assert.Equal(t, "Q3 Media Budget", *got.Header.Title)
	require.NotNil(t, got.Header.TotalAmount)
	assert.True(t, total.Equal(*got.Header.TotalAmount))
	assert.True(t, got.Header.Extras["Approved"].Equal(BoolCell(true)))
	assert.True(t, got.Header.Extras["CostCode"].Equal(StringCell("CC-881")))

	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Amount)
	assert.True(t, amount.Equal(*got.Items[0].Amount))
	assert.True(t, got.Items[0].Extras["Weight"].Equal(NumberCell(decimal.RequireFromString("0.35"))))

	require.Len(t, got.Issues, 2)
	require.NotNil(t, got.Issues[0].RowNumber)
	assert.Equal(t, 1, *got.Issues[0].RowNumber)
	assert.Nil(t, got.Issues[1].RowNumber)
	assert.Equal(t, 1, got.ErrorCount())
	assert.False(t, got.IsValid())
}

func strP(s string) *string { return &s }
