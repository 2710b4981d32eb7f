// Package excel implements the mapping-driven extraction engine: it reads an
// uploaded workbook and produces a partially-validated budget snapshot.
package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/budget-import/internal/domain/entity"
)

// Parser extracts budget data from a workbook according to a MappingConfig.
type Parser struct {
	mapping MappingConfig
	logger  *zap.Logger
}

// NewParser creates a new Parser.
func NewParser(mapping MappingConfig, logger *zap.Logger) *Parser {
	return &Parser{
		mapping: mapping,
		logger:  logger,
	}
}

// Parse reads the workbook and returns the extracted snapshot. Parse never
// fails: any fault while opening or reading the source is converted into a
// single file-scoped Error issue, the orchestrating state machine relies on
// that.
func (p *Parser) Parse(r io.Reader) (data *entity.ParsedBudgetData) {
	data = &entity.ParsedBudgetData{
		Items:  []entity.ParsedItem{},
		Issues: []entity.ValidationIssue{},
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("Panic while parsing workbook", zap.Any("panic", rec))
			data.Items = data.Items[:0]
			data.Issues = append(data.Issues[:0], fileIssue(fmt.Sprintf("%v", rec)))
		}
	}()

	f, err := excelize.OpenReader(r)
	if err != nil {
		p.logger.Warn("Failed to open workbook", zap.Error(err))
		data.Issues = append(data.Issues, fileIssue(err.Error()))
		return data
	}
	defer f.Close()

	sheet, err := p.resolveSheet(f)
	if err != nil {
		data.Issues = append(data.Issues, fileIssue(err.Error()))
		return data
	}

	data.Header = p.parseHeader(f, sheet, &data.Issues)
	data.Items = p.parseDetails(f, sheet, &data.Issues)

	p.logger.Debug("Workbook parsed",
		zap.String("sheet", sheet),
		zap.Int("items", len(data.Items)),
		zap.Int("issues", len(data.Issues)))

	return data
}

func fileIssue(detail string) entity.ValidationIssue {
	return entity.ValidationIssue{
		Field:    "File",
		Message:  fmt.Sprintf("Failed to parse Excel file: %s", detail),
		Severity: entity.SeverityError,
	}
}

// resolveSheet picks the configured sheet by name when present, falling back
// to the 1-based index.
func (p *Parser) resolveSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	if p.mapping.SheetName != "" {
		for _, name := range sheets {
			if name == p.mapping.SheetName {
				return name, nil
			}
		}
	}
	idx := p.mapping.SheetIndex
	if idx < 1 || idx > len(sheets) {
		return "", fmt.Errorf("sheet index %d out of range (workbook has %d sheets)", idx, len(sheets))
	}
	return sheets[idx-1], nil
}

func (p *Parser) parseHeader(f *excelize.File, sheet string, issues *[]entity.ValidationIssue) entity.ParsedHeader {
	header := entity.ParsedHeader{}
	extras := make(map[string]entity.CellValue)

	for field, addr := range p.mapping.Header.Cells {
		cv := p.readCell(f, sheet, addr)
		if cv.IsNull() {
			continue
		}

		switch field {
		case "Title":
			header.Title = strPtr(cv.Text())
		case "RequestNumber":
			header.RequestNumber = strPtr(cv.Text())
		case "Description":
			header.Description = strPtr(cv.Text())
		case "Channel":
			header.Channel = strPtr(cv.Text())
		case "Owner":
			header.Owner = strPtr(cv.Text())
		case "Frequency":
			header.Frequency = strPtr(cv.Text())
		case "Vendor":
			header.Vendor = strPtr(cv.Text())
		case "Currency":
			header.Currency = strPtr(cv.Text())
		case "FiscalYear":
			if n, err := strconv.Atoi(strings.TrimSpace(cv.Text())); err == nil {
				header.FiscalYear = &n
			}
		case "FiscalQuarter":
			if n, err := strconv.Atoi(strings.TrimSpace(cv.Text())); err == nil {
				header.FiscalQuarter = &n
			}
		case "TotalAmount":
			if d, ok := toDecimal(cv); ok {
				header.TotalAmount = &d
			}
		default:
			// Unknown mapped names are retained verbatim, not dropped.
			extras[field] = cv
		}
	}

	if len(extras) > 0 {
		header.Extras = extras
	}

	if header.Title == nil || strings.TrimSpace(*header.Title) == "" {
		*issues = append(*issues, entity.ValidationIssue{
			Field:    "Title",
			Message:  "Title is required",
			Severity: entity.SeverityError,
		})
	}

	return header
}

func (p *Parser) parseDetails(f *excelize.File, sheet string, issues *[]entity.ValidationIssue) []entity.ParsedItem {
	items := []entity.ParsedItem{}

	startRow := p.mapping.Detail.StartRow
	endRow := p.mapping.Detail.EndRow
	if endRow <= 0 {
		endRow = hardRowLimit
	}
	stopCol := p.mapping.stopColumn()

	// rowNumber is the 1-based output counter, decoupled from the physical
	// sheet row; all item-scoped issues reference it.
	rowNumber := 0

	for row := startRow; row <= endRow; row++ {
		marker := p.readCell(f, sheet, stopCol+strconv.Itoa(row))
		if marker.IsNull() || strings.TrimSpace(marker.Text()) == "" {
			// First blank row ends the data block, even if endRow
			// reaches further.
			break
		}

		rowNumber++
		item := entity.ParsedItem{RowNumber: rowNumber}
		extras := make(map[string]entity.CellValue)
		itemErrors := 0

		for field, col := range p.mapping.Detail.Columns {
			cv := p.readCell(f, sheet, col+strconv.Itoa(row))
			if cv.IsNull() {
				continue
			}

			switch field {
			case "LineDescription":
				item.LineDescription = strPtr(cv.Text())
			case "Category":
				item.Category = strPtr(cv.Text())
			case "SubCategory":
				item.SubCategory = strPtr(cv.Text())
			case "CostCenter":
				item.CostCenter = strPtr(cv.Text())
			case "AccountCode":
				item.AccountCode = strPtr(cv.Text())
			case "Amount":
				// Amount is strict: a present but non-numeric value is a
				// blocking row issue. The other numeric fields below are
				// lenient and silently left unset.
				if d, ok := toDecimal(cv); ok {
					item.Amount = &d
				} else {
					rn := rowNumber
					*issues = append(*issues, entity.ValidationIssue{
						RowNumber: &rn,
						Field:     "Amount",
						Message:   fmt.Sprintf("Invalid number: %s", cv.Text()),
						Severity:  entity.SeverityError,
					})
					itemErrors++
				}
			case "Quantity":
				item.Quantity = lenientDecimal(cv)
			case "UnitPrice":
				item.UnitPrice = lenientDecimal(cv)
			case "Jan":
				item.Jan = lenientDecimal(cv)
			case "Feb":
				item.Feb = lenientDecimal(cv)
			case "Mar":
				item.Mar = lenientDecimal(cv)
			case "Apr":
				item.Apr = lenientDecimal(cv)
			case "May":
				item.May = lenientDecimal(cv)
			case "Jun":
				item.Jun = lenientDecimal(cv)
			case "Jul":
				item.Jul = lenientDecimal(cv)
			case "Aug":
				item.Aug = lenientDecimal(cv)
			case "Sep":
				item.Sep = lenientDecimal(cv)
			case "Oct":
				item.Oct = lenientDecimal(cv)
			case "Nov":
				item.Nov = lenientDecimal(cv)
			case "Dec":
				item.Dec = lenientDecimal(cv)
			default:
				extras[field] = cv
			}
		}

		if len(extras) > 0 {
			item.Extras = extras
		}
		item.HasErrors = itemErrors > 0
		items = append(items, item)
	}

	return items
}

// dateLayouts are tried in order when a cell carries an ISO-typed date value.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// readCell reads one cell and types it: numeric cells as decimals, date
// cells as dates, boolean cells as booleans, everything else as text.
// Ordinary numeric cells carry no type attribute in the sheet XML, so both
// CellTypeNumber and CellTypeUnset take the numeric path.
func (p *Parser) readCell(f *excelize.File, sheet, addr string) entity.CellValue {
	value, err := f.GetCellValue(sheet, addr)
	if err != nil || strings.TrimSpace(value) == "" {
		return entity.NullCell()
	}

	cellType, err := f.GetCellType(sheet, addr)
	if err != nil {
		return entity.StringCell(value)
	}

	switch cellType {
	case excelize.CellTypeBool:
		return entity.BoolCell(value == "TRUE" || value == "1")
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return entity.StringCell(value)
	case excelize.CellTypeDate:
		// Cells typed t="d" store an ISO 8601 text value; the formatted
		// value would be display text, so read the stored one.
		raw, rawErr := f.GetCellValue(sheet, addr, excelize.Options{RawCellValue: true})
		if rawErr != nil {
			raw = value
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return entity.DateCell(t)
			}
		}
		return entity.StringCell(value)
	default:
		return p.readNumericCell(f, sheet, addr, value)
	}
}

// readNumericCell reads the raw stored value of a number-or-unset cell.
// A raw value that parses as a number becomes a NumberCell, or a DateCell
// when the cell's number format renders it as a date; anything else falls
// back to the formatted display text.
func (p *Parser) readNumericCell(f *excelize.File, sheet, addr, display string) entity.CellValue {
	raw, err := f.GetCellValue(sheet, addr, excelize.Options{RawCellValue: true})
	if err != nil {
		raw = display
	}
	raw = strings.TrimSpace(raw)

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return entity.StringCell(display)
	}

	if p.isDateStyled(f, sheet, addr) {
		if serial, serialErr := strconv.ParseFloat(raw, 64); serialErr == nil {
			if t, convErr := excelize.ExcelDateToTime(serial, false); convErr == nil {
				return entity.DateCell(t)
			}
		}
	}
	return entity.NumberCell(d)
}

// builtinDateFormats are the builtin number format ids that render a numeric
// value as a date, time, or duration.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true,
	33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true,
	56: true, 57: true, 58: true,
}

// isDateStyled reports whether the cell's number format is a date format,
// builtin or custom.
func (p *Parser) isDateStyled(f *excelize.File, sheet, addr string) bool {
	styleID, err := f.GetCellStyle(sheet, addr)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	if builtinDateFormats[style.NumFmt] {
		return true
	}
	if style.CustomNumFmt != nil {
		return hasDateTokens(*style.CustomNumFmt)
	}
	return false
}

// hasDateTokens reports whether a custom number format contains date or time
// placeholders, skipping quoted literals, bracketed sections, and escapes.
func hasDateTokens(format string) bool {
	inQuote := false
	inBracket := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		switch {
		case inQuote:
			if c == '"' {
				inQuote = false
			}
		case inBracket:
			if c == ']' {
				inBracket = false
			}
		case c == '"':
			inQuote = true
		case c == '[':
			inBracket = true
		case c == '\\':
			i++
		case c == 'y' || c == 'Y' || c == 'm' || c == 'M' ||
			c == 'd' || c == 'D' || c == 'h' || c == 'H' || c == 's' || c == 'S':
			return true
		}
	}
	return false
}

// toDecimal converts a cell value to a decimal. Number cells convert
// directly; text cells are parsed. The bool result reports success.
func toDecimal(cv entity.CellValue) (decimal.Decimal, bool) {
	switch cv.Kind {
	case entity.CellKindNumber:
		return cv.Num, true
	case entity.CellKindString:
		d, err := decimal.NewFromString(strings.TrimSpace(cv.Str))
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func lenientDecimal(cv entity.CellValue) *decimal.Decimal {
	if d, ok := toDecimal(cv); ok {
		return &d
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
