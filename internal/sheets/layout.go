// Package sheets defines the report document layout shared by the xlsx and
// Google Sheets adapters. A Workbook is built from stored rows only, so
// every number in it can be re-derived from the month sheets.
package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
)

const (
	SummarySheet = "Quarterly Summary"

	// Month sheets: title on row 1, headers on row 3, data from row 4.
	HeaderRow    = 3
	FirstDataRow = 4
)

// CellFormat selects the number format a codec applies to a cell.
type CellFormat int

const (
	FormatGeneral CellFormat = iota
	FormatPrice              // #,##0.0000
	FormatMoney              // #,##0.00
	FormatHeader
	FormatTitle
)

// NumberFormat returns the spreadsheet number format of f, or "" for none.
func (f CellFormat) NumberFormat() string {
	switch f {
	case FormatPrice:
		return "#,##0.0000"
	case FormatMoney:
		return "#,##0.00"
	}
	return ""
}

type (
	// Cell holds a string, an int or a decimal.Decimal. A nil Value is a
	// blank cell.
	Cell struct {
		Value  interface{}
		Format CellFormat
	}

	Sheet struct {
		Name string
		Rows [][]Cell
	}

	// Workbook is a codec-neutral report document. Sheets[0] is the summary.
	Workbook struct {
		Name   string
		Sheets []Sheet
	}

	// Values is the cell text of a read document, keyed by sheet name.
	Values map[string][][]string
)

// MonthHeaders are the column titles of every month sheet.
var MonthHeaders = []string{
	"Supplier",
	"Component A",
	"Component B",
	"Component C",
	"Unit Price",
	"Daily Volume",
	"Row Cost",
}

// Column positions of the importable month sheet fields.
const (
	colSupplier = iota
	colComponentA
	colComponentB
	colComponentC
	colUnitPrice
	colDailyVolume
	colRowCost
)

// MonthSheetName returns the sheet name of a 1-based slot.
func MonthSheetName(slot int) string {
	return fmt.Sprintf("Month %d", slot)
}

// monthSheetAliases are also accepted on import.
func monthSheetAliases(slot int) []string {
	return []string{MonthSheetName(slot), fmt.Sprintf("Mês %d", slot), fmt.Sprintf("Mes %d", slot)}
}

// Text renders the cell the way it is stored by text-only codecs.
func (c Cell) Text() string {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string:
		return v
	case decimal.Decimal:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func text(s string) Cell { return Cell{Value: s} }
func header(s string) Cell { return Cell{Value: s, Format: FormatHeader} }
func price(d decimal.Decimal) Cell { return Cell{Value: d, Format: FormatPrice} }
func money(d decimal.Decimal) Cell { return Cell{Value: d, Format: FormatMoney} }
func labelled(l string, c Cell) []Cell { return []Cell{text(l), c} }

// BuildReport renders an exported session. Totals are recomputed from the
// rows with the session's day counts; exp.Latest only supplies the
// computation date.
func BuildReport(exp core.SessionExport, now time.Time) (Workbook, error) {
	cfg := exp.Session.Config
	slots, err := cfg.Resolve()
	if err != nil {
		return Workbook{}, err
	}
	months, err := core.MonthBreakdown(cfg, exp.Months)
	if err != nil {
		return Workbook{}, err
	}

	computedAt := now
	if exp.Latest != nil {
		computedAt = exp.Latest.ComputedAt
	}

	wb := Workbook{Name: fmt.Sprintf("session_%d_%s", exp.Session.ID, now.UTC().Format("20060102_150405"))}
	wb.Sheets = append(wb.Sheets, summarySheet(exp, months, computedAt))
	for i, s := range slots {
		wb.Sheets = append(wb.Sheets, monthSheet(s, exp.Months[i]))
	}
	return wb, nil
}

func summarySheet(exp core.SessionExport, months [core.SlotCount]core.MonthSubtotal, computedAt time.Time) Sheet {
	var vol, cost decimal.Decimal
	for _, m := range months {
		vol = vol.Add(m.Volume)
		cost = cost.Add(m.Cost)
	}
	adj := exp.Session.Adjustment

	pmpv, final := text("n/a"), text("n/a")
	if vol.IsPositive() {
		p := cost.Div(vol)
		pmpv = price(core.RoundPrice(p))
		final = price(core.RoundPrice(p.Add(adj)))
	}

	leap := "No"
	if exp.Session.Config.IsLeapYear {
		leap = "Yes"
	}

	rows := [][]Cell{
		{{Value: "PMPV Quarterly Report - " + exp.Session.Name, Format: FormatTitle}},
		labelled("Computed at", text(computedAt.UTC().Format("2006-01-02 15:04:05"))),
		nil,
		labelled("Start month", text(exp.Session.Config.StartMonth)),
		labelled("Leap year", text(leap)),
		labelled("Total volume", money(core.RoundMoney(vol))),
		labelled("Total cost", money(core.RoundMoney(cost))),
		labelled("PMPV", pmpv),
		labelled("Adjustment", price(adj)),
		labelled("Final price", final),
		nil,
		{header("Month"), header("Volume"), header("Cost"), header("PMPV")},
	}
	for _, m := range months {
		rows = append(rows, []Cell{
			text(fmt.Sprintf("%d - %s (%d days)", m.Slot, m.Month, m.DayCount)),
			money(core.RoundMoney(m.Volume)),
			money(core.RoundMoney(m.Cost)),
			price(core.RoundPrice(m.PMPV)),
		})
	}
	if exp.Session.Notes != "" {
		rows = append(rows, nil, labelled("Notes", text(exp.Session.Notes)))
	}
	return Sheet{Name: SummarySheet, Rows: rows}
}

func monthSheet(s core.SlotMonth, rows []core.LedgerRow) Sheet {
	out := [][]Cell{
		{monthTitle(s)},
		nil,
		headerRow(),
	}
	for _, r := range rows {
		if strings.TrimSpace(r.SupplierName) == "" {
			continue
		}
		out = append(out, []Cell{
			text(r.SupplierName),
			price(r.ComponentA),
			price(r.ComponentB),
			price(r.ComponentC),
			price(r.UnitPrice()),
			money(r.DailyVolume),
			money(core.RoundMoney(r.Cost(s.DayCount))),
		})
	}
	return Sheet{Name: MonthSheetName(s.Slot), Rows: out}
}

func monthTitle(s core.SlotMonth) Cell {
	return Cell{Value: fmt.Sprintf("%s - %s (%d days)", MonthSheetName(s.Slot), s.Month, s.DayCount), Format: FormatTitle}
}

func headerRow() []Cell {
	row := make([]Cell, len(MonthHeaders))
	for i, h := range MonthHeaders {
		row[i] = header(h)
	}
	return row
}

// BuildTemplate renders an empty quarter for manual filling. Every month
// sheet lists the suppliers with blank numeric cells.
func BuildTemplate(cfg core.QuarterConfig, suppliers []string, now time.Time) (Workbook, error) {
	slots, err := cfg.Resolve()
	if err != nil {
		return Workbook{}, err
	}
	wb := Workbook{Name: "pmpv_template_" + now.UTC().Format("20060102_150405")}
	wb.Sheets = append(wb.Sheets, Sheet{Name: SummarySheet, Rows: [][]Cell{
		{{Value: "PMPV Quarterly Template", Format: FormatTitle}},
		nil,
		labelled("Start month", text(cfg.StartMonth)),
		labelled("Instructions", text("Fill components and daily volume on each month sheet, then import.")),
	}})
	for _, s := range slots {
		sheet := Sheet{Name: MonthSheetName(s.Slot), Rows: [][]Cell{
			{monthTitle(s)},
			nil,
			headerRow(),
		}}
		for _, name := range suppliers {
			sheet.Rows = append(sheet.Rows, []Cell{text(name)})
		}
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

// ParseWorkbook reads the month sheets of a document. A missing month sheet
// yields an empty slot.
func ParseWorkbook(v Values) ([core.SlotCount][]core.LedgerRow, error) {
	var out [core.SlotCount][]core.LedgerRow
	for i := range out {
		var rows [][]string
		for _, name := range monthSheetAliases(i + 1) {
			if r, ok := v[name]; ok {
				rows = r
				break
			}
		}
		parsed, err := ParseMonthRows(rows)
		if err != nil {
			return out, fmt.Errorf("%s: %w", MonthSheetName(i+1), err)
		}
		out[i] = parsed
	}
	return out, nil
}

// ParseMonthRows converts the cell text of one month sheet into rows. Data
// starts after the "Supplier" header, or at FirstDataRow when no header is
// found. Rows without a supplier name are skipped and blank numeric cells
// read as zero.
func ParseMonthRows(rows [][]string) ([]core.LedgerRow, error) {
	start := FirstDataRow - 1
	for i, r := range rows {
		if len(r) > 0 && strings.EqualFold(strings.TrimSpace(r[0]), MonthHeaders[colSupplier]) {
			start = i + 1
			break
		}
	}

	var out []core.LedgerRow
	for i := start; i < len(rows); i++ {
		cols := rows[i]
		name := strings.TrimSpace(cell(cols, colSupplier))
		if name == "" {
			continue
		}
		row := core.LedgerRow{SupplierName: name}
		fields := []struct {
			col int
			f   core.Field
		}{
			{colComponentA, core.FieldComponentA},
			{colComponentB, core.FieldComponentB},
			{colComponentC, core.FieldComponentC},
			{colDailyVolume, core.FieldDailyVolume},
		}
		for _, fc := range fields {
			if err := row.SetField(fc.f, cell(cols, fc.col)); err != nil {
				return nil, fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func cell(cols []string, idx int) string {
	if idx < 0 || idx >= len(cols) {
		return ""
	}
	return cols[idx]
}

// ToValues renders a workbook into the cell text a reader would return.
func ToValues(wb Workbook) Values {
	v := make(Values, len(wb.Sheets))
	for _, s := range wb.Sheets {
		rows := make([][]string, len(s.Rows))
		for i, r := range s.Rows {
			rows[i] = make([]string, len(r))
			for j, c := range r {
				rows[i][j] = c.Text()
			}
		}
		v[s.Name] = rows
	}
	return v
}
