// Package xlsx reads and writes report workbooks as Excel files.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"pmpv/internal/core"
	ports "pmpv/internal/sheets"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Store writes reports as files under a directory and reads them back by
// path.
type Store struct {
	dir string
}

var (
	_ ports.ReportWriter = (*Store)(nil)
	_ ports.ReportReader = (*Store)(nil)
)

func New(dir string) *Store {
	return &Store{dir: dir}
}

// WriteReport saves wb as <dir>/<wb.Name>.xlsx and returns the file path.
func (s *Store) WriteReport(ctx context.Context, wb ports.Workbook) (string, error) {
	if wb.Name == "" {
		return "", errors.New("workbook has no name")
	}
	path := filepath.Join(s.dir, wb.Name+".xlsx")
	if err := WriteFile(path, wb); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Report written", "path", path, "sheets", len(wb.Sheets))
	return path, nil
}

// ReadReport reads the workbook at ref, a file path.
func (s *Store) ReadReport(_ context.Context, ref string) (ports.Values, error) {
	return ReadFile(ref)
}

func WriteFile(path string, wb ports.Workbook) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Encode(out, wb); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func ReadFile(path string) (ports.Values, error) {
	in, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, core.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer in.Close()
	return Decode(in)
}

// Encode writes wb as an xlsx document. Decimals are stored as numbers with
// the cell's number format.
func Encode(w io.Writer, wb ports.Workbook) error {
	if len(wb.Sheets) == 0 {
		return errors.New("workbook has no sheets")
	}
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	for i, sh := range wb.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return fmt.Errorf("rename sheet %s: %w", sh.Name, err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", sh.Name, err)
		}
		for r, row := range sh.Rows {
			for c, cell := range row {
				if cell.Value == nil {
					continue
				}
				axis, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(sh.Name, axis, cellValue(cell)); err != nil {
					return fmt.Errorf("set %s!%s: %w", sh.Name, axis, err)
				}
				if style, ok := styles[cell.Format]; ok {
					if err := f.SetCellStyle(sh.Name, axis, axis, style); err != nil {
						return fmt.Errorf("style %s!%s: %w", sh.Name, axis, err)
					}
				}
			}
		}
		if err := f.SetColWidth(sh.Name, "A", "A", 30); err != nil {
			return err
		}
		if err := f.SetColWidth(sh.Name, "B", "G", 16); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	return f.Write(w)
}

// Decode returns the raw cell text of every sheet, without number
// formatting applied.
func Decode(r io.Reader) (ports.Values, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	v := make(ports.Values)
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		v[name] = rows
	}
	return v, nil
}

func cellValue(c ports.Cell) interface{} {
	if d, ok := c.Value.(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return c.Value
}

func newStyles(f *excelize.File) (map[ports.CellFormat]int, error) {
	price := ports.FormatPrice.NumberFormat()
	money := ports.FormatMoney.NumberFormat()
	defs := map[ports.CellFormat]*excelize.Style{
		ports.FormatPrice: {CustomNumFmt: &price},
		ports.FormatMoney: {CustomNumFmt: &money},
		ports.FormatHeader: {
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		},
		ports.FormatTitle: {Font: &excelize.Font{Bold: true, Size: 14}},
	}
	out := make(map[ports.CellFormat]int, len(defs))
	for k, def := range defs {
		id, err := f.NewStyle(def)
		if err != nil {
			return nil, fmt.Errorf("create style: %w", err)
		}
		out[k] = id
	}
	return out, nil
}
