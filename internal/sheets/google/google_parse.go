package google

import (
	"fmt"
	"strconv"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	ports "pmpv/internal/sheets"
)

// a1 builds an A1 range on a quoted sheet name.
func a1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

func addSheetRequests(existing []string, wb ports.Workbook) []*gsheet.Request {
	have := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		have[t] = struct{}{}
	}
	var reqs []*gsheet.Request
	for _, sh := range wb.Sheets {
		if _, ok := have[sh.Name]; ok {
			continue
		}
		reqs = append(reqs, &gsheet.Request{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: sh.Name}},
		})
		have[sh.Name] = struct{}{}
	}
	return reqs
}

// valueRanges converts workbook sheets into Sheets API value ranges.
// Decimals are sent as numbers, blank cells as empty strings.
func valueRanges(wb ports.Workbook) []*gsheet.ValueRange {
	out := make([]*gsheet.ValueRange, 0, len(wb.Sheets))
	for _, sh := range wb.Sheets {
		rows := make([][]interface{}, len(sh.Rows))
		for i, r := range sh.Rows {
			rows[i] = make([]interface{}, len(r))
			for j, c := range r {
				rows[i][j] = apiValue(c)
			}
		}
		out = append(out, &gsheet.ValueRange{Range: a1(sh.Name, "A1"), Values: rows})
	}
	return out
}

func apiValue(c ports.Cell) interface{} {
	switch v := c.Value.(type) {
	case nil:
		return ""
	case string, int:
		return v
	default:
		if f, err := strconv.ParseFloat(c.Text(), 64); err == nil {
			return f
		}
		return c.Text()
	}
}

// parseValueRanges pairs each returned range with the sheet title it was
// requested for.
func parseValueRanges(titles []string, vrs []*gsheet.ValueRange) ports.Values {
	out := make(ports.Values, len(titles))
	for i, vr := range vrs {
		if i >= len(titles) || vr == nil {
			break
		}
		rows := make([][]string, len(vr.Values))
		for r, row := range vr.Values {
			rows[r] = toStrings(row)
		}
		out[titles[i]] = rows
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = cellString(v)
	}
	return out
}

// cellString renders an unformatted API value without exponent notation.
func cellString(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
