package google

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	gsheet "google.golang.org/api/sheets/v4"

	"pmpv/internal/core"
	ports "pmpv/internal/sheets"
)

func TestA1QuotesSheetNames(t *testing.T) {
	if got := a1("Month 1", "A:G"); got != "'Month 1'!A:G" {
		t.Fatalf("got %s", got)
	}
	if got := a1("O'Brien", "A1"); got != "'O''Brien'!A1" {
		t.Fatalf("got %s", got)
	}
}

func TestAddSheetRequestsOnlyForMissingTabs(t *testing.T) {
	wb := ports.Workbook{Sheets: []ports.Sheet{{Name: ports.SummarySheet}, {Name: "Month 1"}, {Name: "Month 2"}}}
	reqs := addSheetRequests([]string{"Month 1", "Other"}, wb)
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].AddSheet.Properties.Title != ports.SummarySheet || reqs[1].AddSheet.Properties.Title != "Month 2" {
		t.Fatalf("unexpected requests %+v %+v", reqs[0].AddSheet.Properties, reqs[1].AddSheet.Properties)
	}
}

func TestCellString(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{1000000.0, "1000000"},
		{0.0001, "0.0001"},
		{10.5, "10.5"},
		{" GALP ", "GALP"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := cellString(tc.in); got != tc.want {
			t.Fatalf("%v: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValueRangesRoundTrip(t *testing.T) {
	d := decimal.RequireFromString
	exp := core.SessionExport{
		Session: core.Session{Name: "Q1", Config: core.DefaultQuarterConfig()},
		Months: [core.SlotCount][]core.LedgerRow{
			nil,
			{{SupplierName: "ORIZON", ComponentA: d("9.75"), ComponentB: d("0.4"), ComponentC: d("0.2"), DailyVolume: d("1500000")}},
			nil,
		},
	}
	wb, err := ports.BuildReport(exp, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// Emulate the API echoing back what was written.
	vrs := valueRanges(wb)
	titles := make([]string, len(wb.Sheets))
	echoed := make([]*gsheet.ValueRange, len(vrs))
	for i, vr := range vrs {
		titles[i] = wb.Sheets[i].Name
		echoed[i] = &gsheet.ValueRange{Values: vr.Values}
	}
	months, err := ports.ParseWorkbook(parseValueRanges(titles, echoed))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(months[1]) != 1 {
		t.Fatalf("expected one row in slot 2, got %+v", months)
	}
	got := months[1][0]
	if got.SupplierName != "ORIZON" || !got.UnitPrice().Equal(d("10.35")) || !got.DailyVolume.Equal(d("1500000")) {
		t.Fatalf("unexpected row %+v", got)
	}
}

func TestClientWithoutServiceFails(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if _, err := c.WriteReport(context.Background(), ports.Workbook{}); err == nil {
		t.Fatalf("expected error without service")
	}
	if _, err := c.ReadReport(context.Background(), ""); err == nil {
		t.Fatalf("expected error without service")
	}
}

func TestNewFromEnvMissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	if _, err := NewFromEnv(context.Background()); err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}
