package xlsx

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
	ports "pmpv/internal/sheets"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testExport() core.SessionExport {
	return core.SessionExport{
		Session: core.Session{ID: 3, Name: "Q4", Config: core.QuarterConfig{StartMonth: "November"}},
		Months: [core.SlotCount][]core.LedgerRow{
			{
				{SupplierName: "PETROBRAS", ComponentA: d("10.50"), ComponentB: d("0.50"), ComponentC: d("0.30"), DailyVolume: d("100000")},
				{SupplierName: "GALP", ComponentA: d("10.1234"), ComponentB: d("0.0001"), ComponentC: d("0"), DailyVolume: d("2500.5")},
			},
			{
				{SupplierName: "ENEVA", ComponentA: d("11.20"), ComponentB: d("0.45"), ComponentC: d("0.25"), DailyVolume: d("80000")},
			},
			nil,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	exp := testExport()
	wb, err := ports.BuildReport(exp, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, wb); err != nil {
		t.Fatalf("encode: %v", err)
	}
	values, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := values[ports.SummarySheet]; !ok {
		t.Fatalf("summary sheet missing: %v", values)
	}

	months, err := ports.ParseWorkbook(values)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for i := range months {
		if len(months[i]) != len(exp.Months[i]) {
			t.Fatalf("slot %d: got %d rows, want %d", i+1, len(months[i]), len(exp.Months[i]))
		}
		for j, got := range months[i] {
			want := exp.Months[i][j]
			if got.SupplierName != want.SupplierName ||
				!got.ComponentA.Equal(want.ComponentA) ||
				!got.ComponentB.Equal(want.ComponentB) ||
				!got.ComponentC.Equal(want.ComponentC) ||
				!got.DailyVolume.Equal(want.DailyVolume) {
				t.Fatalf("slot %d row %d: got %+v, want %+v", i+1, j+1, got, want)
			}
		}
	}
}

func TestStoreWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	wb, err := ports.BuildTemplate(core.DefaultQuarterConfig(), []string{"PETROBRAS"}, time.Now())
	if err != nil {
		t.Fatalf("template: %v", err)
	}
	ref, err := s.WriteReport(context.Background(), wb)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Dir(ref) != dir || filepath.Ext(ref) != ".xlsx" {
		t.Fatalf("unexpected ref %s", ref)
	}
	values, err := s.ReadReport(context.Background(), ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	months, err := ports.ParseWorkbook(values)
	if err != nil || len(months[2]) != 1 || months[2][0].SupplierName != "PETROBRAS" {
		t.Fatalf("unexpected template content %+v err=%v", months, err)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.xlsx"))
	if !errors.Is(err, core.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(bytes.NewBufferString("not a workbook")); err == nil {
		t.Fatalf("expected error for non-xlsx input")
	}
}
