package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"pmpv/internal/core"
)

type env struct {
	t         *testing.T
	db        string
	exportDir string
}

// newEnv points every invocation at a fresh SQLite file and clears the
// broker and Google settings of the host environment.
func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{t: t, db: filepath.Join(dir, "pmpv.db"), exportDir: filepath.Join(dir, "exports")}
	for k, v := range map[string]string{
		"DATA_BACKEND":                "sqlite",
		"EXPORT_DIR":                  e.exportDir,
		"AMQP_URL":                    "",
		"GOOGLE_SPREADSHEET_ID":       "",
		"GOOGLE_SERVICE_ACCOUNT_FILE": "",
		"BACKUP_DIR":                  "",
		"DEFAULT_SUPPLIERS":           "PETROBRAS,GALP",
		"DEFAULT_START_MONTH":         "January",
		"LOG_LEVEL":                   "error",
		"PORT":                        "8081",
	} {
		t.Setenv(k, v)
	}
	return e
}

// pmpv runs one CLI invocation with input as stdin.
func (e *env) pmpv(input string, args ...string) (string, error) {
	e.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--db", e.db}, args...)
	err := run(context.Background(), strings.NewReader(input), &out, &errOut, full)
	return out.String(), err
}

func (e *env) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.pmpv("", args...)
	if err != nil {
		e.t.Fatalf("pmpv %s: %v\noutput:\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func expectLine(t *testing.T, out string, pattern string) {
	t.Helper()
	if !regexp.MustCompile(`(?m)` + pattern).MatchString(out) {
		t.Fatalf("output does not match %q:\n%s", pattern, out)
	}
}

// scenario builds the November/December quarter used across the tests.
func (e *env) scenario() {
	e.t.Helper()
	e.mustRun("session", "create", "Q4", "--start-month", "Novembro", "--adjustment", "0.25")
	for _, args := range [][]string{
		{"month", "set", "1", "1", "1", "supplier", "Fornecedor 1"},
		{"month", "set", "1", "1", "1", "a", "10,50"},
		{"month", "set", "1", "1", "1", "b", "0.50"},
		{"month", "set", "1", "1", "1", "c", "0.30"},
		{"month", "set", "1", "1", "1", "volume", "100000"},
		{"month", "set", "1", "2", "2", "supplier", "Fornecedor 2"},
		{"month", "set", "1", "2", "2", "component_a", "11.20"},
		{"month", "set", "1", "2", "2", "component_b", "0.45"},
		{"month", "set", "1", "2", "2", "component_c", "0.25"},
		{"month", "set", "1", "2", "2", "daily_volume", "80000"},
	} {
		e.mustRun(args...)
	}
}

func TestCreateAndShowSession(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("session", "create", "Q1 2024", "--notes", "first", "--start-month", "Fevereiro", "--leap")
	expectLine(t, out, `^Created session 1$`)
	expectLine(t, out, `Month 1:\s+February \(29 days\)`)
	expectLine(t, out, `Month 3:\s+April \(30 days\)`)

	out = e.mustRun("session", "list")
	expectLine(t, out, `^1\s+Q1 2024\s+\S+\s+.*-\s+-$`)

	out = e.mustRun("month", "show", "1", "3")
	expectLine(t, out, `^Month 3 - April \(30 days\)$`)
	expectLine(t, out, `^1\s+PETROBRAS \*`)
	expectLine(t, out, `^2\s+GALP \*`)
}

func TestCreateSessionRejectsBadSettings(t *testing.T) {
	e := newEnv(t)
	if _, err := e.pmpv("", "session", "create", "x", "--start-month", "Smarch"); !errors.Is(err, core.ErrInvalidMonthName) {
		t.Fatalf("expected ErrInvalidMonthName, got %v", err)
	}
	if _, err := e.pmpv("", "session", "create", "x", "--adjustment", "abc"); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := e.pmpv("", "session", "create", "  "); !errors.Is(err, core.ErrEmptySessionName) {
		t.Fatalf("expected ErrEmptySessionName, got %v", err)
	}
	out := e.mustRun("session", "list")
	expectLine(t, out, `^No sessions\.$`)
}

func TestCalculateScenario(t *testing.T) {
	e := newEnv(t)
	e.scenario()

	out := e.mustRun("calc", "1")
	expectLine(t, out, `^1 - November\s+30\s+1\s+3000000\.00\s+33900000\.00\s+11\.3000$`)
	expectLine(t, out, `^2 - December\s+31\s+1\s+2480000\.00\s+29512000\.00\s+11\.9000$`)
	expectLine(t, out, `^3 - January\s+31\s+0\s+0\.00\s+0\.00\s+n/a$`)
	expectLine(t, out, `^Total volume:\s+5480000\.00$`)
	expectLine(t, out, `^Total cost:\s+63412000\.00$`)
	expectLine(t, out, `^PMPV:\s+11\.5715$`)
	expectLine(t, out, `^Final price:\s+11\.8215$`)

	out = e.mustRun("session", "show", "1")
	expectLine(t, out, `^Latest PMPV:\s+11\.5715`)
	expectLine(t, out, `^Month 1 rows: 2$`)
	expectLine(t, out, `^Month 3 rows: 2$`)

	// Changing the adjustment does not touch the stored result until the
	// next calculation.
	e.mustRun("session", "config", "1", "--adjustment=-0,10")
	out = e.mustRun("calc", "1")
	expectLine(t, out, `^Final price:\s+11\.4715$`)
}

func TestCalculateWithoutVolume(t *testing.T) {
	e := newEnv(t)
	e.mustRun("session", "create", "empty")
	if _, err := e.pmpv("", "calc", "1"); !errors.Is(err, core.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := e.pmpv("", "calc", "9"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := e.pmpv("", "calc", "abc"); err == nil {
		t.Fatal("expected invalid id error")
	}
}

func TestMonthEditing(t *testing.T) {
	e := newEnv(t)
	e.mustRun("session", "create", "edits")

	out := e.mustRun("month", "add", "1", "1", "ENEVA")
	expectLine(t, out, `^3\s+ENEVA\s`)

	// Values starting with a dash follow "--" so they are not read as flags.
	if _, err := e.pmpv("", "month", "set", "--", "1", "1", "3", "a", "-1"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.pmpv("", "month", "set", "1", "1", "3", "volume", "1x"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.pmpv("", "month", "set", "1", "1", "3", "colour", "1"); !errors.Is(err, core.ErrUnknownLedgerField) {
		t.Fatalf("expected ErrUnknownLedgerField, got %v", err)
	}
	if _, err := e.pmpv("", "month", "show", "1", "4"); !errors.Is(err, core.ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}

	out, err := e.pmpv("n\n", "month", "remove", "1", "1", "3")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	expectLine(t, out, `Cancelled\.$`)
	out = e.mustRun("month", "show", "1", "1")
	expectLine(t, out, `^3\s+ENEVA\s`)

	out, err = e.pmpv("y\n", "month", "remove", "1", "1", "3")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	expectLine(t, out, `Remove row 3 \(ENEVA\)\? \[y/N\]: `)
	if n := strings.Count(out, "ENEVA"); n != 1 {
		t.Fatalf("row still listed:\n%s", out)
	}
	if _, err := e.pmpv("", "month", "remove", "1", "1", "9", "--yes"); !errors.Is(err, core.ErrRowNotInLedger) {
		t.Fatalf("expected ErrRowNotInLedger, got %v", err)
	}
}

func TestMonthCopyConflict(t *testing.T) {
	e := newEnv(t)
	e.mustRun("session", "create", "copies")
	e.mustRun("month", "set", "1", "1", "1", "volume", "100")

	// PETROBRAS is a placeholder in month 2, so the name matches and the
	// copy asks before overwriting.
	out, err := e.pmpv("n\n", "month", "copy", "1", "1", "1", "2")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	expectLine(t, out, `Overwrite\? \[y/N\]: Cancelled\.$`)

	out, err = e.pmpv("yes\n", "month", "copy", "1", "1", "1", "2")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	expectLine(t, out, `^1\s+PETROBRAS\s+0\s+0\s+0\s+0\s+100\s`)

	e.mustRun("month", "set", "1", "1", "1", "supplier", "BRAVA")
	out = e.mustRun("month", "copy", "1", "1", "1", "3", "--overwrite")
	expectLine(t, out, `^1\s+BRAVA\s`)
}

func TestDeleteSessionConfirmation(t *testing.T) {
	e := newEnv(t)
	e.mustRun("session", "create", "gone")

	out, err := e.pmpv("\n", "session", "delete", "1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	expectLine(t, out, `Cancelled\.$`)

	out = e.mustRun("session", "delete", "1", "-y")
	expectLine(t, out, `^Deleted session 1$`)
	if _, err := e.pmpv("", "session", "show", "1"); !errors.Is(err, core.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

var refPattern = regexp.MustCompile(`(?m)^(?:Report|Template) written: (.+)$`)

func writtenRef(t *testing.T, out string) string {
	t.Helper()
	m := refPattern.FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no ref in output:\n%s", out)
	}
	return m[1]
}

func TestExportImportRoundTrip(t *testing.T) {
	e := newEnv(t)
	e.scenario()

	path := writtenRef(t, e.mustRun("export", "1"))
	if filepath.Dir(path) != e.exportDir {
		t.Fatalf("report written outside export dir: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("report missing: %v", err)
	}

	e.mustRun("session", "create", "copy", "--start-month", "November", "--adjustment", "0.25")
	out := e.mustRun("import", "2", path)
	// Unfilled named rows travel with the report.
	expectLine(t, out, `^Month 1: 2 rows$`)
	expectLine(t, out, `^Month 2: 2 rows$`)
	expectLine(t, out, `^Month 3: 2 rows$`)

	out = e.mustRun("calc", "2")
	expectLine(t, out, `^PMPV:\s+11\.5715$`)
	expectLine(t, out, `^Final price:\s+11\.8215$`)

	if _, err := e.pmpv("", "import", "2"); err == nil {
		t.Fatal("expected missing path error")
	}
	if _, err := e.pmpv("", "export", "1", "--google"); !errors.Is(err, errGoogleDisabled) {
		t.Fatalf("expected errGoogleDisabled, got %v", err)
	}
}

func TestTemplate(t *testing.T) {
	e := newEnv(t)
	path := writtenRef(t, e.mustRun("template", "--start-month", "March"))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("template missing: %v", err)
	}

	e.mustRun("session", "create", "from template", "--start-month", "March")
	out := e.mustRun("import", "1", path)
	expectLine(t, out, `^Month 1: 2 rows$`)
	if _, err := e.pmpv("", "calc", "1"); !errors.Is(err, core.ErrInsufficientData) {
		t.Fatalf("blank template must not calculate, got %v", err)
	}
}

func TestBackup(t *testing.T) {
	e := newEnv(t)
	e.mustRun("session", "create", "kept")
	dir := filepath.Join(t.TempDir(), "backups")

	out := e.mustRun("backup", dir, "--keep", "1")
	m := regexp.MustCompile(`(?m)^Backup written: (.+)$`).FindStringSubmatch(out)
	if m == nil {
		t.Fatalf("no backup path in output:\n%s", out)
	}
	if _, err := os.Stat(m[1]); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	if _, err := e.pmpv("", "--backend", "memory", "backup", dir); err == nil {
		t.Fatal("expected memory backend backup to fail")
	}
}

func TestCalendar(t *testing.T) {
	e := newEnv(t)
	out := e.mustRun("calendar", "--start-month", "Dezembro")
	expectLine(t, out, `^1\s+December\s+31$`)
	expectLine(t, out, `^2\s+January\s+31$`)
	expectLine(t, out, `^3\s+February\s+28$`)
	expectLine(t, out, `Total\s+90$`)

	out = e.mustRun("calendar", "--start-month", "December", "--leap")
	expectLine(t, out, `^3\s+February\s+29$`)

	if _, err := os.Stat(e.db); !os.IsNotExist(err) {
		t.Fatalf("calendar must not open the database, stat err=%v", err)
	}
}

func TestParseField(t *testing.T) {
	tests := map[string]core.Field{
		"name":         core.FieldSupplier,
		"A":            core.FieldComponentA,
		" volume ":     core.FieldDailyVolume,
		"component_c":  core.FieldComponentC,
		"daily_volume": core.FieldDailyVolume,
	}
	for in, want := range tests {
		if got := parseField(in); got != want {
			t.Errorf("parseField(%q) = %q, want %q", in, got, want)
		}
	}
}
