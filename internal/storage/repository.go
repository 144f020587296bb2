package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that ORDER BY on the text column is
// chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Foreign keys are per connection in SQLite; the cascade on session
	// delete depends on them.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateSession stores a new session with the initial rows of each slot
// and stamps its creation and modification time. Session and rows are
// written in one transaction.
func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session, months [core.SlotCount][]core.LedgerRow) (core.Session, error) {
	if s.Config.StartMonth == "" {
		s.Config = core.DefaultQuarterConfig()
	}
	if err := s.Validate(); err != nil {
		return core.Session{}, err
	}
	if err := validateMonths(months); err != nil {
		return core.Session{}, err
	}

	var row Session
	stamp := formatTime(r.now())
	err := r.inTx(ctx, "create session", func(qtx *Queries) error {
		var err error
		row, err = qtx.CreateSession(ctx, CreateSessionParams{
			Name:       s.Name,
			Notes:      s.Notes,
			CreatedAt:  stamp,
			ModifiedAt: stamp,
			StartMonth: s.Config.StartMonth,
			IsLeapYear: boolToInt(s.Config.IsLeapYear),
			Adjustment: s.Adjustment.String(),
		})
		if err != nil {
			return &core.PersistenceError{Op: "create session", Err: err}
		}
		return replaceMonths(ctx, qtx, "create session", row.ID, months)
	})
	if err != nil {
		return core.Session{}, err
	}

	slog.InfoContext(ctx, "Session created", "session_id", row.ID, "name", row.Name)
	return toCoreSession(row)
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id int64) (core.Session, error) {
	row, err := r.queries.GetSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session %d: %w", id, core.ErrSessionNotFound)
	}
	if err != nil {
		return core.Session{}, &core.PersistenceError{Op: "get session", Err: err}
	}
	return toCoreSession(row)
}

// UpdateSettings changes the quarter configuration and adjustment of a
// session.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, id int64, cfg core.QuarterConfig, adjustment decimal.Decimal) (core.Session, error) {
	if err := cfg.Validate(); err != nil {
		return core.Session{}, err
	}
	row, err := r.queries.UpdateSessionSettings(ctx, UpdateSessionSettingsParams{
		StartMonth: cfg.StartMonth,
		IsLeapYear: boolToInt(cfg.IsLeapYear),
		Adjustment: adjustment.String(),
		ModifiedAt: formatTime(r.now()),
		ID:         id,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return core.Session{}, fmt.Errorf("session %d: %w", id, core.ErrSessionNotFound)
	}
	if err != nil {
		return core.Session{}, &core.PersistenceError{Op: "update settings", Err: err}
	}

	slog.InfoContext(ctx, "Session settings updated",
		"session_id", id,
		"start_month", cfg.StartMonth,
		"leap_year", cfg.IsLeapYear,
		"adjustment", adjustment.String())
	return toCoreSession(row)
}

// SaveMonth replaces every stored row of one slot in a single transaction.
// On failure the previous rows stay intact.
func (r *SQLiteRepository) SaveMonth(ctx context.Context, sessionID int64, slot int, rows []core.LedgerRow) error {
	if err := validateMonth(slot, rows); err != nil {
		return err
	}
	err := r.inTx(ctx, "save month", func(qtx *Queries) error {
		if err := r.touch(ctx, qtx, "save month", sessionID); err != nil {
			return err
		}
		return replaceMonth(ctx, qtx, "save month", sessionID, slot, rows)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Month saved", "session_id", sessionID, "slot", slot, "rows", len(rows))
	return nil
}

// SaveMonths replaces the rows of all three slots in one transaction.
func (r *SQLiteRepository) SaveMonths(ctx context.Context, sessionID int64, months [core.SlotCount][]core.LedgerRow) error {
	if err := validateMonths(months); err != nil {
		return err
	}
	err := r.inTx(ctx, "save months", func(qtx *Queries) error {
		if err := r.touch(ctx, qtx, "save months", sessionID); err != nil {
			return err
		}
		return replaceMonths(ctx, qtx, "save months", sessionID, months)
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Months saved", "session_id", sessionID, "rows", countRows(months))
	return nil
}

// SaveQuarter replaces the settings and the rows of all three slots of a
// session in one transaction.
func (r *SQLiteRepository) SaveQuarter(ctx context.Context, sessionID int64, cfg core.QuarterConfig, adjustment decimal.Decimal, months [core.SlotCount][]core.LedgerRow) (core.Session, error) {
	if err := cfg.Validate(); err != nil {
		return core.Session{}, err
	}
	if err := validateMonths(months); err != nil {
		return core.Session{}, err
	}

	var row Session
	err := r.inTx(ctx, "save quarter", func(qtx *Queries) error {
		var err error
		row, err = qtx.UpdateSessionSettings(ctx, UpdateSessionSettingsParams{
			StartMonth: cfg.StartMonth,
			IsLeapYear: boolToInt(cfg.IsLeapYear),
			Adjustment: adjustment.String(),
			ModifiedAt: formatTime(r.now()),
			ID:         sessionID,
		})
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("session %d: %w", sessionID, core.ErrSessionNotFound)
		}
		if err != nil {
			return &core.PersistenceError{Op: "save quarter", Err: err}
		}
		return replaceMonths(ctx, qtx, "save quarter", sessionID, months)
	})
	if err != nil {
		return core.Session{}, err
	}

	slog.InfoContext(ctx, "Quarter saved",
		"session_id", sessionID,
		"start_month", cfg.StartMonth,
		"rows", countRows(months))
	return toCoreSession(row)
}

// inTx runs fn in a transaction and commits when it returns nil. Errors
// from fn are returned unchanged.
func (r *SQLiteRepository) inTx(ctx context.Context, op string, fn func(qtx *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &core.PersistenceError{Op: op, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	defer tx.Rollback()

	if err := fn(r.queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &core.PersistenceError{Op: op, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (r *SQLiteRepository) touch(ctx context.Context, qtx *Queries, op string, sessionID int64) error {
	touched, err := qtx.TouchSession(ctx, formatTime(r.now()), sessionID)
	if err != nil {
		return &core.PersistenceError{Op: op, Err: err}
	}
	if touched == 0 {
		return fmt.Errorf("session %d: %w", sessionID, core.ErrSessionNotFound)
	}
	return nil
}

func replaceMonths(ctx context.Context, qtx *Queries, op string, sessionID int64, months [core.SlotCount][]core.LedgerRow) error {
	for i, rows := range months {
		if err := replaceMonth(ctx, qtx, op, sessionID, i+1, rows); err != nil {
			return err
		}
	}
	return nil
}

func replaceMonth(ctx context.Context, qtx *Queries, op string, sessionID int64, slot int, rows []core.LedgerRow) error {
	if err := qtx.DeleteMonthRows(ctx, sessionID, int64(slot)); err != nil {
		return &core.PersistenceError{Op: op, Err: fmt.Errorf("delete rows of slot %d: %w", slot, err)}
	}
	for i, row := range rows {
		if err := qtx.InsertMonthRow(ctx, InsertMonthRowParams{
			SessionID:     sessionID,
			SlotIndex:     int64(slot),
			SupplierName:  row.SupplierName,
			ComponentA:    row.ComponentA.String(),
			ComponentB:    row.ComponentB.String(),
			ComponentC:    row.ComponentC.String(),
			DailyVolume:   row.DailyVolume.String(),
			IsPlaceholder: boolToInt(row.Placeholder),
		}); err != nil {
			return &core.PersistenceError{Op: op, Err: fmt.Errorf("insert row %d of slot %d: %w", i+1, slot, err)}
		}
	}
	return nil
}

// LoadMonth returns the stored rows of one slot in insertion order.
func (r *SQLiteRepository) LoadMonth(ctx context.Context, sessionID int64, slot int) ([]core.LedgerRow, error) {
	if err := core.ValidateSlot(slot); err != nil {
		return nil, err
	}
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.loadMonth(ctx, sessionID, slot)
}

func (r *SQLiteRepository) loadMonth(ctx context.Context, sessionID int64, slot int) ([]core.LedgerRow, error) {
	dbRows, err := r.queries.ListMonthRows(ctx, sessionID, int64(slot))
	if err != nil {
		return nil, &core.PersistenceError{Op: "load month", Err: err}
	}
	rows := make([]core.LedgerRow, 0, len(dbRows))
	for _, m := range dbRows {
		row, err := toCoreRow(m)
		if err != nil {
			return nil, &core.PersistenceError{Op: "load month", Err: fmt.Errorf("row %d: %w", m.ID, err)}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SaveResult appends a result record timestamped now. Earlier results are
// kept.
func (r *SQLiteRepository) SaveResult(ctx context.Context, sessionID int64, res core.QuarterlyResult) (core.StoredResult, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return core.StoredResult{}, err
	}
	row, err := r.queries.InsertResult(ctx, InsertResultParams{
		SessionID:   sessionID,
		TotalVolume: res.TotalVolume.String(),
		Pmpv:        res.PMPV.String(),
		TotalCost:   res.TotalCost.String(),
		ComputedAt:  formatTime(r.now()),
		Adjustment:  res.Adjustment.String(),
		FinalPrice:  res.FinalPrice.String(),
	})
	if err != nil {
		return core.StoredResult{}, &core.PersistenceError{Op: "save result", Err: err}
	}

	slog.InfoContext(ctx, "Result saved",
		"session_id", sessionID,
		"result_id", row.ID,
		"pmpv", core.RoundPrice(res.PMPV).String(),
		"total_volume", res.TotalVolume.String())
	return toStoredResult(row)
}

// LatestResult returns the most recent result of a session, or nil when
// none was saved.
func (r *SQLiteRepository) LatestResult(ctx context.Context, sessionID int64) (*core.StoredResult, error) {
	if _, err := r.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return r.latestResult(ctx, sessionID)
}

func (r *SQLiteRepository) latestResult(ctx context.Context, sessionID int64) (*core.StoredResult, error) {
	row, err := r.queries.LatestResult(ctx, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "latest result", Err: err}
	}
	res, err := toStoredResult(row)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListSessions returns every session, most recently modified first, with
// its latest result when one exists.
func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]core.SessionSummary, error) {
	rows, err := r.queries.ListSessions(ctx)
	if err != nil {
		return nil, &core.PersistenceError{Op: "list sessions", Err: err}
	}
	out := make([]core.SessionSummary, 0, len(rows))
	for _, row := range rows {
		s, err := toCoreSession(row)
		if err != nil {
			return nil, err
		}
		latest, err := r.latestResult(ctx, s.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, core.SessionSummary{Session: s, Latest: latest})
	}
	return out, nil
}

// DeleteSession removes a session. Rows and results go with it through the
// foreign key cascade.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteSession(ctx, id)
	if err != nil {
		return &core.PersistenceError{Op: "delete session", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("session %d: %w", id, core.ErrSessionNotFound)
	}
	slog.InfoContext(ctx, "Session deleted", "session_id", id)
	return nil
}

// ExportSession returns the session, its rows per slot and its latest
// result.
func (r *SQLiteRepository) ExportSession(ctx context.Context, id int64) (core.SessionExport, error) {
	s, err := r.GetSession(ctx, id)
	if err != nil {
		return core.SessionExport{}, err
	}
	exp := core.SessionExport{Session: s}
	for i := range exp.Months {
		rows, err := r.loadMonth(ctx, id, i+1)
		if err != nil {
			return core.SessionExport{}, err
		}
		exp.Months[i] = rows
	}
	if exp.Latest, err = r.latestResult(ctx, id); err != nil {
		return core.SessionExport{}, err
	}
	return exp, nil
}

// Backup writes a consistent copy of the database to dest. When dest is a
// directory a timestamped file name is chosen inside it.
func (r *SQLiteRepository) Backup(ctx context.Context, dest string) (string, error) {
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		dest = filepath.Join(dest, BackupFileName(r.now()))
	} else if err == nil {
		return "", fmt.Errorf("backup target %s already exists", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}
	if err := r.queries.VacuumInto(ctx, dest); err != nil {
		return "", &core.PersistenceError{Op: "backup", Err: err}
	}
	slog.InfoContext(ctx, "Database backup written", "path", dest)
	return dest, nil
}

// BackupFileName returns the default backup file name for t.
func BackupFileName(t time.Time) string {
	return "pmpv_backup_" + t.Format("20060102_150405") + ".db"
}

func validateMonth(slot int, rows []core.LedgerRow) error {
	if err := core.ValidateSlot(slot); err != nil {
		return err
	}
	for i, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func validateMonths(months [core.SlotCount][]core.LedgerRow) error {
	for i, rows := range months {
		if err := validateMonth(i+1, rows); err != nil {
			return fmt.Errorf("slot %d: %w", i+1, err)
		}
	}
	return nil
}

func countRows(months [core.SlotCount][]core.LedgerRow) int {
	n := 0
	for _, rows := range months {
		n += len(rows)
	}
	return n
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toCoreSession(s Session) (core.Session, error) {
	created, err := parseTime(s.CreatedAt)
	if err != nil {
		return core.Session{}, &core.PersistenceError{Op: "decode session", Err: err}
	}
	modified, err := parseTime(s.ModifiedAt)
	if err != nil {
		return core.Session{}, &core.PersistenceError{Op: "decode session", Err: err}
	}
	adj, err := decimal.NewFromString(s.Adjustment)
	if err != nil {
		return core.Session{}, &core.PersistenceError{Op: "decode session", Err: err}
	}
	return core.Session{
		ID:         s.ID,
		Name:       s.Name,
		Notes:      s.Notes,
		CreatedAt:  created,
		ModifiedAt: modified,
		Config:     core.QuarterConfig{StartMonth: s.StartMonth, IsLeapYear: s.IsLeapYear != 0},
		Adjustment: adj,
	}, nil
}

func toCoreRow(m MonthRow) (core.LedgerRow, error) {
	var vals [4]decimal.Decimal
	for i, raw := range []string{m.ComponentA, m.ComponentB, m.ComponentC, m.DailyVolume} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return core.LedgerRow{}, err
		}
		vals[i] = d
	}
	return core.LedgerRow{
		SupplierName: m.SupplierName,
		ComponentA:   vals[0],
		ComponentB:   vals[1],
		ComponentC:   vals[2],
		DailyVolume:  vals[3],
		Placeholder:  m.IsPlaceholder != 0,
	}, nil
}

func toStoredResult(r Result) (core.StoredResult, error) {
	computed, err := parseTime(r.ComputedAt)
	if err != nil {
		return core.StoredResult{}, &core.PersistenceError{Op: "decode result", Err: err}
	}
	var vals [5]decimal.Decimal
	for i, raw := range []string{r.TotalVolume, r.TotalCost, r.Pmpv, r.Adjustment, r.FinalPrice} {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return core.StoredResult{}, &core.PersistenceError{Op: "decode result", Err: err}
		}
		vals[i] = d
	}
	return core.StoredResult{
		ID:         r.ID,
		SessionID:  r.SessionID,
		ComputedAt: computed,
		QuarterlyResult: core.QuarterlyResult{
			TotalVolume: vals[0],
			TotalCost:   vals[1],
			PMPV:        vals[2],
			Adjustment:  vals[3],
			FinalPrice:  vals[4],
		},
	}, nil
}
