package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
	"pmpv/internal/sheets"
)

// Store is the session persistence contract shared by the SQLite and
// in-memory repositories.
type Store interface {
	CreateSession(ctx context.Context, s core.Session, months [core.SlotCount][]core.LedgerRow) (core.Session, error)
	GetSession(ctx context.Context, id int64) (core.Session, error)
	UpdateSettings(ctx context.Context, id int64, cfg core.QuarterConfig, adjustment decimal.Decimal) (core.Session, error)
	SaveMonth(ctx context.Context, sessionID int64, slot int, rows []core.LedgerRow) error
	SaveMonths(ctx context.Context, sessionID int64, months [core.SlotCount][]core.LedgerRow) error
	SaveQuarter(ctx context.Context, sessionID int64, cfg core.QuarterConfig, adjustment decimal.Decimal, months [core.SlotCount][]core.LedgerRow) (core.Session, error)
	LoadMonth(ctx context.Context, sessionID int64, slot int) ([]core.LedgerRow, error)
	SaveResult(ctx context.Context, sessionID int64, res core.QuarterlyResult) (core.StoredResult, error)
	LatestResult(ctx context.Context, sessionID int64) (*core.StoredResult, error)
	ListSessions(ctx context.Context) ([]core.SessionSummary, error)
	DeleteSession(ctx context.Context, id int64) error
	ExportSession(ctx context.Context, id int64) (core.SessionExport, error)
	Close() error
}

// Backuper is implemented by stores that can write a consistent copy of
// themselves.
type Backuper interface {
	Backup(ctx context.Context, dest string) (string, error)
}

// ResultPublisher announces saved results to other processes.
type ResultPublisher interface {
	PublishResultComputed(ctx context.Context, r core.StoredResult) error
}

// ErrBackupUnsupported is returned by Backup when the store keeps no file.
var ErrBackupUnsupported = errors.New("backend does not support backups")

// Calculation is a saved result plus the per-month figures it came from.
type Calculation struct {
	Result core.StoredResult
	Months [core.SlotCount]core.MonthSubtotal
}

// QuarterService orchestrates quarter editing, calculation and report
// exchange across the store, the spreadsheet adapters and AMQP.
type QuarterService struct {
	store     Store
	publisher ResultPublisher
	defaults  []string
	now       func() time.Time
}

// NewQuarterService wires a service. publisher may be nil; defaults are the
// supplier names seeded into every slot of a new session.
func NewQuarterService(store Store, publisher ResultPublisher, defaults []string) *QuarterService {
	return &QuarterService{
		store:     store,
		publisher: publisher,
		defaults:  append([]string(nil), defaults...),
		now:       time.Now,
	}
}

// DefaultSuppliers returns the names seeded into new sessions.
func (s *QuarterService) DefaultSuppliers() []string {
	return append([]string(nil), s.defaults...)
}

// CreateSession stores a new session whose three slots hold one placeholder
// row per default supplier. The placeholders are stored with the session
// and are never re-seeded.
func (s *QuarterService) CreateSession(ctx context.Context, name, notes string, cfg core.QuarterConfig, adjustment decimal.Decimal) (core.Session, error) {
	var seed [core.SlotCount][]core.LedgerRow
	for i := range seed {
		seed[i] = core.NewSeededLedger(i+1, s.defaults).Values()
	}
	sess, err := s.store.CreateSession(ctx, core.Session{
		Name:       name,
		Notes:      notes,
		Config:     cfg,
		Adjustment: adjustment,
	}, seed)
	if err != nil {
		return core.Session{}, fmt.Errorf("create session: %w", err)
	}
	slog.InfoContext(ctx, "Session created",
		"session_id", sess.ID,
		"name", sess.Name,
		"start_month", sess.Config.StartMonth)
	return sess, nil
}

func (s *QuarterService) GetSession(ctx context.Context, id int64) (core.Session, error) {
	return s.store.GetSession(ctx, id)
}

func (s *QuarterService) ListSessions(ctx context.Context) ([]core.SessionSummary, error) {
	return s.store.ListSessions(ctx)
}

func (s *QuarterService) DeleteSession(ctx context.Context, id int64) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Session deleted", "session_id", id)
	return nil
}

func (s *QuarterService) UpdateSettings(ctx context.Context, id int64, cfg core.QuarterConfig, adjustment decimal.Decimal) (core.Session, error) {
	sess, err := s.store.UpdateSettings(ctx, id, cfg, adjustment)
	if err != nil {
		return core.Session{}, fmt.Errorf("update settings of session %d: %w", id, err)
	}
	return sess, nil
}

// OpenQuarter loads a session into an editable workspace exactly as
// stored. A slot saved empty stays empty.
func (s *QuarterService) OpenQuarter(ctx context.Context, id int64) (*core.Quarter, core.Session, error) {
	exp, err := s.store.ExportSession(ctx, id)
	if err != nil {
		return nil, core.Session{}, err
	}
	q, err := exp.Quarter()
	if err != nil {
		return nil, core.Session{}, fmt.Errorf("open session %d: %w", id, err)
	}
	return q, exp.Session, nil
}

// SaveQuarter persists the workspace settings and all three slots in one
// store operation. On failure nothing is changed.
func (s *QuarterService) SaveQuarter(ctx context.Context, id int64, q *core.Quarter) error {
	if _, err := s.store.SaveQuarter(ctx, id, q.Config(), q.Adjustment, q.Values()); err != nil {
		return fmt.Errorf("save quarter %d: %w", id, err)
	}
	slog.InfoContext(ctx, "Quarter saved", "session_id", id)
	return nil
}

// SaveMonth replaces the stored rows of one slot.
func (s *QuarterService) SaveMonth(ctx context.Context, id int64, slot int, rows []core.LedgerRow) error {
	if err := s.store.SaveMonth(ctx, id, slot, rows); err != nil {
		return fmt.Errorf("save slot %d: %w", slot, err)
	}
	slog.InfoContext(ctx, "Month saved",
		"session_id", id,
		"slot", slot,
		"rows", len(rows))
	return nil
}

// Month returns the resolved month and the rows of one slot.
func (s *QuarterService) Month(ctx context.Context, id int64, slot int) (core.SlotMonth, []core.LedgerRow, error) {
	q, _, err := s.OpenQuarter(ctx, id)
	if err != nil {
		return core.SlotMonth{}, nil, err
	}
	l, err := q.Ledger(slot)
	if err != nil {
		return core.SlotMonth{}, nil, err
	}
	return q.Slots()[slot-1], l.Values(), nil
}

// editMonth opens the workspace, applies fn to one ledger and saves that
// slot when fn succeeds.
func (s *QuarterService) editMonth(ctx context.Context, id int64, slot int, fn func(q *core.Quarter, l *core.MonthLedger) error) ([]core.LedgerRow, error) {
	q, _, err := s.OpenQuarter(ctx, id)
	if err != nil {
		return nil, err
	}
	l, err := q.Ledger(slot)
	if err != nil {
		return nil, err
	}
	if err := fn(q, l); err != nil {
		return nil, err
	}
	rows := l.Values()
	if err := s.SaveMonth(ctx, id, slot, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// rowAt resolves a 1-based row position.
func rowAt(l *core.MonthLedger, index int) (*core.LedgerRow, error) {
	rows := l.Rows()
	if index < 1 || index > len(rows) {
		return nil, fmt.Errorf("row %d of slot %d: %w", index, l.Slot(), core.ErrRowNotInLedger)
	}
	return rows[index-1], nil
}

// AddRow appends a row named name to a slot.
func (s *QuarterService) AddRow(ctx context.Context, id int64, slot int, name string) ([]core.LedgerRow, error) {
	return s.editMonth(ctx, id, slot, func(_ *core.Quarter, l *core.MonthLedger) error {
		l.AddRow(name)
		return nil
	})
}

// SetField edits one field of the row at a 1-based position from text.
func (s *QuarterService) SetField(ctx context.Context, id int64, slot, index int, field core.Field, raw string) ([]core.LedgerRow, error) {
	return s.editMonth(ctx, id, slot, func(_ *core.Quarter, l *core.MonthLedger) error {
		row, err := rowAt(l, index)
		if err != nil {
			return err
		}
		return row.SetField(field, raw)
	})
}

// RemoveRow deletes the row at a 1-based position. Callers confirm before
// calling; the removal is committed immediately.
func (s *QuarterService) RemoveRow(ctx context.Context, id int64, slot, index int) ([]core.LedgerRow, error) {
	return s.editMonth(ctx, id, slot, func(_ *core.Quarter, l *core.MonthLedger) error {
		row, err := rowAt(l, index)
		if err != nil {
			return err
		}
		if !l.MarkForRemoval(row).Commit() {
			return fmt.Errorf("row %d of slot %d: %w", index, slot, core.ErrRowNotInLedger)
		}
		return nil
	})
}

// DuplicateRow copies the row at a 1-based position of fromSlot into
// toSlot. A same-name row in the target is overwritten only when overwrite
// is set; otherwise ErrDuplicateAborted is returned.
func (s *QuarterService) DuplicateRow(ctx context.Context, id int64, fromSlot, index, toSlot int, overwrite bool) ([]core.LedgerRow, error) {
	resolve := core.AbortOnConflict
	if overwrite {
		resolve = core.OverwriteOnConflict
	}
	return s.editMonth(ctx, id, toSlot, func(q *core.Quarter, target *core.MonthLedger) error {
		src, err := q.Ledger(fromSlot)
		if err != nil {
			return err
		}
		row, err := rowAt(src, index)
		if err != nil {
			return err
		}
		_, err = src.DuplicateRowTo(row, target, resolve)
		return err
	})
}

// Calculate aggregates the stored rows with the session settings, saves
// the result and publishes it. A publish failure is logged only.
func (s *QuarterService) Calculate(ctx context.Context, id int64) (Calculation, error) {
	exp, err := s.store.ExportSession(ctx, id)
	if err != nil {
		return Calculation{}, err
	}
	cfg := exp.Session.Config
	res, err := core.ComputeFromRows(cfg, exp.Months, exp.Session.Adjustment)
	if err != nil {
		return Calculation{}, err
	}
	months, err := core.MonthBreakdown(cfg, exp.Months)
	if err != nil {
		return Calculation{}, err
	}
	stored, err := s.store.SaveResult(ctx, id, res)
	if err != nil {
		return Calculation{}, fmt.Errorf("save result: %w", err)
	}

	slog.InfoContext(ctx, "Quarter calculated",
		"session_id", id,
		"result_id", stored.ID,
		"total_volume", res.TotalVolume.String(),
		"pmpv", res.PMPV.String(),
		"final_price", res.FinalPrice.String())

	if err := s.publish(ctx, stored); err != nil {
		slog.ErrorContext(ctx, "Failed to publish result message",
			"session_id", id,
			"result_id", stored.ID,
			"error", err)
	}
	return Calculation{Result: stored, Months: months}, nil
}

func (s *QuarterService) publish(ctx context.Context, r core.StoredResult) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No result publisher configured, skipping message")
		return nil
	}
	return s.publisher.PublishResultComputed(ctx, r)
}

// ExportSession returns everything stored for a session.
func (s *QuarterService) ExportSession(ctx context.Context, id int64) (core.SessionExport, error) {
	return s.store.ExportSession(ctx, id)
}

// Report renders the stored session as a workbook.
func (s *QuarterService) Report(ctx context.Context, id int64) (sheets.Workbook, error) {
	exp, err := s.store.ExportSession(ctx, id)
	if err != nil {
		return sheets.Workbook{}, err
	}
	return sheets.BuildReport(exp, s.now())
}

// Export writes the session report with w and returns the document ref.
func (s *QuarterService) Export(ctx context.Context, id int64, w sheets.ReportWriter) (string, error) {
	wb, err := s.Report(ctx, id)
	if err != nil {
		return "", err
	}
	ref, err := w.WriteReport(ctx, wb)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	slog.InfoContext(ctx, "Report exported", "session_id", id, "ref", ref)
	return ref, nil
}

// Import reads a report and replaces all three slots of the session with
// its month sheets. Nothing is saved when the document does not parse or
// the store rejects any slot.
func (s *QuarterService) Import(ctx context.Context, id int64, r sheets.ReportReader, ref string) ([core.SlotCount][]core.LedgerRow, error) {
	var months [core.SlotCount][]core.LedgerRow
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return months, err
	}
	values, err := r.ReadReport(ctx, ref)
	if err != nil {
		return months, fmt.Errorf("read report: %w", err)
	}
	months, err = sheets.ParseWorkbook(values)
	if err != nil {
		return months, err
	}
	if err := s.store.SaveMonths(ctx, id, months); err != nil {
		return months, fmt.Errorf("save imported months: %w", err)
	}
	slog.InfoContext(ctx, "Report imported",
		"session_id", id,
		"ref", ref,
		"rows", len(months[0])+len(months[1])+len(months[2]))
	return months, nil
}

// Template writes an empty quarter listing the default suppliers.
func (s *QuarterService) Template(ctx context.Context, cfg core.QuarterConfig, w sheets.ReportWriter) (string, error) {
	wb, err := sheets.BuildTemplate(cfg, s.defaults, s.now())
	if err != nil {
		return "", err
	}
	return w.WriteReport(ctx, wb)
}

// Backup writes a copy of the store to dest when the store supports it.
func (s *QuarterService) Backup(ctx context.Context, dest string) (string, error) {
	b, ok := s.store.(Backuper)
	if !ok {
		return "", ErrBackupUnsupported
	}
	path, err := b.Backup(ctx, dest)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Database backup written", "path", path)
	return path, nil
}

// Close closes the store.
func (s *QuarterService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close quarter service: %w", err)
	}
	return nil
}
