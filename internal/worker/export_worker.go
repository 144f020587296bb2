package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"pmpv/internal/amqp"
	"pmpv/internal/core"
	"pmpv/internal/services"
	"pmpv/internal/sheets"
)

// Target is one report destination of the worker.
type Target struct {
	Name   string
	Writer sheets.ReportWriter
}

// ExportWorker writes a report for every computed result it is told about.
type ExportWorker struct {
	service   *services.QuarterService
	targets   []Target
	exportDir string
}

// NewExportWorker builds a worker. exportDir is where the xlsx target writes
// and is used to detect sessions that were never exported.
func NewExportWorker(service *services.QuarterService, exportDir string, targets ...Target) *ExportWorker {
	return &ExportWorker{
		service:   service,
		targets:   targets,
		exportDir: exportDir,
	}
}

// HandleResultMessage exports the session a result message refers to.
func (w *ExportWorker) HandleResultMessage(ctx context.Context, msg *amqp.ResultComputedMessage) error {
	slog.InfoContext(ctx, "Processing result message",
		"message_id", msg.ID,
		"session_id", msg.SessionID,
		"result_id", msg.ResultID,
		"pmpv", msg.PMPV.String())

	return w.exportSession(ctx, msg.SessionID)
}

// exportSession writes the report to every target. Every target is tried;
// the failures are joined.
func (w *ExportWorker) exportSession(ctx context.Context, id int64) error {
	if len(w.targets) == 0 {
		slog.WarnContext(ctx, "No export targets configured, skipping", "session_id", id)
		return nil
	}
	wb, err := w.service.Report(ctx, id)
	if err != nil {
		return fmt.Errorf("build report for session %d: %w", id, err)
	}

	var errs []error
	for _, t := range w.targets {
		ref, err := t.Writer.WriteReport(ctx, wb)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export report",
				"session_id", id,
				"target", t.Name,
				"error", err)
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		slog.InfoContext(ctx, "Successfully exported report",
			"session_id", id,
			"target", t.Name,
			"ref", ref)
	}
	return errors.Join(errs...)
}

// StartupExportCheck exports sessions that have a result but no report
// file in the export directory. This recovers results whose messages were
// lost while the worker was down.
func (w *ExportWorker) StartupExportCheck(ctx context.Context) error {
	sums, err := w.service.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions for startup check: %w", err)
	}

	pending := 0
	errorCount := 0
	for _, s := range sums {
		if s.Latest == nil {
			continue
		}
		exported, err := w.hasReport(s.ID)
		if err != nil {
			return err
		}
		if exported {
			continue
		}
		pending++
		if err := w.exportSession(ctx, s.ID); err != nil {
			if core.IsNotFound(err) {
				continue
			}
			errorCount++
		}
	}

	if pending == 0 {
		slog.InfoContext(ctx, "No unexported results found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup export completed",
		"total", pending,
		"errors", errorCount)
	return nil
}

func (w *ExportWorker) hasReport(sessionID int64) (bool, error) {
	if w.exportDir == "" {
		return true, nil
	}
	matches, err := filepath.Glob(filepath.Join(w.exportDir, fmt.Sprintf("session_%d_*.xlsx", sessionID)))
	if err != nil {
		return false, fmt.Errorf("scan export dir: %w", err)
	}
	return len(matches) > 0, nil
}
