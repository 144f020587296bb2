package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"pmpv/internal/core"
	"pmpv/internal/log"
	"pmpv/internal/sheets"
	"pmpv/internal/sheets/memory"
	"pmpv/internal/sheets/xlsx"
)

type rowsDTO struct {
	Slot int      `json:"slot"`
	Rows []rowDTO `json:"rows"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.uptime).String(),
	}).Write(w)
}

// handleReady checks that the store answers a listing.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}
	if _, err := s.svc.ListSessions(ctx); err != nil {
		checks["store"] = fmt.Sprintf("failed: %v", err)
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	checks["report_cache"] = map[string]any{"entries": s.reports.Size(), "status": "ok"}
	checks["rate_limiter"] = map[string]any{"active_clients": s.rateLimiter.activeClients(), "status": "ok"}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	stats := s.reports.Stats()
	counter := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n\n", name, help, name, name, v)
	}
	gauge := func(name, help string, v int64) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n\n", name, help, name, name, v)
	}
	counter("pmpv_calculations_total", "Quarter calculations saved", atomic.LoadInt64(&s.metrics.calculations))
	counter("pmpv_exports_total", "Reports downloaded", atomic.LoadInt64(&s.metrics.exports))
	counter("pmpv_imports_total", "Reports imported", atomic.LoadInt64(&s.metrics.imports))
	counter("report_cache_hits_total", "Report cache hits", stats.Hits)
	counter("report_cache_misses_total", "Report cache misses", stats.Misses)
	gauge("report_cache_entries", "Cached reports", int64(stats.Size))
	counter("rate_limit_hits_total", "Requests rejected by the rate limiter", atomic.LoadInt64(&s.security.rateLimitHits))
	counter("oversized_bodies_total", "Requests rejected for body size", atomic.LoadInt64(&s.security.oversizedBodies))
	counter("suspicious_requests_total", "Requests flagged as suspicious", atomic.LoadInt64(&s.security.suspiciousRequests))
	gauge("rate_limiter_active_clients", "Clients tracked by the rate limiter", int64(s.rateLimiter.activeClients()))
	gauge("uptime_seconds", "Seconds since start", int64(time.Since(s.metrics.uptime).Seconds()))
}

// fail writes the error response and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		s.reqLogger.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	case http.StatusRequestEntityTooLarge:
		atomic.AddInt64(&s.security.oversizedBodies, 1)
	}
	FromError(err).Write(w)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	cfg, err := quarterQuery(r, s.defaultCfg)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	slots, err := cfg.Resolve()
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(map[string]any{
		"start_month":  cfg.StartMonth,
		"is_leap_year": cfg.IsLeapYear,
		"slots":        toSlotDTOs(slots),
		"months":       core.MonthNames(),
	}).Write(w)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	out := make([]sessionDTO, 0, len(list))
	for _, sum := range list {
		out = append(out, toSessionDTO(sum.Session, sum.Latest))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	adj, err := req.adjustment()
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	sess, err := s.svc.CreateSession(r.Context(), sanitizeInput(req.Name), sanitizeInput(req.Notes), req.config(s.defaultCfg), adj)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/sessions/"+strconv.FormatInt(sess.ID, 10)).
		JSON(toSessionDTO(sess, nil)).
		Write(w)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	exp, err := s.svc.ExportSession(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	dto := toSessionDTO(exp.Session, exp.Latest)
	rows := make([]int, len(exp.Months))
	for i, m := range exp.Months {
		rows[i] = len(m)
	}
	NewResponse().JSON(struct {
		sessionDTO
		StoredRows []int `json:"stored_rows"`
	}{dto, rows}).Write(w)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	if err := s.svc.DeleteSession(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.invalidateReports(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req settingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	adj, err := req.adjustment()
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	sess, err := s.svc.UpdateSettings(r.Context(), id, req.config(s.defaultCfg), adj)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().JSON(toSessionDTO(sess, nil)).Write(w)
}

// sessionSlot reads the {id} and {slot} path values.
func sessionSlot(r *http.Request) (int64, int, error) {
	id, err := pathInt(r, "id")
	if err != nil {
		return 0, 0, err
	}
	slot, err := pathSlot(r)
	return id, slot, err
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	sm, rows, err := s.svc.Month(r.Context(), id, slot)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewResponse().JSON(monthDTO{slotDTO: toSlotDTO(sm), Rows: toRowDTOs(rows)}).Write(w)
}

func (s *Server) handleSaveMonth(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req saveMonthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	rows := make([]core.LedgerRow, 0, len(req.Rows))
	for i, rr := range req.Rows {
		row, err := rr.toRow()
		if err != nil {
			s.fail(w, r, log.OpUpdate, fmt.Errorf("row %d: %w", i+1, err))
			return
		}
		rows = append(rows, row)
	}
	if err := s.svc.SaveMonth(r.Context(), id, slot, rows); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().JSON(rowsDTO{Slot: slot, Rows: toRowDTOs(rows)}).Write(w)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	var req addRowRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	rows, err := s.svc.AddRow(r.Context(), id, slot, sanitizeInput(req.SupplierName))
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().Status(http.StatusCreated).JSON(rowsDTO{Slot: slot, Rows: toRowDTOs(rows)}).Write(w)
}

type setFieldRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (s *Server) handleSetField(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	row, err := pathInt(r, "row")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req setFieldRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	rows, err := s.svc.SetField(r.Context(), id, slot, int(row), core.Field(req.Field), sanitizeInput(req.Value))
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().JSON(rowsDTO{Slot: slot, Rows: toRowDTOs(rows)}).Write(w)
}

func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	row, err := pathInt(r, "row")
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	rows, err := s.svc.RemoveRow(r.Context(), id, slot, int(row))
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().JSON(rowsDTO{Slot: slot, Rows: toRowDTOs(rows)}).Write(w)
}

func (s *Server) handleDuplicateRow(w http.ResponseWriter, r *http.Request) {
	id, slot, err := sessionSlot(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	var req duplicateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	rows, err := s.svc.DuplicateRow(r.Context(), id, slot, req.Row, req.ToSlot, req.Overwrite)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.invalidateReports(id)
	NewResponse().JSON(rowsDTO{Slot: req.ToSlot, Rows: toRowDTOs(rows)}).Write(w)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpCalculate, err)
		return
	}
	calc, err := s.svc.Calculate(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpCalculate, err)
		return
	}
	atomic.AddInt64(&s.metrics.calculations, 1)
	s.reqLogger.LogCalculation(r.Context(), id, calc.Result)
	NewResponse().
		Status(http.StatusCreated).
		JSON(toResultDTO(calc.Result, calc.Months[:])).
		Write(w)
}

// reportKey changes whenever the session or its latest result changes.
func reportKey(exp core.SessionExport) string {
	var latest int64
	if exp.Latest != nil {
		latest = exp.Latest.ID
	}
	return fmt.Sprintf("%s%d:%d", reportPrefix(exp.Session.ID), exp.Session.ModifiedAt.UnixNano(), latest)
}

func reportPrefix(id int64) string {
	return "report:" + strconv.FormatInt(id, 10) + ":"
}

func (s *Server) invalidateReports(id int64) {
	s.reports.DeletePrefix(reportPrefix(id))
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	exp, err := s.svc.ExportSession(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	key := reportKey(exp)
	data, hit := s.reports.Get(key)
	if !hit {
		wb, err := sheets.BuildReport(exp, time.Now())
		if err != nil {
			s.fail(w, r, log.OpExport, err)
			return
		}
		var buf bytes.Buffer
		if err := xlsx.Encode(&buf, wb); err != nil {
			s.fail(w, r, log.OpExport, err)
			return
		}
		data = buf.Bytes()
		s.invalidateReports(id)
		s.reports.Set(key, data)
	}
	atomic.AddInt64(&s.metrics.exports, 1)

	cacheState := "MISS"
	if hit {
		cacheState = "HIT"
	}
	NewResponse().
		Header("X-Cache", cacheState).
		Attachment(fmt.Sprintf("session_%d.xlsx", id)).
		Bytes(xlsx.ContentType, data).
		Write(w)
}

// uploadRef names the in-memory document an upload is parked under.
const uploadRef = "upload"

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	data, err := readUpload(w, r)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	values, err := xlsx.Decode(bytes.NewReader(data))
	if err != nil {
		s.fail(w, r, log.OpImport, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	docs := memory.New()
	docs.Put(uploadRef, values)
	months, err := s.svc.Import(r.Context(), id, docs, uploadRef)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	s.invalidateReports(id)
	atomic.AddInt64(&s.metrics.imports, 1)

	out := make([]rowsDTO, 0, len(months))
	for i, rows := range months {
		out = append(out, rowsDTO{Slot: i + 1, Rows: toRowDTOs(rows)})
	}
	NewResponse().JSON(map[string]any{"months": out}).Write(w)
}

// bufferWriter renders a workbook into memory instead of a file.
type bufferWriter struct {
	buf bytes.Buffer
}

func (b *bufferWriter) WriteReport(_ context.Context, wb sheets.Workbook) (string, error) {
	if err := xlsx.Encode(&b.buf, wb); err != nil {
		return "", err
	}
	return wb.Name, nil
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	cfg, err := quarterQuery(r, s.defaultCfg)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	var bw bufferWriter
	name, err := s.svc.Template(r.Context(), cfg, &bw)
	if err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}
	NewResponse().
		Attachment(name+".xlsx").
		Bytes(xlsx.ContentType, bw.buf.Bytes()).
		Write(w)
}
