package storage

import (
	"context"
)

const sessionColumns = `id, name, created_at, modified_at, notes, start_month, is_leap_year, adjustment`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var s Session
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.CreatedAt,
		&s.ModifiedAt,
		&s.Notes,
		&s.StartMonth,
		&s.IsLeapYear,
		&s.Adjustment,
	)
	return s, err
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (name, notes, created_at, modified_at, start_month, is_leap_year, adjustment)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + sessionColumns

type CreateSessionParams struct {
	Name       string
	Notes      string
	CreatedAt  string
	ModifiedAt string
	StartMonth string
	IsLeapYear int64
	Adjustment string
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, createSession,
		arg.Name,
		arg.Notes,
		arg.CreatedAt,
		arg.ModifiedAt,
		arg.StartMonth,
		arg.IsLeapYear,
		arg.Adjustment,
	)
	return scanSession(row)
}

const getSession = `-- name: GetSession :one
SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`

func (q *Queries) GetSession(ctx context.Context, id int64) (Session, error) {
	return scanSession(q.db.QueryRowContext(ctx, getSession, id))
}

const listSessions = `-- name: ListSessions :many
SELECT ` + sessionColumns + ` FROM sessions ORDER BY modified_at DESC, id DESC`

func (q *Queries) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := q.db.QueryContext(ctx, listSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateSessionSettings = `-- name: UpdateSessionSettings :one
UPDATE sessions
SET start_month = ?, is_leap_year = ?, adjustment = ?, modified_at = ?
WHERE id = ?
RETURNING ` + sessionColumns

type UpdateSessionSettingsParams struct {
	StartMonth string
	IsLeapYear int64
	Adjustment string
	ModifiedAt string
	ID         int64
}

func (q *Queries) UpdateSessionSettings(ctx context.Context, arg UpdateSessionSettingsParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, updateSessionSettings,
		arg.StartMonth,
		arg.IsLeapYear,
		arg.Adjustment,
		arg.ModifiedAt,
		arg.ID,
	)
	return scanSession(row)
}

const touchSession = `-- name: TouchSession :execrows
UPDATE sessions SET modified_at = ? WHERE id = ?`

func (q *Queries) TouchSession(ctx context.Context, modifiedAt string, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, touchSession, modifiedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteSession = `-- name: DeleteSession :execrows
DELETE FROM sessions WHERE id = ?`

func (q *Queries) DeleteSession(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteSession, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteMonthRows = `-- name: DeleteMonthRows :exec
DELETE FROM month_rows WHERE session_id = ? AND slot_index = ?`

func (q *Queries) DeleteMonthRows(ctx context.Context, sessionID, slotIndex int64) error {
	_, err := q.db.ExecContext(ctx, deleteMonthRows, sessionID, slotIndex)
	return err
}

const insertMonthRow = `-- name: InsertMonthRow :exec
INSERT INTO month_rows (
    session_id, slot_index, supplier_name, component_a, component_b, component_c, daily_volume, is_placeholder
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

type InsertMonthRowParams struct {
	SessionID     int64
	SlotIndex     int64
	SupplierName  string
	ComponentA    string
	ComponentB    string
	ComponentC    string
	DailyVolume   string
	IsPlaceholder int64
}

func (q *Queries) InsertMonthRow(ctx context.Context, arg InsertMonthRowParams) error {
	_, err := q.db.ExecContext(ctx, insertMonthRow,
		arg.SessionID,
		arg.SlotIndex,
		arg.SupplierName,
		arg.ComponentA,
		arg.ComponentB,
		arg.ComponentC,
		arg.DailyVolume,
		arg.IsPlaceholder,
	)
	return err
}

const listMonthRows = `-- name: ListMonthRows :many
SELECT id, session_id, slot_index, supplier_name, component_a, component_b, component_c, daily_volume, is_placeholder
FROM month_rows
WHERE session_id = ? AND slot_index = ?
ORDER BY id`

func (q *Queries) ListMonthRows(ctx context.Context, sessionID, slotIndex int64) ([]MonthRow, error) {
	rows, err := q.db.QueryContext(ctx, listMonthRows, sessionID, slotIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthRow
	for rows.Next() {
		var i MonthRow
		if err := rows.Scan(
			&i.ID,
			&i.SessionID,
			&i.SlotIndex,
			&i.SupplierName,
			&i.ComponentA,
			&i.ComponentB,
			&i.ComponentC,
			&i.DailyVolume,
			&i.IsPlaceholder,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const resultColumns = `id, session_id, total_volume, pmpv, total_cost, computed_at, adjustment, final_price`

func scanResult(row interface{ Scan(...interface{}) error }) (Result, error) {
	var r Result
	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.TotalVolume,
		&r.Pmpv,
		&r.TotalCost,
		&r.ComputedAt,
		&r.Adjustment,
		&r.FinalPrice,
	)
	return r, err
}

const insertResult = `-- name: InsertResult :one
INSERT INTO results (session_id, total_volume, pmpv, total_cost, computed_at, adjustment, final_price)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + resultColumns

type InsertResultParams struct {
	SessionID   int64
	TotalVolume string
	Pmpv        string
	TotalCost   string
	ComputedAt  string
	Adjustment  string
	FinalPrice  string
}

func (q *Queries) InsertResult(ctx context.Context, arg InsertResultParams) (Result, error) {
	row := q.db.QueryRowContext(ctx, insertResult,
		arg.SessionID,
		arg.TotalVolume,
		arg.Pmpv,
		arg.TotalCost,
		arg.ComputedAt,
		arg.Adjustment,
		arg.FinalPrice,
	)
	return scanResult(row)
}

const latestResult = `-- name: LatestResult :one
SELECT ` + resultColumns + `
FROM results
WHERE session_id = ?
ORDER BY computed_at DESC, id DESC
LIMIT 1`

func (q *Queries) LatestResult(ctx context.Context, sessionID int64) (Result, error) {
	return scanResult(q.db.QueryRowContext(ctx, latestResult, sessionID))
}

const countResults = `-- name: CountResults :one
SELECT COUNT(*) FROM results WHERE session_id = ?`

func (q *Queries) CountResults(ctx context.Context, sessionID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countResults, sessionID).Scan(&n)
	return n, err
}

const vacuumInto = `-- name: VacuumInto :exec
VACUUM INTO ?`

func (q *Queries) VacuumInto(ctx context.Context, dest string) error {
	_, err := q.db.ExecContext(ctx, vacuumInto, dest)
	return err
}
