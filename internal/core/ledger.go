package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Field names an editable column of a LedgerRow.
type Field string

const (
	FieldSupplier    Field = "supplier"
	FieldComponentA  Field = "component_a"
	FieldComponentB  Field = "component_b"
	FieldComponentC  Field = "component_c"
	FieldDailyVolume Field = "daily_volume"
)

type (
	// LedgerRow holds one supplier's cost components and contracted daily
	// volume for one quarter slot.
	LedgerRow struct {
		SupplierName string
		ComponentA   decimal.Decimal // commodity
		ComponentB   decimal.Decimal // transport
		ComponentC   decimal.Decimal // logistics
		DailyVolume  decimal.Decimal
		// Placeholder marks a pre-seeded row that has not received data yet.
		// It is independent of the row's current name.
		Placeholder bool
	}

	// MonthLedger is the ordered row list of one quarter slot. Row order is
	// insertion order and is also the persistence order.
	MonthLedger struct {
		slot     int
		dayCount int
		rows     []*LedgerRow
		marked   map[*LedgerRow]struct{}
	}

	// PendingRemoval is the first half of a two-step row removal. The row
	// stays in the ledger until Commit is called.
	PendingRemoval struct {
		ledger *MonthLedger
		row    *LedgerRow
		done   bool
	}

	// ConflictResolution is the caller's answer when a duplication target
	// already holds a row with the same supplier name.
	ConflictResolution int

	// ConflictResolver decides between overwriting existing with incoming or
	// aborting the duplication.
	ConflictResolver func(existing, incoming *LedgerRow) ConflictResolution
)

const (
	ResolveAbort ConflictResolution = iota
	ResolveOverwrite
)

// OverwriteOnConflict always overwrites the same-name target row.
func OverwriteOnConflict(_, _ *LedgerRow) ConflictResolution { return ResolveOverwrite }

// AbortOnConflict always leaves the target untouched.
func AbortOnConflict(_, _ *LedgerRow) ConflictResolution { return ResolveAbort }

// NewRow returns a row with the given name and zero-valued fields.
func NewRow(name string) *LedgerRow {
	return &LedgerRow{SupplierName: name}
}

// NewPlaceholderRow returns a zero-valued row flagged as placeholder.
func NewPlaceholderRow(name string) *LedgerRow {
	return &LedgerRow{SupplierName: name, Placeholder: true}
}

// UnitPrice is the sum of the three component prices.
func (r LedgerRow) UnitPrice() decimal.Decimal {
	return r.ComponentA.Add(r.ComponentB).Add(r.ComponentC)
}

// MonthlyVolume expands the daily volume over dayCount days.
func (r LedgerRow) MonthlyVolume(dayCount int) decimal.Decimal {
	return r.DailyVolume.Mul(decimal.NewFromInt(int64(dayCount)))
}

// Cost is the unit price applied to the monthly volume.
func (r LedgerRow) Cost(dayCount int) decimal.Decimal {
	return r.UnitPrice().Mul(r.MonthlyVolume(dayCount))
}

// Clone returns a detached copy with identical field values.
func (r *LedgerRow) Clone() *LedgerRow {
	c := *r
	return &c
}

// IsEmpty reports whether the row has no supplier name.
func (r LedgerRow) IsEmpty() bool {
	return strings.TrimSpace(r.SupplierName) == ""
}

// HasData reports whether any numeric field is non-zero.
func (r LedgerRow) HasData() bool {
	return !r.ComponentA.IsZero() || !r.ComponentB.IsZero() || !r.ComponentC.IsZero() || !r.DailyVolume.IsZero()
}

// IsCopyTarget reports whether the row may receive a duplicated row:
// either it has no name or it is still an unfilled placeholder.
func (r LedgerRow) IsCopyTarget() bool {
	return r.IsEmpty() || r.Placeholder
}

// Validate checks the non-negativity of every numeric field.
func (r LedgerRow) Validate() error {
	checks := []struct {
		field Field
		value decimal.Decimal
	}{
		{FieldComponentA, r.ComponentA},
		{FieldComponentB, r.ComponentB},
		{FieldComponentC, r.ComponentC},
		{FieldDailyVolume, r.DailyVolume},
	}
	for _, c := range checks {
		if c.value.IsNegative() {
			return newValidationError(string(c.field), c.value.String(), ErrInvalidAmount)
		}
	}
	return nil
}

// Rename changes the supplier name. The placeholder flag is kept.
func (r *LedgerRow) Rename(name string) {
	r.SupplierName = strings.TrimSpace(name)
}

// SetField applies a text edit to one field. A rejected edit returns a
// ValidationError and leaves the row unchanged. A non-zero numeric edit
// fills the row, clearing its placeholder flag.
func (r *LedgerRow) SetField(f Field, raw string) error {
	if f == FieldSupplier {
		r.Rename(raw)
		return nil
	}
	var dst *decimal.Decimal
	switch f {
	case FieldComponentA:
		dst = &r.ComponentA
	case FieldComponentB:
		dst = &r.ComponentB
	case FieldComponentC:
		dst = &r.ComponentC
	case FieldDailyVolume:
		dst = &r.DailyVolume
	default:
		return newValidationError("field", string(f), ErrUnknownLedgerField)
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return newValidationError(string(f), raw, err)
	}
	*dst = v
	if !v.IsZero() {
		r.Placeholder = false
	}
	return nil
}

func (r *LedgerRow) copyValuesFrom(src *LedgerRow) {
	r.SupplierName = src.SupplierName
	r.ComponentA = src.ComponentA
	r.ComponentB = src.ComponentB
	r.ComponentC = src.ComponentC
	r.DailyVolume = src.DailyVolume
	r.Placeholder = false
}

// NewMonthLedger returns an empty ledger for slot (1-3).
func NewMonthLedger(slot int) *MonthLedger {
	return &MonthLedger{slot: slot, marked: map[*LedgerRow]struct{}{}}
}

// NewSeededLedger returns a ledger pre-filled with one placeholder row per
// default supplier name.
func NewSeededLedger(slot int, defaults []string) *MonthLedger {
	l := NewMonthLedger(slot)
	for _, name := range defaults {
		l.AddPlaceholder(name)
	}
	return l
}

// NewLedgerFromRows builds a ledger holding copies of rows, in order.
func NewLedgerFromRows(slot int, rows []LedgerRow) *MonthLedger {
	l := NewMonthLedger(slot)
	for i := range rows {
		row := rows[i]
		l.rows = append(l.rows, &row)
	}
	return l
}

func (l *MonthLedger) Slot() int     { return l.slot }
func (l *MonthLedger) DayCount() int { return l.dayCount }
func (l *MonthLedger) Len() int      { return len(l.rows) }

// Rows returns the row handles in order. The slice is a copy; the rows are not.
func (l *MonthLedger) Rows() []*LedgerRow {
	out := make([]*LedgerRow, len(l.rows))
	copy(out, l.rows)
	return out
}

// Values returns detached copies of the rows, in order.
func (l *MonthLedger) Values() []LedgerRow {
	out := make([]LedgerRow, 0, len(l.rows))
	for _, r := range l.rows {
		out = append(out, *r)
	}
	return out
}

// AddRow appends a zero-valued row and returns its handle.
func (l *MonthLedger) AddRow(initialName string) *LedgerRow {
	row := NewRow(strings.TrimSpace(initialName))
	l.rows = append(l.rows, row)
	return row
}

// AddPlaceholder appends a zero-valued placeholder row and returns its handle.
func (l *MonthLedger) AddPlaceholder(name string) *LedgerRow {
	row := NewPlaceholderRow(strings.TrimSpace(name))
	l.rows = append(l.rows, row)
	return row
}

// Contains reports whether row is a member of the ledger.
func (l *MonthLedger) Contains(row *LedgerRow) bool {
	return l.indexOf(row) >= 0
}

// Find returns the first row with the given supplier name, or nil.
func (l *MonthLedger) Find(name string) *LedgerRow {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, r := range l.rows {
		if strings.TrimSpace(r.SupplierName) == name {
			return r
		}
	}
	return nil
}

func (l *MonthLedger) indexOf(row *LedgerRow) int {
	for i, r := range l.rows {
		if r == row {
			return i
		}
	}
	return -1
}

// MarkForRemoval starts a removal. The row is kept until the returned
// PendingRemoval is committed, so a confirmation step can sit in between.
func (l *MonthLedger) MarkForRemoval(row *LedgerRow) *PendingRemoval {
	if l.Contains(row) {
		l.marked[row] = struct{}{}
	}
	return &PendingRemoval{ledger: l, row: row}
}

// IsMarked reports whether row has a pending removal.
func (l *MonthLedger) IsMarked(row *LedgerRow) bool {
	_, ok := l.marked[row]
	return ok
}

// Row returns the row awaiting removal.
func (p *PendingRemoval) Row() *LedgerRow { return p.row }

// Commit removes the row. It is a no-op returning false when the row is not
// a member of the ledger or the removal was already settled.
func (p *PendingRemoval) Commit() bool {
	if p.done {
		return false
	}
	p.done = true
	l := p.ledger
	delete(l.marked, p.row)
	i := l.indexOf(p.row)
	if i < 0 {
		return false
	}
	l.rows = append(l.rows[:i], l.rows[i+1:]...)
	return true
}

// Cancel drops the pending removal and keeps the row.
func (p *PendingRemoval) Cancel() {
	if p.done {
		return
	}
	p.done = true
	delete(p.ledger.marked, p.row)
}

// DuplicateRowTo copies row into target and returns the target row that
// received the values.
//
// A same-name row in target is offered to resolve: overwrite copies all five
// fields, abort returns ErrDuplicateAborted and leaves target untouched.
// Without a same-name row the first empty or placeholder row is filled.
// When target has no such row the call fails with ErrNoAvailableSlot; it
// never appends a new row.
func (l *MonthLedger) DuplicateRowTo(row *LedgerRow, target *MonthLedger, resolve ConflictResolver) (*LedgerRow, error) {
	if !l.Contains(row) {
		return nil, ErrRowNotInLedger
	}
	if row.IsEmpty() {
		return nil, newValidationError(string(FieldSupplier), "", ErrEmptySupplierName)
	}
	src := row.Clone()

	if existing := target.Find(src.SupplierName); existing != nil {
		if resolve == nil || resolve(existing, src) != ResolveOverwrite {
			return nil, ErrDuplicateAborted
		}
		existing.copyValuesFrom(src)
		return existing, nil
	}

	for _, r := range target.rows {
		if r.IsCopyTarget() {
			r.copyValuesFrom(src)
			return r, nil
		}
	}
	return nil, ErrNoAvailableSlot
}

// replaceRows swaps the full row list, dropping any pending marks.
func (l *MonthLedger) replaceRows(rows []LedgerRow) {
	fresh := NewLedgerFromRows(l.slot, rows)
	l.rows = fresh.rows
	l.marked = map[*LedgerRow]struct{}{}
}
