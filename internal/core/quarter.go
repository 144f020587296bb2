package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Quarter is the editable workspace of one session: its configuration,
// adjustment term and the three month ledgers.
type Quarter struct {
	config     QuarterConfig
	slots      [SlotCount]SlotMonth
	ledgers    [SlotCount]*MonthLedger
	Adjustment decimal.Decimal
}

// NewQuarter returns a quarter whose ledgers are seeded with placeholder rows
// named after defaults.
func NewQuarter(cfg QuarterConfig, defaults []string) (*Quarter, error) {
	q := &Quarter{Adjustment: decimal.Zero}
	for i := range q.ledgers {
		q.ledgers[i] = NewSeededLedger(i+1, defaults)
	}
	if err := q.SetConfig(cfg); err != nil {
		return nil, err
	}
	return q, nil
}

// Config returns the current quarter configuration.
func (q *Quarter) Config() QuarterConfig { return q.config }

// Slots returns the resolved month of every slot.
func (q *Quarter) Slots() [SlotCount]SlotMonth { return q.slots }

// SetConfig changes the start month or leap flag and overwrites the day
// count of all three ledgers. On error nothing changes.
func (q *Quarter) SetConfig(cfg QuarterConfig) error {
	slots, err := cfg.Resolve()
	if err != nil {
		return err
	}
	q.config = cfg
	q.slots = slots
	for i, l := range q.ledgers {
		l.dayCount = slots[i].DayCount
	}
	return nil
}

// Ledger returns the ledger of a 1-based slot.
func (q *Quarter) Ledger(slot int) (*MonthLedger, error) {
	if err := ValidateSlot(slot); err != nil {
		return nil, err
	}
	return q.ledgers[slot-1], nil
}

// Ledgers returns the three ledgers in slot order.
func (q *Quarter) Ledgers() [SlotCount]*MonthLedger { return q.ledgers }

// ReplaceRows swaps the full row list of a slot.
func (q *Quarter) ReplaceRows(slot int, rows []LedgerRow) error {
	l, err := q.Ledger(slot)
	if err != nil {
		return err
	}
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	l.replaceRows(rows)
	return nil
}

// Compute runs ComputeQuarter over the workspace.
func (q *Quarter) Compute() (QuarterlyResult, error) {
	return ComputeQuarter(q.config, q.ledgers, q.Adjustment)
}

// Values returns detached copies of every slot's rows.
func (q *Quarter) Values() [SlotCount][]LedgerRow {
	var out [SlotCount][]LedgerRow
	for i, l := range q.ledgers {
		out[i] = l.Values()
	}
	return out
}
