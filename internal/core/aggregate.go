package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	// QuarterlyResult is the outcome of one quarter aggregation.
	QuarterlyResult struct {
		TotalVolume decimal.Decimal
		TotalCost   decimal.Decimal
		PMPV        decimal.Decimal
		Adjustment  decimal.Decimal
		FinalPrice  decimal.Decimal
	}

	// MonthSubtotal is the contribution of one quarter slot.
	MonthSubtotal struct {
		Slot     int
		Month    time.Month
		DayCount int
		Rows     int // rows with positive daily volume
		Volume   decimal.Decimal
		Cost     decimal.Decimal
		PMPV     decimal.Decimal // zero when Volume is zero
	}
)

// ComputeQuarter aggregates the three ledgers into a QuarterlyResult.
//
// Day counts are resolved from cfg on every call; the ledgers' own day counts
// are not consulted. Rows whose daily volume is not positive are skipped
// entirely. If no row across the quarter has positive volume the call fails
// with ErrInsufficientData. A nil ledger counts as empty.
func ComputeQuarter(cfg QuarterConfig, ledgers [SlotCount]*MonthLedger, adjustment decimal.Decimal) (QuarterlyResult, error) {
	var rows [SlotCount][]LedgerRow
	for i, l := range ledgers {
		if l != nil {
			rows[i] = l.Values()
		}
	}
	return ComputeFromRows(cfg, rows, adjustment)
}

// ComputeFromRows is ComputeQuarter over plain row values.
func ComputeFromRows(cfg QuarterConfig, rows [SlotCount][]LedgerRow, adjustment decimal.Decimal) (QuarterlyResult, error) {
	months, err := MonthBreakdown(cfg, rows)
	if err != nil {
		return QuarterlyResult{}, err
	}
	totalVolume, totalCost := decimal.Zero, decimal.Zero
	for _, m := range months {
		totalVolume = totalVolume.Add(m.Volume)
		totalCost = totalCost.Add(m.Cost)
	}
	if !totalVolume.IsPositive() {
		return QuarterlyResult{}, ErrInsufficientData
	}
	pmpv := totalCost.Div(totalVolume)
	return QuarterlyResult{
		TotalVolume: totalVolume,
		TotalCost:   totalCost,
		PMPV:        pmpv,
		Adjustment:  adjustment,
		FinalPrice:  pmpv.Add(adjustment),
	}, nil
}

// MonthBreakdown computes per-slot volume, cost and PMPV directly from row
// data. It never fails on empty months.
func MonthBreakdown(cfg QuarterConfig, rows [SlotCount][]LedgerRow) ([SlotCount]MonthSubtotal, error) {
	var out [SlotCount]MonthSubtotal
	slots, err := cfg.Resolve()
	if err != nil {
		return out, err
	}
	for i, slot := range slots {
		sub := MonthSubtotal{
			Slot:     slot.Slot,
			Month:    slot.Month,
			DayCount: slot.DayCount,
			Volume:   decimal.Zero,
			Cost:     decimal.Zero,
			PMPV:     decimal.Zero,
		}
		for _, r := range rows[i] {
			if !r.DailyVolume.IsPositive() {
				continue
			}
			sub.Rows++
			sub.Volume = sub.Volume.Add(r.MonthlyVolume(slot.DayCount))
			sub.Cost = sub.Cost.Add(r.Cost(slot.DayCount))
		}
		if sub.Volume.IsPositive() {
			sub.PMPV = sub.Cost.Div(sub.Volume)
		}
		out[i] = sub
	}
	return out, nil
}
