package http

import (
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
)

// JSON shapes of the API. Decimals are encoded as strings; result figures
// are rounded for presentation.
type (
	slotDTO struct {
		Slot     int    `json:"slot"`
		Month    string `json:"month"`
		DayCount int    `json:"day_count"`
	}

	sessionDTO struct {
		ID         int64           `json:"id"`
		Name       string          `json:"name"`
		Notes      string          `json:"notes,omitempty"`
		CreatedAt  time.Time       `json:"created_at"`
		ModifiedAt time.Time       `json:"modified_at"`
		StartMonth string          `json:"start_month"`
		IsLeapYear bool            `json:"is_leap_year"`
		Adjustment decimal.Decimal `json:"adjustment"`
		Slots      []slotDTO       `json:"slots"`
		Latest     *resultDTO      `json:"latest_result,omitempty"`
	}

	rowDTO struct {
		SupplierName string          `json:"supplier_name"`
		ComponentA   decimal.Decimal `json:"component_a"`
		ComponentB   decimal.Decimal `json:"component_b"`
		ComponentC   decimal.Decimal `json:"component_c"`
		UnitPrice    decimal.Decimal `json:"unit_price"`
		DailyVolume  decimal.Decimal `json:"daily_volume"`
		Placeholder  bool            `json:"placeholder,omitempty"`
	}

	monthDTO struct {
		slotDTO
		Rows []rowDTO `json:"rows"`
	}

	subtotalDTO struct {
		slotDTO
		Rows   int             `json:"rows"`
		Volume decimal.Decimal `json:"volume"`
		Cost   decimal.Decimal `json:"cost"`
		PMPV   decimal.Decimal `json:"pmpv"`
	}

	resultDTO struct {
		ID          int64           `json:"id"`
		ComputedAt  time.Time       `json:"computed_at"`
		TotalVolume decimal.Decimal `json:"total_volume"`
		TotalCost   decimal.Decimal `json:"total_cost"`
		PMPV        decimal.Decimal `json:"pmpv"`
		Adjustment  decimal.Decimal `json:"adjustment"`
		FinalPrice  decimal.Decimal `json:"final_price"`
		Months      []subtotalDTO   `json:"months,omitempty"`
	}
)

// Request bodies. Amounts are text so "10,50" is accepted like in the CLI.
type (
	settingsRequest struct {
		StartMonth string `json:"start_month"`
		IsLeapYear bool   `json:"is_leap_year"`
		Adjustment string `json:"adjustment"`
	}

	createSessionRequest struct {
		Name  string `json:"name"`
		Notes string `json:"notes"`
		settingsRequest
	}

	rowRequest struct {
		SupplierName string `json:"supplier_name"`
		ComponentA   string `json:"component_a"`
		ComponentB   string `json:"component_b"`
		ComponentC   string `json:"component_c"`
		DailyVolume  string `json:"daily_volume"`
	}

	saveMonthRequest struct {
		Rows []rowRequest `json:"rows"`
	}

	addRowRequest struct {
		SupplierName string `json:"supplier_name"`
	}

	duplicateRequest struct {
		Row       int  `json:"row"`
		ToSlot    int  `json:"to_slot"`
		Overwrite bool `json:"overwrite"`
	}
)

func toSlotDTOs(slots [core.SlotCount]core.SlotMonth) []slotDTO {
	out := make([]slotDTO, 0, len(slots))
	for _, s := range slots {
		out = append(out, toSlotDTO(s))
	}
	return out
}

func toSlotDTO(s core.SlotMonth) slotDTO {
	return slotDTO{Slot: s.Slot, Month: s.Month.String(), DayCount: s.DayCount}
}

func toSessionDTO(s core.Session, latest *core.StoredResult) sessionDTO {
	dto := sessionDTO{
		ID:         s.ID,
		Name:       s.Name,
		Notes:      s.Notes,
		CreatedAt:  s.CreatedAt,
		ModifiedAt: s.ModifiedAt,
		StartMonth: s.Config.StartMonth,
		IsLeapYear: s.Config.IsLeapYear,
		Adjustment: s.Adjustment,
	}
	if slots, err := s.Config.Resolve(); err == nil {
		dto.Slots = toSlotDTOs(slots)
	}
	if latest != nil {
		r := toResultDTO(*latest, nil)
		dto.Latest = &r
	}
	return dto
}

func toRowDTOs(rows []core.LedgerRow) []rowDTO {
	out := make([]rowDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowDTO{
			SupplierName: r.SupplierName,
			ComponentA:   r.ComponentA,
			ComponentB:   r.ComponentB,
			ComponentC:   r.ComponentC,
			UnitPrice:    r.UnitPrice(),
			DailyVolume:  r.DailyVolume,
			Placeholder:  r.Placeholder,
		})
	}
	return out
}

func toResultDTO(r core.StoredResult, months []core.MonthSubtotal) resultDTO {
	dto := resultDTO{
		ID:          r.ID,
		ComputedAt:  r.ComputedAt,
		TotalVolume: core.RoundMoney(r.TotalVolume),
		TotalCost:   core.RoundMoney(r.TotalCost),
		PMPV:        core.RoundPrice(r.PMPV),
		Adjustment:  r.Adjustment,
		FinalPrice:  core.RoundPrice(r.FinalPrice),
	}
	for _, m := range months {
		dto.Months = append(dto.Months, subtotalDTO{
			slotDTO: slotDTO{Slot: m.Slot, Month: m.Month.String(), DayCount: m.DayCount},
			Rows:    m.Rows,
			Volume:  core.RoundMoney(m.Volume),
			Cost:    core.RoundMoney(m.Cost),
			PMPV:    core.RoundPrice(m.PMPV),
		})
	}
	return dto
}

// config builds a quarter configuration, defaulting an empty start month.
func (r settingsRequest) config(def core.QuarterConfig) core.QuarterConfig {
	cfg := core.QuarterConfig{StartMonth: r.StartMonth, IsLeapYear: r.IsLeapYear}
	if cfg.StartMonth == "" {
		cfg.StartMonth = def.StartMonth
	}
	return cfg
}

func (r settingsRequest) adjustment() (decimal.Decimal, error) {
	return parseAdjustment(r.Adjustment)
}

// toRow parses the text fields of a row request.
func (r rowRequest) toRow() (core.LedgerRow, error) {
	row := core.LedgerRow{SupplierName: sanitizeInput(r.SupplierName)}
	fields := []struct {
		f   core.Field
		raw string
	}{
		{core.FieldComponentA, r.ComponentA},
		{core.FieldComponentB, r.ComponentB},
		{core.FieldComponentC, r.ComponentC},
		{core.FieldDailyVolume, r.DailyVolume},
	}
	for _, fr := range fields {
		if err := row.SetField(fr.f, fr.raw); err != nil {
			return core.LedgerRow{}, err
		}
	}
	return row, nil
}
