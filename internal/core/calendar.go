package core

import (
	"fmt"
	"time"
)

// SlotCount is the number of consecutive months in a billing quarter.
const SlotCount = 3

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Portuguese month names are accepted as input aliases.
var monthAliases = [12]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

type (
	// QuarterConfig selects the three calendar months of a quarter.
	QuarterConfig struct {
		StartMonth string
		IsLeapYear bool
	}

	// SlotMonth is the resolved calendar month of one quarter slot.
	SlotMonth struct {
		Slot     int // 1-3
		Month    time.Month
		DayCount int
	}
)

// MonthNames returns the canonical month names in calendar order.
func MonthNames() []string {
	out := make([]string, len(monthNames))
	copy(out, monthNames[:])
	return out
}

// ParseMonth matches a canonical month name. The match is case-sensitive.
func ParseMonth(name string) (time.Month, error) {
	for i := range monthNames {
		if name == monthNames[i] || name == monthAliases[i] {
			return time.Month(i + 1), nil
		}
	}
	return 0, newValidationError("start_month", name, ErrInvalidMonthName)
}

// DaysIn returns the Gregorian length of m; February has 29 days only in a
// leap year.
func DaysIn(m time.Month, leap bool) int {
	if m == time.February && leap {
		return 29
	}
	return monthDays[m-1]
}

// Validate checks that the start month is a recognized name.
func (c QuarterConfig) Validate() error {
	_, err := ParseMonth(c.StartMonth)
	return err
}

// Resolve derives the calendar month and day count of every quarter slot.
// The result is recomputed from scratch on every call.
func (c QuarterConfig) Resolve() ([SlotCount]SlotMonth, error) {
	var out [SlotCount]SlotMonth
	start, err := ParseMonth(c.StartMonth)
	if err != nil {
		return out, err
	}
	for i := 0; i < SlotCount; i++ {
		m := time.Month((int(start)-1+i)%12 + 1)
		out[i] = SlotMonth{
			Slot:     i + 1,
			Month:    m,
			DayCount: DaysIn(m, c.IsLeapYear),
		}
	}
	return out, nil
}

// DayCounts is a convenience over Resolve returning only the day counts.
func (c QuarterConfig) DayCounts() ([SlotCount]int, error) {
	var out [SlotCount]int
	slots, err := c.Resolve()
	if err != nil {
		return out, err
	}
	for i, s := range slots {
		out[i] = s.DayCount
	}
	return out, nil
}

// String returns the canonical English name of the slot month.
func (s SlotMonth) String() string {
	return fmt.Sprintf("%s (%d days)", s.Month, s.DayCount)
}

// ValidateSlot checks a 1-based quarter slot index.
func ValidateSlot(slot int) error {
	if slot < 1 || slot > SlotCount {
		return newValidationError("slot_index", fmt.Sprint(slot), ErrInvalidSlot)
	}
	return nil
}
