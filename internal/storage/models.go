package storage

// Row models mirror the table layout. Decimals are stored as TEXT to keep
// exact values; timestamps are fixed-width UTC strings so they sort lexically.

type Session struct {
	ID         int64
	Name       string
	CreatedAt  string
	ModifiedAt string
	Notes      string
	StartMonth string
	IsLeapYear int64
	Adjustment string
}

type MonthRow struct {
	ID            int64
	SessionID     int64
	SlotIndex     int64
	SupplierName  string
	ComponentA    string
	ComponentB    string
	ComponentC    string
	DailyVolume   string
	IsPlaceholder int64
}

type Result struct {
	ID          int64
	SessionID   int64
	TotalVolume string
	Pmpv        string
	TotalCost   string
	ComputedAt  string
	Adjustment  string
	FinalPrice  string
}
