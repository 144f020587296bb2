package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Session is the unit of persistence and of export.
	Session struct {
		ID         int64
		Name       string
		Notes      string
		CreatedAt  time.Time
		ModifiedAt time.Time
		Config     QuarterConfig
		Adjustment decimal.Decimal
	}

	// StoredResult is a persisted QuarterlyResult. A session keeps every
	// result it ever saved; the latest by ComputedAt is "the" result.
	StoredResult struct {
		ID         int64
		SessionID  int64
		ComputedAt time.Time
		QuarterlyResult
	}

	// SessionSummary is one entry of a session listing.
	SessionSummary struct {
		Session
		Latest *StoredResult
	}

	// SessionExport is everything stored for a session.
	SessionExport struct {
		Session Session
		Months  [SlotCount][]LedgerRow
		Latest  *StoredResult
	}
)

// DefaultQuarterConfig is used for sessions created without settings.
func DefaultQuarterConfig() QuarterConfig {
	return QuarterConfig{StartMonth: monthNames[0]}
}

// Validate checks the session name and quarter settings.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return newValidationError("name", "", ErrEmptySessionName)
	}
	return s.Config.Validate()
}

// Quarter rebuilds the editable workspace of an exported session.
func (e SessionExport) Quarter() (*Quarter, error) {
	q, err := NewQuarter(e.Session.Config, nil)
	if err != nil {
		return nil, err
	}
	q.Adjustment = e.Session.Adjustment
	for i, rows := range e.Months {
		if err := q.ReplaceRows(i+1, rows); err != nil {
			return nil, err
		}
	}
	return q, nil
}
