package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pmpv/internal/core"
)

// MemoryRepository keeps sessions in process memory with the same contract
// as SQLiteRepository. Used by DATA_BACKEND=memory and in tests.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	nextRes  int64
	sessions map[int64]*memSession
	now      func() time.Time
}

type memSession struct {
	session core.Session
	months  [core.SlotCount][]core.LedgerRow
	results []core.StoredResult
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[int64]*memSession),
		now:      time.Now,
	}
}

func (m *MemoryRepository) Close() error { return nil }

func (m *MemoryRepository) CreateSession(_ context.Context, s core.Session, months [core.SlotCount][]core.LedgerRow) (core.Session, error) {
	if s.Config.StartMonth == "" {
		s.Config = core.DefaultQuarterConfig()
	}
	if err := s.Validate(); err != nil {
		return core.Session{}, err
	}
	if err := validateMonths(months); err != nil {
		return core.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := m.now().UTC()
	s.ID = m.nextID
	s.CreatedAt = now
	s.ModifiedAt = now
	m.sessions[s.ID] = &memSession{session: s, months: copyMonths(months)}
	return s, nil
}

func (m *MemoryRepository) get(id int64) (*memSession, error) {
	ms, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %d: %w", id, core.ErrSessionNotFound)
	}
	return ms, nil
}

func (m *MemoryRepository) GetSession(_ context.Context, id int64) (core.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, err := m.get(id)
	if err != nil {
		return core.Session{}, err
	}
	return ms.session, nil
}

func (m *MemoryRepository) UpdateSettings(_ context.Context, id int64, cfg core.QuarterConfig, adjustment decimal.Decimal) (core.Session, error) {
	if err := cfg.Validate(); err != nil {
		return core.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.get(id)
	if err != nil {
		return core.Session{}, err
	}
	ms.session.Config = cfg
	ms.session.Adjustment = adjustment
	ms.session.ModifiedAt = m.now().UTC()
	return ms.session, nil
}

func (m *MemoryRepository) SaveMonth(_ context.Context, sessionID int64, slot int, rows []core.LedgerRow) error {
	if err := validateMonth(slot, rows); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return err
	}
	ms.months[slot-1] = append([]core.LedgerRow(nil), rows...)
	ms.session.ModifiedAt = m.now().UTC()
	return nil
}

// SaveMonths replaces all three slots under one lock.
func (m *MemoryRepository) SaveMonths(_ context.Context, sessionID int64, months [core.SlotCount][]core.LedgerRow) error {
	if err := validateMonths(months); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return err
	}
	ms.months = copyMonths(months)
	ms.session.ModifiedAt = m.now().UTC()
	return nil
}

func (m *MemoryRepository) SaveQuarter(_ context.Context, sessionID int64, cfg core.QuarterConfig, adjustment decimal.Decimal, months [core.SlotCount][]core.LedgerRow) (core.Session, error) {
	if err := cfg.Validate(); err != nil {
		return core.Session{}, err
	}
	if err := validateMonths(months); err != nil {
		return core.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return core.Session{}, err
	}
	ms.session.Config = cfg
	ms.session.Adjustment = adjustment
	ms.session.ModifiedAt = m.now().UTC()
	ms.months = copyMonths(months)
	return ms.session, nil
}

func copyMonths(months [core.SlotCount][]core.LedgerRow) [core.SlotCount][]core.LedgerRow {
	var out [core.SlotCount][]core.LedgerRow
	for i, rows := range months {
		out[i] = append([]core.LedgerRow(nil), rows...)
	}
	return out
}

func (m *MemoryRepository) LoadMonth(_ context.Context, sessionID int64, slot int) ([]core.LedgerRow, error) {
	if err := core.ValidateSlot(slot); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return append([]core.LedgerRow{}, ms.months[slot-1]...), nil
}

func (m *MemoryRepository) SaveResult(_ context.Context, sessionID int64, res core.QuarterlyResult) (core.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return core.StoredResult{}, err
	}
	m.nextRes++
	stored := core.StoredResult{
		ID:              m.nextRes,
		SessionID:       sessionID,
		ComputedAt:      m.now().UTC(),
		QuarterlyResult: res,
	}
	ms.results = append(ms.results, stored)
	return stored, nil
}

func (m *MemoryRepository) LatestResult(_ context.Context, sessionID int64) (*core.StoredResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, err := m.get(sessionID)
	if err != nil {
		return nil, err
	}
	return ms.latest(), nil
}

func (ms *memSession) latest() *core.StoredResult {
	var best *core.StoredResult
	for i := range ms.results {
		r := ms.results[i]
		if best == nil || !r.ComputedAt.Before(best.ComputedAt) {
			best = &r
		}
	}
	return best
}

func (m *MemoryRepository) ListSessions(_ context.Context) ([]core.SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.SessionSummary, 0, len(m.sessions))
	for _, ms := range m.sessions {
		out = append(out, core.SessionSummary{Session: ms.session, Latest: ms.latest()})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModifiedAt.Equal(out[j].ModifiedAt) {
			return out[i].ModifiedAt.After(out[j].ModifiedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryRepository) DeleteSession(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.get(id); err != nil {
		return err
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryRepository) ExportSession(_ context.Context, id int64) (core.SessionExport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ms, err := m.get(id)
	if err != nil {
		return core.SessionExport{}, err
	}
	exp := core.SessionExport{Session: ms.session, Latest: ms.latest()}
	for i, rows := range ms.months {
		exp.Months[i] = append([]core.LedgerRow{}, rows...)
	}
	return exp, nil
}
