// Package memory keeps report documents in process memory. It backs
// DATA_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"pmpv/internal/core"
	ports "pmpv/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	docs map[string]ports.Values
	seq  int
}

var (
	_ ports.ReportWriter = (*Store)(nil)
	_ ports.ReportReader = (*Store)(nil)
)

func New() *Store {
	return &Store{docs: make(map[string]ports.Values)}
}

// WriteReport stores the rendered cell text and returns a synthetic ref.
func (s *Store) WriteReport(_ context.Context, wb ports.Workbook) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	ref := fmt.Sprintf("mem:%d", s.seq)
	s.docs[ref] = ports.ToValues(wb)
	return ref, nil
}

func (s *Store) ReadReport(_ context.Context, ref string) (ports.Values, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.docs[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, core.ErrDocumentNotFound)
	}
	return v, nil
}

// Put registers a document under ref, as if read from elsewhere.
func (s *Store) Put(ref string, v ports.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[ref] = v
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
