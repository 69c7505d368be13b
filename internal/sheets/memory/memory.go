package memory

import (
	"context"
	"sync"

	"gastos/internal/sheets"
)

// Ensure interface conformance
var _ sheets.ReportWriter = (*Store)(nil)

// Store keeps the last report written per user. It backs the worker when no
// spreadsheet is configured.
type Store struct {
	mu      sync.Mutex
	reports map[string]sheets.Report
	writes  int
}

func New() *Store {
	return &Store{reports: map[string]sheets.Report{}}
}

func (s *Store) WriteReport(_ context.Context, r sheets.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.UserID] = r
	s.writes++
	return nil
}

// Report returns the last report written for userID.
func (s *Store) Report(userID string) (sheets.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[userID]
	return r, ok
}

// Writes counts every WriteReport call.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
