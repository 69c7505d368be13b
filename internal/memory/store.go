// Package memory holds in-process stores used for local development and for
// state that has no upstream home.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gastos/internal/backend"
	"gastos/internal/core"
)

// SeedFile is the name of the optional seed read by NewFromDir.
const SeedFile = "transactions.json"

// Ensure interface conformance
var (
	_ backend.Backend          = (*Store)(nil)
	_ backend.PreferencesStore = (*Preferences)(nil)
)

// Preferences keeps dashboard preferences per user.
type Preferences struct {
	mu    sync.Mutex
	prefs map[string]core.Preferences
}

func NewPreferences() *Preferences {
	return &Preferences{prefs: map[string]core.Preferences{}}
}

// GetPreferences returns the stored preferences, or the defaults for a user
// that never saved any.
func (p *Preferences) GetPreferences(_ context.Context, userID string) (core.Preferences, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Preferences{}, core.ErrInvalidUserID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if stored, ok := p.prefs[userID]; ok {
		return stored.Normalized(), nil
	}
	return core.DefaultPreferences(), nil
}

func (p *Preferences) SavePreferences(_ context.Context, userID string, prefs core.Preferences) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrInvalidUserID
	}
	prefs = prefs.Normalized()
	if err := prefs.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prefs[userID] = prefs
	return nil
}

// Store is a complete in-memory backend.
type Store struct {
	*Preferences

	mu    sync.Mutex
	items []core.Transaction
}

// New returns a store holding txs. Dates are resolved in loc.
func New(txs []core.Transaction, loc *time.Location) *Store {
	return &Store{
		Preferences: NewPreferences(),
		items:       core.ResolveDates(txs, loc),
	}
}

// NewFromDir seeds a store from base/transactions.json. A missing file yields
// an empty store.
func NewFromDir(base string, loc *time.Location) (*Store, error) {
	txs, err := readSeed(filepath.Join(base, SeedFile))
	if err != nil {
		return nil, err
	}
	return New(txs, loc), nil
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrInvalidUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, t := range s.items {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, u core.TransactionUpdate) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	if err := u.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items[i] = u.Apply(t)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrNotFound, id)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.items {
		if t.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", core.ErrNotFound, id)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func readSeed(path string) ([]core.Transaction, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var txs []core.Transaction
	if err := json.Unmarshal(b, &txs); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return dedupeByID(txs), nil
}

// dedupeByID keeps the first record of each id and drops records that fail
// validation. Input order is preserved.
func dedupeByID(in []core.Transaction) []core.Transaction {
	seen := map[string]struct{}{}
	out := make([]core.Transaction, 0, len(in))
	for _, t := range in {
		t.ID = strings.TrimSpace(t.ID)
		if t.Validate() != nil {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}
