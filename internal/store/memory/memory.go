// Package memory is an in-process Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"model-graphql/internal/store"

	"github.com/google/uuid"
)

type table struct {
	order []string
	rows  map[string]store.Record
}

// Store keeps records in memory. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*table
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides internal id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tables: make(map[string]*table),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) table(model string) *table {
	t, ok := s.tables[model]
	if !ok {
		t = &table{rows: make(map[string]store.Record)}
		s.tables[model] = t
	}
	return t
}

// List implements store.Store.
func (s *Store) List(_ context.Context, model string) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[model]
	if !ok {
		return []store.Record{}, nil
	}
	out := make([]store.Record, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id].Clone())
	}
	return out, nil
}

// Get implements store.Store.
func (s *Store) Get(_ context.Context, model, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[model]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

// FindByField implements store.Store.
func (s *Store) FindByField(_ context.Context, model, field string, value any) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []store.Record{}
	t, ok := s.tables[model]
	if !ok {
		return out, nil
	}
	for _, id := range t.order {
		rec := t.rows[id]
		if store.ValuesEqual(rec[field], value) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Insert implements store.Store.
func (s *Store) Insert(_ context.Context, model string, data store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(model)
	rec := data.Clone()
	if rec == nil {
		rec = store.Record{}
	}
	id := s.newID()
	if _, exists := t.rows[id]; exists {
		return nil, fmt.Errorf("duplicate id %q for %s", id, model)
	}
	rec["id"] = id
	t.rows[id] = rec
	t.order = append(t.order, id)
	return rec.Clone(), nil
}

// Update implements store.Store.
func (s *Store) Update(_ context.Context, model, id string, patch store.Record) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[model]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	next := rec.Clone()
	for k, v := range patch {
		if k == "id" {
			continue
		}
		next[k] = v
	}
	t.rows[id] = next
	return next.Clone(), nil
}

// Delete implements store.Store.
func (s *Store) Delete(_ context.Context, model, id string) (store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[model]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec, ok := t.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(t.rows, id)
	for i, candidate := range t.order {
		if candidate == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return rec, nil
}
