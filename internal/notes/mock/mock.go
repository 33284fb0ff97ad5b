// Package mock provides an in-memory notes.Store for tests.
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/dictanote/internal/notes"
)

// Store is a map-backed notes.Store. Set Err to make every call fail.
type Store struct {
	mu       sync.Mutex
	notes    map[string]notes.Note
	settings map[string]string

	// Err, if non-nil, is returned by every method.
	Err error

	// UpdateCalls counts Update invocations.
	UpdateCalls int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		notes:    make(map[string]notes.Note),
		settings: make(map[string]string),
	}
}

func (s *Store) Create(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.notes[n.ID] = clone(*n)
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	n, ok := s.notes[id]
	if !ok {
		return nil, nil
	}
	out := clone(n)
	return &out, nil
}

func (s *Store) List(_ context.Context) ([]notes.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]notes.Note, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, clone(n))
	}
	slices.SortFunc(out, func(a, b notes.Note) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) Update(_ context.Context, n *notes.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.notes[n.ID]
	if !ok {
		return notes.ErrNotFound
	}
	cur.Title, cur.Content, cur.Images, cur.UpdatedAt = n.Title, n.Content, slices.Clone(n.Images), n.UpdatedAt
	s.notes[n.ID] = cur
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, ok := s.notes[id]; !ok {
		return notes.ErrNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", false, s.Err
	}
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *Store) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.settings[key] = value
	return nil
}

func clone(n notes.Note) notes.Note {
	n.Images = slices.Clone(n.Images)
	return n
}

var _ notes.Store = (*Store)(nil)
