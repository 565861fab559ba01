// Package memory provides an in-memory implementation of storage.Store. It is
// the default backend and the one used by handler tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/ggoodman/casting-api/storage"
)

// Storage implements the storage.Store interface using in-process maps.
type Storage struct {
	mu     sync.RWMutex
	movies table[storage.Movie]
	actors table[storage.Actor]
}

var _ storage.Store = (*Storage)(nil)

// New creates a new, empty in-memory store.
func New() *Storage {
	return &Storage{
		movies: newTable[storage.Movie](),
		actors: newTable[storage.Actor](),
	}
}

// table is an id-keyed collection with a monotonically increasing sequence.
// Ids are never reused after deletion.
type table[T any] struct {
	rows map[int64]T
	seq  int64
}

func newTable[T any]() table[T] {
	return table[T]{rows: make(map[int64]T)}
}

func (t *table[T]) list(req storage.PageRequest) storage.Page[T] {
	ids := slices.Sorted(maps.Keys(t.rows))
	all := make([]T, 0, len(ids))
	for _, id := range ids {
		all = append(all, t.rows[id])
	}
	return storage.Paginate(all, req)
}

func (t *table[T]) get(id int64) (T, error) {
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, storage.ErrNotFound
	}
	return v, nil
}

func (t *table[T]) next() int64 {
	t.seq++
	return t.seq
}

func (t *table[T]) delete(id int64) error {
	if _, ok := t.rows[id]; !ok {
		return storage.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

func (s *Storage) ListMovies(_ context.Context, req storage.PageRequest) (storage.Page[storage.Movie], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movies.list(req), nil
}

func (s *Storage) GetMovie(_ context.Context, id int64) (storage.Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.movies.get(id)
}

func (s *Storage) CreateMovie(_ context.Context, m storage.Movie) (storage.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.movies.next()
	s.movies.rows[m.ID] = m
	return m, nil
}

func (s *Storage) UpdateMovie(_ context.Context, id int64, p storage.MoviePatch) (storage.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.movies.get(id)
	if err != nil {
		return storage.Movie{}, err
	}
	m = p.Apply(m)
	s.movies.rows[id] = m
	return m, nil
}

func (s *Storage) DeleteMovie(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movies.delete(id)
}

func (s *Storage) ListActors(_ context.Context, req storage.PageRequest) (storage.Page[storage.Actor], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors.list(req), nil
}

func (s *Storage) GetActor(_ context.Context, id int64) (storage.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.actors.get(id)
}

func (s *Storage) CreateActor(_ context.Context, a storage.Actor) (storage.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.actors.next()
	s.actors.rows[a.ID] = a
	return a, nil
}

func (s *Storage) UpdateActor(_ context.Context, id int64, p storage.ActorPatch) (storage.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.actors.get(id)
	if err != nil {
		return storage.Actor{}, err
	}
	a = p.Apply(a)
	s.actors.rows[id] = a
	return a, nil
}

func (s *Storage) DeleteActor(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actors.delete(id)
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Close discards all records.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.movies = newTable[storage.Movie]()
	s.actors = newTable[storage.Actor]()
	s.mu.Unlock()
	return nil
}
