// Package storage defines the persistence boundary for movies and actors.
// Backends live in subpackages: memory, sqlite and redis.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record with the requested id does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store defines the primary interface for movie and actor persistence.
// Implementations must be safe for concurrent use. List operations order
// records by id ascending.
type Store interface {
	ListMovies(ctx context.Context, req PageRequest) (Page[Movie], error)
	GetMovie(ctx context.Context, id int64) (Movie, error)
	CreateMovie(ctx context.Context, m Movie) (Movie, error)
	// UpdateMovie applies the non-nil fields of p and returns the result.
	UpdateMovie(ctx context.Context, id int64, p MoviePatch) (Movie, error)
	DeleteMovie(ctx context.Context, id int64) error

	ListActors(ctx context.Context, req PageRequest) (Page[Actor], error)
	GetActor(ctx context.Context, id int64) (Actor, error)
	CreateActor(ctx context.Context, a Actor) (Actor, error)
	UpdateActor(ctx context.Context, id int64, p ActorPatch) (Actor, error)
	DeleteActor(ctx context.Context, id int64) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage backend and releases resources
	Close() error
}

// Movie is a production in the catalog.
type Movie struct {
	ID          int64
	Title       string
	ReleaseDate time.Time
}

// MoviePatch carries the fields of a partial movie update. Nil means
// unchanged.
type MoviePatch struct {
	Title       *string
	ReleaseDate *time.Time
}

// Empty reports whether the patch changes nothing.
func (p MoviePatch) Empty() bool { return p.Title == nil && p.ReleaseDate == nil }

// Apply returns m with the patch applied.
func (p MoviePatch) Apply(m Movie) Movie {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.ReleaseDate != nil {
		m.ReleaseDate = *p.ReleaseDate
	}
	return m
}

// Actor is a performer that can be cast in movies.
type Actor struct {
	ID     int64
	Name   string
	Age    int
	Gender string
}

// ActorPatch carries the fields of a partial actor update.
type ActorPatch struct {
	Name   *string
	Age    *int
	Gender *string
}

func (p ActorPatch) Empty() bool { return p.Name == nil && p.Age == nil && p.Gender == nil }

func (p ActorPatch) Apply(a Actor) Actor {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Age != nil {
		a.Age = *p.Age
	}
	if p.Gender != nil {
		a.Gender = *p.Gender
	}
	return a
}

// PageRequest selects a 1-based page of the given size.
type PageRequest struct {
	Page int
	Size int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize applies defaults and bounds. Values below 1 fall back to the
// defaults; Size is capped at MaxPageSize.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.Size < 1 {
		r.Size = DefaultPageSize
	}
	if r.Size > MaxPageSize {
		r.Size = MaxPageSize
	}
	return r
}

// Offset is the number of records preceding the page.
func (r PageRequest) Offset() int { return (r.Page - 1) * r.Size }

// Page is one slice of a listing together with the size of the whole
// collection.
type Page[T any] struct {
	Items []T
	Total int
	Page  int
}

// Paginate slices an id-ordered collection according to req. It is used by
// backends that materialize the collection in process.
func Paginate[T any](all []T, req PageRequest) Page[T] {
	req = req.Normalize()
	p := Page[T]{Items: []T{}, Total: len(all), Page: req.Page}
	start := req.Offset()
	if start >= len(all) {
		return p
	}
	end := min(start+req.Size, len(all))
	p.Items = append(p.Items, all[start:end]...)
	return p
}
