// Package sqlite provides a storage.Store backed by an SQLite database via
// github.com/mattn/go-sqlite3. The schema is created when the store is opened.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ggoodman/casting-api/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL,
	release_date TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS actors (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL,
	age    INTEGER NOT NULL,
	gender TEXT NOT NULL
);`

// maxAttempts bounds how often a transaction is retried on SQLITE_BUSY or
// SQLITE_LOCKED.
const maxAttempts = 5

// Storage implements storage.Store on top of database/sql.
type Storage struct {
	db *sql.DB
}

var _ storage.Store = (*Storage)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" yields a private in-memory database.
func Open(ctx context.Context, path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// isRetryable reports whether err is a transient lock conflict.
func isRetryable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// txn runs fn in a transaction, retrying lock conflicts with a short backoff.
func (s *Storage) txn(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}

func (s *Storage) runTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatDate(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt release_date %q: %w", s, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMovie(row scanner) (storage.Movie, error) {
	var (
		m  storage.Movie
		rd string
	)
	if err := row.Scan(&m.ID, &m.Title, &rd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Movie{}, storage.ErrNotFound
		}
		return storage.Movie{}, err
	}
	var err error
	m.ReleaseDate, err = parseDate(rd)
	return m, err
}

func scanActor(row scanner) (storage.Actor, error) {
	var a storage.Actor
	if err := row.Scan(&a.ID, &a.Name, &a.Age, &a.Gender); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Actor{}, storage.ErrNotFound
		}
		return storage.Actor{}, err
	}
	return a, nil
}

func (s *Storage) count(ctx context.Context, q queryer, table string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Storage) ListMovies(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Movie], error) {
	req = req.Normalize()
	page := storage.Page[storage.Movie]{Items: []storage.Movie{}, Page: req.Page}
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		total, err := s.count(ctx, tx, "movies")
		if err != nil {
			return err
		}
		page.Total = total
		rows, err := tx.QueryContext(ctx,
			"SELECT id, title, release_date FROM movies ORDER BY id LIMIT ? OFFSET ?", req.Size, req.Offset())
		if err != nil {
			return fmt.Errorf("list movies: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMovie(rows)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, m)
		}
		return rows.Err()
	})
	return page, err
}

func (s *Storage) GetMovie(ctx context.Context, id int64) (storage.Movie, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, title, release_date FROM movies WHERE id = ?", id)
	return scanMovie(row)
}

func (s *Storage) CreateMovie(ctx context.Context, m storage.Movie) (storage.Movie, error) {
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO movies (title, release_date) VALUES (?, ?)", m.Title, formatDate(m.ReleaseDate))
		if err != nil {
			return fmt.Errorf("insert movie: %w", err)
		}
		m.ID, err = res.LastInsertId()
		return err
	})
	return m, err
}

func (s *Storage) UpdateMovie(ctx context.Context, id int64, p storage.MoviePatch) (storage.Movie, error) {
	var out storage.Movie
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanMovie(tx.QueryRowContext(ctx, "SELECT id, title, release_date FROM movies WHERE id = ?", id))
		if err != nil {
			return err
		}
		out = p.Apply(cur)
		_, err = tx.ExecContext(ctx, "UPDATE movies SET title = ?, release_date = ? WHERE id = ?", out.Title, formatDate(out.ReleaseDate), id)
		if err != nil {
			return fmt.Errorf("update movie %d: %w", id, err)
		}
		return nil
	})
	return out, err
}

func (s *Storage) DeleteMovie(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "movies", id)
}

func (s *Storage) ListActors(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Actor], error) {
	req = req.Normalize()
	page := storage.Page[storage.Actor]{Items: []storage.Actor{}, Page: req.Page}
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		total, err := s.count(ctx, tx, "actors")
		if err != nil {
			return err
		}
		page.Total = total
		rows, err := tx.QueryContext(ctx,
			"SELECT id, name, age, gender FROM actors ORDER BY id LIMIT ? OFFSET ?", req.Size, req.Offset())
		if err != nil {
			return fmt.Errorf("list actors: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanActor(rows)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, a)
		}
		return rows.Err()
	})
	return page, err
}

func (s *Storage) GetActor(ctx context.Context, id int64) (storage.Actor, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, name, age, gender FROM actors WHERE id = ?", id)
	return scanActor(row)
}

func (s *Storage) CreateActor(ctx context.Context, a storage.Actor) (storage.Actor, error) {
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "INSERT INTO actors (name, age, gender) VALUES (?, ?, ?)", a.Name, a.Age, a.Gender)
		if err != nil {
			return fmt.Errorf("insert actor: %w", err)
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	return a, err
}

func (s *Storage) UpdateActor(ctx context.Context, id int64, p storage.ActorPatch) (storage.Actor, error) {
	var out storage.Actor
	err := s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanActor(tx.QueryRowContext(ctx, "SELECT id, name, age, gender FROM actors WHERE id = ?", id))
		if err != nil {
			return err
		}
		out = p.Apply(cur)
		_, err = tx.ExecContext(ctx, "UPDATE actors SET name = ?, age = ?, gender = ? WHERE id = ?", out.Name, out.Age, out.Gender, id)
		if err != nil {
			return fmt.Errorf("update actor %d: %w", id, err)
		}
		return nil
	})
	return out, err
}

func (s *Storage) DeleteActor(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "actors", id)
}

func (s *Storage) deleteRow(ctx context.Context, table string, id int64) error {
	return s.txn(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}
