// Package storagetest holds the behavioral suite every storage.Store backend
// must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/casting-api/storage"
)

// Run exercises s against the storage.Store contract. s must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Run("Ping", func(t *testing.T) { testPing(t, s) })
	t.Run("MovieLifecycle", func(t *testing.T) { testMovieLifecycle(t, s) })
	t.Run("ActorLifecycle", func(t *testing.T) { testActorLifecycle(t, s) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, s) })
	t.Run("Pagination", func(t *testing.T) { testPagination(t, s) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, s) })
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testPing(t *testing.T, s storage.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func testMovieLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()

	created, err := s.CreateMovie(ctx, storage.Movie{Title: "Dragon Age", ReleaseDate: date(2008, 1, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("created movie has no id")
	}

	got, err := s.GetMovie(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Dragon Age" || !got.ReleaseDate.Equal(date(2008, 1, 1)) {
		t.Fatalf("get = %+v", got)
	}

	title := "Worried Tom"
	updated, err := s.UpdateMovie(ctx, created.ID, storage.MoviePatch{Title: &title})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || !updated.ReleaseDate.Equal(date(2008, 1, 1)) {
		t.Fatalf("update = %+v", updated)
	}

	rd := date(2022, 12, 12)
	updated, err = s.UpdateMovie(ctx, created.ID, storage.MoviePatch{ReleaseDate: &rd})
	if err != nil {
		t.Fatalf("update date: %v", err)
	}
	if updated.Title != title || !updated.ReleaseDate.Equal(rd) {
		t.Fatalf("update date = %+v", updated)
	}

	if err := s.DeleteMovie(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetMovie(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after delete: want ErrNotFound, got %v", err)
	}
	if err := s.DeleteMovie(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete: want ErrNotFound, got %v", err)
	}
}

func testActorLifecycle(t *testing.T, s storage.Store) {
	ctx := context.Background()

	created, err := s.CreateActor(ctx, storage.Actor{Name: "Tom Hanks", Age: 35, Gender: "male"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := s.GetActor(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != created {
		t.Fatalf("get = %+v, want %+v", got, created)
	}

	name, age := "Scary Hamlet", 21
	updated, err := s.UpdateActor(ctx, created.ID, storage.ActorPatch{Name: &name, Age: &age})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := storage.Actor{ID: created.ID, Name: name, Age: age, Gender: "male"}
	if updated != want {
		t.Fatalf("update = %+v, want %+v", updated, want)
	}

	if err := s.DeleteActor(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetActor(ctx, created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get after delete: want ErrNotFound, got %v", err)
	}
}

func testNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const missing = 10000000
	title, name := "x", "x"

	_, err := s.GetMovie(ctx, missing)
	expectNotFound(t, "GetMovie", err)
	_, err = s.UpdateMovie(ctx, missing, storage.MoviePatch{Title: &title})
	expectNotFound(t, "UpdateMovie", err)
	expectNotFound(t, "DeleteMovie", s.DeleteMovie(ctx, missing))

	_, err = s.GetActor(ctx, missing)
	expectNotFound(t, "GetActor", err)
	_, err = s.UpdateActor(ctx, missing, storage.ActorPatch{Name: &name})
	expectNotFound(t, "UpdateActor", err)
	expectNotFound(t, "DeleteActor", s.DeleteActor(ctx, missing))
}

func expectNotFound(t *testing.T, op string, err error) {
	t.Helper()
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("%s: want ErrNotFound, got %v", op, err)
	}
}

func testPagination(t *testing.T, s storage.Store) {
	ctx := context.Background()

	before, err := s.ListActors(ctx, storage.PageRequest{Page: 1, Size: storage.MaxPageSize})
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var ids []int64
	for i := range 12 {
		a, err := s.CreateActor(ctx, storage.Actor{Name: fmt.Sprintf("actor-%02d", i), Age: 20 + i, Gender: "female"})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, a.ID)
	}
	total := before.Total + 12

	first, err := s.ListActors(ctx, storage.PageRequest{Page: 1, Size: 5})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if first.Total != total || first.Page != 1 || len(first.Items) != 5 {
		t.Fatalf("page 1 = total %d page %d items %d", first.Total, first.Page, len(first.Items))
	}
	for i := 1; i < len(first.Items); i++ {
		if first.Items[i-1].ID >= first.Items[i].ID {
			t.Fatalf("items not ordered by id: %+v", first.Items)
		}
	}

	all, err := s.ListActors(ctx, storage.PageRequest{Page: 1, Size: storage.MaxPageSize})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if got := all.Items[len(all.Items)-1].ID; got != ids[len(ids)-1] {
		t.Fatalf("last id = %d, want %d", got, ids[len(ids)-1])
	}

	beyond, err := s.ListActors(ctx, storage.PageRequest{Page: 100000, Size: 100000})
	if err != nil {
		t.Fatalf("list beyond: %v", err)
	}
	if len(beyond.Items) != 0 || beyond.Total != total {
		t.Fatalf("beyond range = %+v", beyond)
	}

	for _, id := range ids {
		if err := s.DeleteActor(ctx, id); err != nil {
			t.Fatalf("cleanup %d: %v", id, err)
		}
	}
}

func testConcurrentCreate(t *testing.T, s storage.Store) {
	ctx := context.Background()
	const n = 16

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := s.CreateMovie(ctx, storage.Movie{Title: fmt.Sprintf("movie-%d", i), ReleaseDate: date(2000+i, 1, 1)})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			mu.Lock()
			seen[m.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != n {
		t.Fatalf("got %d distinct ids, want %d", len(seen), n)
	}
}
