package memory

import (
	"context"
	"testing"

	"github.com/ggoodman/casting-api/storage"
	"github.com/ggoodman/casting-api/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	s := New()
	defer s.Close()

	storagetest.Run(t, s)
}

func TestIDsAreNotReused(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateActor(ctx, storage.Actor{Name: "a"})
	if err := s.DeleteActor(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	b, _ := s.CreateActor(ctx, storage.Actor{Name: "b"})
	if b.ID == a.ID {
		t.Fatalf("id %d reused after delete", a.ID)
	}
}

func TestCloseResets(t *testing.T) {
	s := New()
	ctx := context.Background()
	if _, err := s.CreateMovie(ctx, storage.Movie{Title: "Matrix"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	p, err := s.ListMovies(ctx, storage.PageRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if p.Total != 0 {
		t.Fatalf("total after close = %d", p.Total)
	}
}
