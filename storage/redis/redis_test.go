package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/casting-api/storage"
	"github.com/ggoodman/casting-api/storage/storagetest"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	// Skip test if Redis is not available
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:6379",
		DB:   2, // Use separate DB for storage tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	s, err := New(Config{Client: client, KeyPrefix: "casting-test:" + t.Name() + ":"})
	if err != nil {
		t.Fatalf("Failed to create Redis storage: %v", err)
	}
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Reset(context.Background())
		_ = s.Close()
	})
	return s
}

func TestRedisStorage(t *testing.T) {
	s := newTestStorage(t)
	storagetest.Run(t, s)
}

func TestKeyLayout(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	m, err := s.CreateMovie(ctx, storage.Movie{Title: "Matrix"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if n, err := s.client.Exists(ctx, s.recordKey("movies", m.ID)).Result(); err != nil || n != 1 {
		t.Fatalf("record key missing: %d %v", n, err)
	}
	if score, err := s.client.ZScore(ctx, s.indexKey("movies"), strconv.FormatInt(m.ID, 10)).Result(); err != nil || score != float64(m.ID) {
		t.Fatalf("index entry = %v %v", score, err)
	}

	if err := s.DeleteMovie(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := s.client.ZCard(ctx, s.indexKey("movies")).Result(); n != 0 {
		t.Fatalf("index not cleaned up: %d entries", n)
	}
}

func TestNew_RequiresClient(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error")
	}
}
