// Package redis provides a Redis-based implementation of the storage.Store
// interface. Records are stored as JSON strings, each collection keeps a
// sorted-set index ordered by id and ids come from an INCR sequence.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/casting-api/storage"
)

// Config contains configuration options for the Redis storage
type Config struct {
	// Client is the Redis client instance
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys
	// Default: "casting:"
	KeyPrefix string
}

// Storage implements the storage.Store interface using Redis
type Storage struct {
	client    *redis.Client
	keyPrefix string
}

const maxWatchRetries = 10

// movieRecord is the JSON document stored for a movie.
type movieRecord struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ReleaseDate time.Time `json:"release_date"`
}

// actorRecord is the JSON document stored for an actor.
type actorRecord struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// New creates a new Redis-based storage instance.
func New(config Config) (*Storage, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	// Apply defaults
	if config.KeyPrefix == "" {
		config.KeyPrefix = "casting:"
	}

	return &Storage{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

// Dial connects to addr, verifies the server answers PING and returns a
// Storage using prefix.
func Dial(ctx context.Context, addr, prefix string) (*Storage, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(Config{Client: cl, KeyPrefix: prefix})
}

func (s *Storage) recordKey(collection string, id int64) string {
	return s.keyPrefix + collection + ":" + strconv.FormatInt(id, 10)
}

func (s *Storage) indexKey(collection string) string { return s.keyPrefix + collection + ":index" }

func (s *Storage) seqKey(collection string) string { return s.keyPrefix + collection + ":seq" }

// list reads one page of a collection: ZCARD for the total, ZRANGE by rank for
// the ids and MGET for the documents.
func list[T any](ctx context.Context, s *Storage, collection string, req storage.PageRequest) (storage.Page[T], error) {
	req = req.Normalize()
	page := storage.Page[T]{Items: []T{}, Page: req.Page}

	total, err := s.client.ZCard(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return page, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	page.Total = int(total)

	start := int64(req.Offset())
	if start >= total {
		return page, nil
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(collection), start, start+int64(req.Size)-1).Result()
	if err != nil {
		return page, fmt.Errorf("failed to range %s: %w", collection, err)
	}
	if len(ids) == 0 {
		return page, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyPrefix + collection + ":" + id
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return page, fmt.Errorf("failed to load %s: %w", collection, err)
	}
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Deleted between ZRANGE and MGET.
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(str), &item); err != nil {
			return page, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

func get[T any](ctx context.Context, s *Storage, key string) (T, error) {
	var item T
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return item, storage.ErrNotFound
		}
		return item, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return item, fmt.Errorf("failed to unmarshal stored data: %w", err)
	}
	return item, nil
}

// create allocates an id and writes the record and its index entry
// atomically.
func (s *Storage) create(ctx context.Context, collection string, build func(id int64) any) (int64, error) {
	id, err := s.client.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate %s id: %w", collection, err)
	}
	data, err := json.Marshal(build(id))
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s: %w", collection, err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(collection, id), data, 0)
		pipe.ZAdd(ctx, s.indexKey(collection), redis.Z{Score: float64(id), Member: strconv.FormatInt(id, 10)})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to store %s %d: %w", collection, id, err)
	}
	return id, nil
}

// update runs an optimistic read-modify-write on key under WATCH.
func update[T any](ctx context.Context, s *Storage, key string, mutate func(T) T) (T, error) {
	var out T
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return storage.ErrNotFound
			}
			return err
		}
		var cur T
		if err := json.Unmarshal(raw, &cur); err != nil {
			return fmt.Errorf("failed to unmarshal stored data: %w", err)
		}
		out = mutate(cur)
		data, err := json.Marshal(out)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}
	for range maxWatchRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("failed to update key %s: %w", key, err)
		}
		return out, err
	}
	return out, fmt.Errorf("failed to update key %s: too much contention", key)
}

func (s *Storage) remove(ctx context.Context, collection string, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.recordKey(collection, id))
		pipe.ZRem(ctx, s.indexKey(collection), strconv.FormatInt(id, 10))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", collection, id, err)
	}
	if del.Val() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Storage) ListMovies(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Movie], error) {
	recs, err := list[movieRecord](ctx, s, "movies", req)
	out := storage.Page[storage.Movie]{Items: make([]storage.Movie, 0, len(recs.Items)), Total: recs.Total, Page: recs.Page}
	for _, r := range recs.Items {
		out.Items = append(out.Items, r.movie())
	}
	return out, err
}

func (s *Storage) GetMovie(ctx context.Context, id int64) (storage.Movie, error) {
	r, err := get[movieRecord](ctx, s, s.recordKey("movies", id))
	return r.movie(), err
}

func (s *Storage) CreateMovie(ctx context.Context, m storage.Movie) (storage.Movie, error) {
	id, err := s.create(ctx, "movies", func(id int64) any {
		m.ID = id
		return movieRecordOf(m)
	})
	if err != nil {
		return storage.Movie{}, err
	}
	m.ID = id
	return m, nil
}

func (s *Storage) UpdateMovie(ctx context.Context, id int64, p storage.MoviePatch) (storage.Movie, error) {
	r, err := update(ctx, s, s.recordKey("movies", id), func(r movieRecord) movieRecord {
		return movieRecordOf(p.Apply(r.movie()))
	})
	if err != nil {
		return storage.Movie{}, err
	}
	return r.movie(), nil
}

func (s *Storage) DeleteMovie(ctx context.Context, id int64) error {
	return s.remove(ctx, "movies", id)
}

func (s *Storage) ListActors(ctx context.Context, req storage.PageRequest) (storage.Page[storage.Actor], error) {
	recs, err := list[actorRecord](ctx, s, "actors", req)
	out := storage.Page[storage.Actor]{Items: make([]storage.Actor, 0, len(recs.Items)), Total: recs.Total, Page: recs.Page}
	for _, r := range recs.Items {
		out.Items = append(out.Items, storage.Actor(r))
	}
	return out, err
}

func (s *Storage) GetActor(ctx context.Context, id int64) (storage.Actor, error) {
	r, err := get[actorRecord](ctx, s, s.recordKey("actors", id))
	return storage.Actor(r), err
}

func (s *Storage) CreateActor(ctx context.Context, a storage.Actor) (storage.Actor, error) {
	id, err := s.create(ctx, "actors", func(id int64) any {
		a.ID = id
		return actorRecord(a)
	})
	if err != nil {
		return storage.Actor{}, err
	}
	a.ID = id
	return a, nil
}

func (s *Storage) UpdateActor(ctx context.Context, id int64, p storage.ActorPatch) (storage.Actor, error) {
	r, err := update(ctx, s, s.recordKey("actors", id), func(r actorRecord) actorRecord {
		return actorRecord(p.Apply(storage.Actor(r)))
	})
	if err != nil {
		return storage.Actor{}, err
	}
	return storage.Actor(r), nil
}

func (s *Storage) DeleteActor(ctx context.Context, id int64) error {
	return s.remove(ctx, "actors", id)
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Reset removes every key under the configured prefix.
func (s *Storage) Reset(ctx context.Context) error {
	keys, err := s.scanKeys(ctx, s.keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to scan keys for prefix %s: %w", s.keyPrefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// Close closes the storage backend and releases resources
func (s *Storage) Close() error {
	return s.client.Close()
}

// scanKeys uses Redis SCAN to find all keys matching a pattern
func (s *Storage) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		result := s.client.Scan(ctx, cursor, pattern, 100) // Scan in batches of 100
		if result.Err() != nil {
			return nil, result.Err()
		}

		scanKeys, newCursor := result.Val()
		keys = append(keys, scanKeys...)
		cursor = newCursor

		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

func movieRecordOf(m storage.Movie) movieRecord {
	return movieRecord{ID: m.ID, Title: m.Title, ReleaseDate: m.ReleaseDate.UTC()}
}

func (r movieRecord) movie() storage.Movie {
	return storage.Movie{ID: r.ID, Title: r.Title, ReleaseDate: r.ReleaseDate}
}

// Compile-time interface check
var _ storage.Store = (*Storage)(nil)
