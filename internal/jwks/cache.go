package jwks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Config controls how a Cache fetches and retains a key set.
type Config struct {
	// URL is the absolute JWKS location, usually URL(domain).
	URL string
	// TTL bounds how long a fetched snapshot is served. Zero disables caching
	// and every lookup re-fetches the document.
	TTL time.Duration
	// Timeout bounds a single fetch. Defaults to 5s.
	Timeout time.Duration
	// RetryCount is the number of additional attempts made by the HTTP client.
	RetryCount int
	// MinRefreshInterval rate-limits refreshes triggered by an unknown kid.
	// Defaults to 30s.
	MinRefreshInterval time.Duration
	// Client optionally supplies a preconfigured resty client. The cache works
	// on a copy and never modifies it.
	Client *resty.Client
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the default timeouts and a ten minute TTL.
func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		TTL:                10 * time.Minute,
		Timeout:            5 * time.Second,
		MinRefreshInterval: 30 * time.Second,
	}
}

// Cache is a KeySource that fetches a remote JWKS document and serves
// immutable snapshots of it. It is safe for concurrent use; concurrent misses
// are coalesced into a single fetch.
type Cache struct {
	url        string
	ttl        time.Duration
	timeout    time.Duration
	minRefresh time.Duration
	client     *resty.Client
	log        *slog.Logger

	refreshMu sync.Mutex
	snapshots *expirable.LRU[string, *KeySet]
}

var _ KeySource = (*Cache)(nil)

// NewCache validates cfg and builds a Cache. No network traffic happens until
// the first lookup.
func NewCache(cfg Config) (*Cache, error) {
	if cfg.URL == "" {
		return nil, errors.New("jwks url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MinRefreshInterval <= 0 {
		cfg.MinRefreshInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	var client *resty.Client
	if cfg.Client != nil {
		client = cfg.Client.Clone()
	} else {
		client = resty.New()
	}
	client.SetRetryCount(cfg.RetryCount)

	c := &Cache{
		url:        cfg.URL,
		ttl:        cfg.TTL,
		timeout:    cfg.Timeout,
		minRefresh: cfg.MinRefreshInterval,
		client:     client,
		log:        cfg.Logger,
	}
	if cfg.TTL > 0 {
		c.snapshots = expirable.NewLRU[string, *KeySet](1, nil, cfg.TTL)
	}
	return c, nil
}

// KeySet returns the current snapshot, fetching it when absent or expired.
func (c *Cache) KeySet(ctx context.Context) (*KeySet, error) {
	if c.snapshots == nil {
		return c.fetch(ctx)
	}
	if ks, ok := c.snapshots.Get(c.url); ok {
		return ks, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	// Another caller may have refreshed while we waited.
	if ks, ok := c.snapshots.Get(c.url); ok {
		return ks, nil
	}
	ks, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.snapshots.Add(c.url, ks)
	return ks, nil
}

// Key implements KeySource. A kid missing from a cached snapshot triggers at
// most one refresh per MinRefreshInterval to pick up rotated keys.
func (c *Cache) Key(ctx context.Context, kid string) (any, error) {
	ks, err := c.KeySet(ctx)
	if err != nil {
		return nil, err
	}
	if k, ok := ks.Lookup(kid); ok {
		return k.Public, nil
	}
	if c.snapshots == nil || time.Since(ks.FetchedAt()) < c.minRefresh {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	ks, err = c.refresh(ctx, ks)
	if err != nil {
		return nil, err
	}
	if k, ok := ks.Lookup(kid); ok {
		return k.Public, nil
	}
	return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
}

// Invalidate drops the cached snapshot so the next lookup re-fetches.
func (c *Cache) Invalidate() {
	if c.snapshots != nil {
		c.snapshots.Remove(c.url)
	}
}

// refresh replaces stale unless someone else already did.
func (c *Cache) refresh(ctx context.Context, stale *KeySet) (*KeySet, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if ks, ok := c.snapshots.Get(c.url); ok && ks != stale {
		return ks, nil
	}
	ks, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.snapshots.Add(c.url, ks)
	return ks, nil
}

func (c *Cache) fetch(ctx context.Context) (*KeySet, error) {
	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.client.R().
		SetContext(fctx).
		SetHeader("Accept", "application/json").
		Get(c.url)
	if err != nil {
		c.log.WarnContext(ctx, "jwks.fetch.fail", slog.String("url", c.url), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		c.log.WarnContext(ctx, "jwks.fetch.fail", slog.String("url", c.url), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode())
	}
	ks, err := ParseKeySet(resp.Body())
	if err != nil {
		c.log.WarnContext(ctx, "jwks.parse.fail", slog.String("url", c.url), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.log.DebugContext(ctx, "jwks.fetch.ok", slog.String("url", c.url), slog.Int("keys", ks.Len()), slog.Duration("dur", time.Since(start)))
	return ks, nil
}
