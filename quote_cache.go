package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	openMarketQuoteTTL   = 60 * time.Second
	closedMarketQuoteTTL = 15 * time.Minute
	historyTTL           = 24 * time.Hour
	searchTTL            = 24 * time.Hour
)

type cacheEntry[T any] struct {
	value   T
	expires time.Time
}

type ttlCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[T]
}

func newTTLCache[T any]() *ttlCache[T] {
	return &ttlCache[T]{entries: make(map[string]cacheEntry[T])}
}

func (c *ttlCache[T]) get(key string, now time.Time) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !now.Before(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[T]) set(key string, value T, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[T]{value: value, expires: now.Add(ttl)}
}

// purge drops expired entries.
func (c *ttlCache[T]) purge(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// CachingProvider wraps a StockDataProvider. Quotes live 60s while the market is
// open and 15 minutes otherwise; history and search results live a day. "No data"
// answers are cached as well, errors never are.
type CachingProvider struct {
	next    StockDataProvider
	clock   *MarketClock
	quotes  *ttlCache[*Quote]
	history *ttlCache[[]Bar]
	search  *ttlCache[[]SearchMatch]
	now     func() time.Time
}

func NewCachingProvider(next StockDataProvider, clock *MarketClock) *CachingProvider {
	return &CachingProvider{
		next:    next,
		clock:   clock,
		quotes:  newTTLCache[*Quote](),
		history: newTTLCache[[]Bar](),
		search:  newTTLCache[[]SearchMatch](),
		now:     time.Now,
	}
}

func (p *CachingProvider) quoteTTL(now time.Time) time.Duration {
	if p.clock.IsOpen(now) {
		return openMarketQuoteTTL
	}
	return closedMarketQuoteTTL
}

func (p *CachingProvider) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	now := p.now()
	if q, ok := p.quotes.get(key, now); ok {
		return copyQuote(q), nil
	}

	q, err := p.next.GetQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	p.quotes.set(key, q, now, p.quoteTTL(now))
	return copyQuote(q), nil
}

func copyQuote(q *Quote) *Quote {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

func (p *CachingProvider) GetHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error) {
	key := fmt.Sprintf("%s|%s|%s|%s", strings.ToUpper(symbol), start.Format("2006-01-02"), end.Format("2006-01-02"), interval)
	now := p.now()
	if bars, ok := p.history.get(key, now); ok {
		return append([]Bar(nil), bars...), nil
	}

	bars, err := p.next.GetHistory(ctx, symbol, start, end, interval)
	if err != nil {
		return nil, err
	}
	p.history.set(key, bars, now, historyTTL)
	return append([]Bar(nil), bars...), nil
}

func (p *CachingProvider) Search(ctx context.Context, query string, limit int) ([]SearchMatch, error) {
	key := fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), limit)
	now := p.now()
	if matches, ok := p.search.get(key, now); ok {
		return append([]SearchMatch(nil), matches...), nil
	}

	matches, err := p.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	p.search.set(key, matches, now, searchTTL)
	return append([]SearchMatch(nil), matches...), nil
}

// Purge drops expired entries from every cache.
func (p *CachingProvider) Purge() int {
	now := p.now()
	return p.quotes.purge(now) + p.history.purge(now) + p.search.purge(now)
}
