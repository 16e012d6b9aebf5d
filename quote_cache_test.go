package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cacheFixture struct {
	provider *fakeProvider
	cache    *CachingProvider
	now      time.Time
}

func newCacheFixture(t *testing.T) *cacheFixture {
	f := &cacheFixture{provider: newFakeProvider(), now: testNow}
	f.cache = NewCachingProvider(f.provider, newTestClock(t))
	f.cache.now = func() time.Time { return f.now }
	return f
}

func TestCachingProvider_QuoteTTLWhileOpen(t *testing.T) {
	f := newCacheFixture(t)
	f.provider.setQuote("AAPL", "180")
	ctx := context.Background()

	q, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("180")))

	f.provider.setQuote("AAPL", "181")
	f.now = testNow.Add(59 * time.Second)
	q, err = f.cache.GetQuote(ctx, "aapl")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("180")))
	assert.Equal(t, 1, f.provider.callCount("quote:AAPL"))

	f.now = testNow.Add(60 * time.Second)
	q, err = f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(dec("181")))
	assert.Equal(t, 2, f.provider.callCount("quote:AAPL"))
}

func TestCachingProvider_QuoteTTLWhileClosed(t *testing.T) {
	f := newCacheFixture(t)
	// Saturday
	f.now = time.Date(2024, 3, 16, 15, 0, 0, 0, time.UTC)
	f.provider.setQuote("AAPL", "180")
	ctx := context.Background()

	_, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	f.now = f.now.Add(14 * time.Minute)
	_, err = f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, f.provider.callCount("quote:AAPL"))

	f.now = f.now.Add(time.Minute)
	_, err = f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, f.provider.callCount("quote:AAPL"))
}

func TestCachingProvider_ErrorsAreNotCached(t *testing.T) {
	f := newCacheFixture(t)
	f.provider.errs["AAPL"] = providerFailure("AAPL")
	ctx := context.Background()

	_, err := f.cache.GetQuote(ctx, "AAPL")
	assert.ErrorIs(t, err, ErrProviderFailure)

	delete(f.provider.errs, "AAPL")
	f.provider.setQuote("AAPL", "10")
	q, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.NotNil(t, q)
	assert.Equal(t, 2, f.provider.callCount("quote:AAPL"))
}

func TestCachingProvider_NoDataIsCached(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()

	q, err := f.cache.GetQuote(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, q)
	q, err = f.cache.GetQuote(ctx, "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Equal(t, 1, f.provider.callCount("quote:ZZZZ"))
}

func TestCachingProvider_CopiesAreIndependent(t *testing.T) {
	f := newCacheFixture(t)
	f.provider.setQuote("AAPL", "180")
	ctx := context.Background()

	q, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	q.Price = dec("1")

	again, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, again.Price.Equal(dec("180")))
}

func TestCachingProvider_HistoryAndSearch(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	f.provider.history["AAPL"] = []Bar{{Date: day, Open: dec("1"), High: dec("2"), Low: dec("1"), Close: dec("2"), Volume: dec("10")}}
	f.provider.matches = []SearchMatch{{Symbol: "AAPL", Name: "Apple Inc."}}

	for i := 0; i < 3; i++ {
		bars, err := f.cache.GetHistory(ctx, "AAPL", day.AddDate(0, 0, -5), day, "1d")
		require.NoError(t, err)
		assert.Len(t, bars, 1)

		matches, err := f.cache.Search(ctx, "Apple", 5)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	}
	assert.Equal(t, 1, f.provider.callCount("history:AAPL"))
	assert.Equal(t, 1, f.provider.callCount("search:apple"))

	_, err := f.cache.Search(ctx, "Apple", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, f.provider.callCount("search:apple"))
}

func TestCachingProvider_Purge(t *testing.T) {
	f := newCacheFixture(t)
	ctx := context.Background()
	f.provider.setQuote("AAPL", "1")
	f.provider.matches = []SearchMatch{{Symbol: "AAPL"}}

	_, err := f.cache.GetQuote(ctx, "AAPL")
	require.NoError(t, err)
	_, err = f.cache.Search(ctx, "a", 5)
	require.NoError(t, err)

	assert.Zero(t, f.cache.Purge())
	f.now = testNow.Add(time.Hour)
	assert.Equal(t, 1, f.cache.Purge())
	f.now = testNow.Add(25 * time.Hour)
	assert.Equal(t, 1, f.cache.Purge())
}
