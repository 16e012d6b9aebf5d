package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAlphaVantageServer answers /query with the body registered for the requested function.
func newAlphaVantageServer(t *testing.T, bodies map[string]string) (*AlphaVantageClient, func() []string) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		mu.Lock()
		seen = append(seen, q.Get("function")+":"+q.Get("symbol")+q.Get("keywords")+":"+q.Get("apikey"))
		mu.Unlock()
		body, ok := bodies[q.Get("function")]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := NewAlphaVantageClient(ProviderConfig{
		APIKey:            "demo",
		BaseURL:           srv.URL,
		Timeout:           5 * time.Second,
		RequestsPerMinute: 60000,
	}, nopLogger())
	return client, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), seen...)
	}
}

func TestAlphaVantage_GetQuote(t *testing.T) {
	client, seen := newAlphaVantageServer(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote": {
			"01. symbol": "IBM",
			"02. open": "190.0000",
			"03. high": "193.5000",
			"04. low": "189.2500",
			"05. price": "192.1200",
			"06. volume": "4521300",
			"07. latest trading day": "2024-03-13",
			"08. previous close": "191.0000",
			"09. change": "1.1200",
			"10. change percent": "0.5864%"
		}}`,
	})

	q, err := client.GetQuote(context.Background(), "ibm")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "IBM", q.Symbol)
	assert.True(t, q.Price.Equal(dec("192.12")))
	assert.True(t, q.ChangePercent.Equal(dec("0.5864")))
	assert.True(t, q.Volume.Equal(dec("4521300")))
	require.NotNil(t, q.PreviousClose)
	assert.True(t, q.PreviousClose.Equal(dec("191")))
	require.NotNil(t, q.High)
	assert.True(t, q.High.Equal(dec("193.5")))
	assert.Equal(t, []string{"GLOBAL_QUOTE:IBM:demo"}, seen())
}

func TestAlphaVantage_EmptyQuoteIsNoData(t *testing.T) {
	client, _ := newAlphaVantageServer(t, map[string]string{
		"GLOBAL_QUOTE": `{"Global Quote": {}}`,
	})

	q, err := client.GetQuote(context.Background(), "NOPE")
	assert.NoError(t, err)
	assert.Nil(t, q)
}

func TestAlphaVantage_RateLimitNoteIsFailure(t *testing.T) {
	client, _ := newAlphaVantageServer(t, map[string]string{
		"GLOBAL_QUOTE": `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`,
	})

	_, err := client.GetQuote(context.Background(), "IBM")
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestAlphaVantage_HTTPErrorIsFailure(t *testing.T) {
	client, _ := newAlphaVantageServer(t, map[string]string{})

	_, err := client.GetQuote(context.Background(), "IBM")
	assert.ErrorIs(t, err, ErrProviderFailure)

	_, err = client.Search(context.Background(), "ibm", 5)
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestAlphaVantage_GetHistory(t *testing.T) {
	client, _ := newAlphaVantageServer(t, map[string]string{
		"TIME_SERIES_DAILY": `{
			"Meta Data": {"2. Symbol": "IBM"},
			"Time Series (Daily)": {
				"2024-03-13": {"1. open": "190", "2. high": "193", "3. low": "189", "4. close": "192", "5. volume": "100"},
				"2024-03-12": {"1. open": "188", "2. high": "191", "3. low": "187", "4. close": "190", "5. volume": "200"},
				"2024-03-11": {"1. open": "0", "2. high": "0", "3. low": "0", "4. close": "0", "5. volume": "0"},
				"2024-03-08": {"1. open": "185", "2. high": "184", "3. low": "183", "4. close": "186", "5. volume": "50"},
				"2024-03-01": {"1. open": "180", "2. high": "181", "3. low": "179", "4. close": "180", "5. volume": "10"}
			}
		}`,
	})

	start := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC)
	bars, err := client.GetHistory(context.Background(), "IBM", start, end, "1d")
	require.NoError(t, err)

	// zero and inconsistent rows are skipped, the 1st is out of range
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), bars[0].Date)
	assert.True(t, bars[1].Close.Equal(dec("192")))
	assert.True(t, bars[0].Volume.Equal(dec("200")))
}

func TestAlphaVantage_GetHistoryMissingSeries(t *testing.T) {
	client, _ := newAlphaVantageServer(t, map[string]string{
		"TIME_SERIES_WEEKLY": `{"Meta Data": {}}`,
	})

	bars, err := client.GetHistory(context.Background(), "IBM", time.Time{}, time.Now(), "1w")
	assert.NoError(t, err)
	assert.Empty(t, bars)
}

func TestAlphaVantage_GetHistoryUnknownInterval(t *testing.T) {
	client, seen := newAlphaVantageServer(t, map[string]string{
		"TIME_SERIES_DAILY": `{"Time Series (Daily)": {}}`,
	})

	_, err := client.GetHistory(context.Background(), "IBM", time.Time{}, time.Now(), "3h")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "interval")
	assert.Empty(t, seen(), "no upstream request for an unknown interval")
}

func TestAlphaVantage_Search(t *testing.T) {
	client, seen := newAlphaVantageServer(t, map[string]string{
		"SYMBOL_SEARCH": `{"bestMatches": [
			{"1. symbol": "TSCO.LON", "2. name": "Tesco PLC", "3. type": "Equity", "4. region": "United Kingdom", "7. timezone": "UTC+01", "8. currency": "GBX"},
			{"1. symbol": "TSCDF", "2. name": "Tesco plc", "3. type": "Equity", "4. region": "United States", "7. timezone": "UTC-04", "8. currency": "USD"},
			{"1. symbol": "TSCDY", "2. name": "Tesco plc", "3. type": "Equity", "4. region": "United States", "7. timezone": "UTC-04", "8. currency": "USD"}
		]}`,
	})

	matches, err := client.Search(context.Background(), "tesco", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, SearchMatch{
		Symbol: "TSCO.LON", Name: "Tesco PLC", Type: "Equity",
		Region: "United Kingdom", Timezone: "UTC+01", Currency: "GBX",
	}, matches[0])
	assert.Equal(t, []string{"SYMBOL_SEARCH:tesco:demo"}, seen())

	none, err := client.Search(context.Background(), "   ", 5)
	assert.NoError(t, err)
	assert.Nil(t, none)
}
