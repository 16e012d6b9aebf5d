package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const defaultAlphaVantageURL = "https://www.alphavantage.co"

// Alpha Vantage function per bar interval.
var alphaVantageFunctions = map[string]string{
	"1d":    "TIME_SERIES_DAILY",
	"1w":    "TIME_SERIES_WEEKLY",
	"1m":    "TIME_SERIES_MONTHLY",
	"1min":  "TIME_SERIES_INTRADAY",
	"5min":  "TIME_SERIES_INTRADAY",
	"15min": "TIME_SERIES_INTRADAY",
	"30min": "TIME_SERIES_INTRADAY",
	"60min": "TIME_SERIES_INTRADAY",
}

// checkInterval rejects bar intervals the upstream has no series for.
func checkInterval(interval string) error {
	if _, ok := alphaVantageFunctions[interval]; ok {
		return nil
	}
	v := &ValidationError{}
	v.add("interval", fmt.Sprintf("unsupported interval %q", interval))
	return v
}

func timeSeriesKey(function, interval string) string {
	switch function {
	case "TIME_SERIES_INTRADAY":
		return fmt.Sprintf("Time Series (%s)", interval)
	case "TIME_SERIES_WEEKLY":
		return "Weekly Time Series"
	case "TIME_SERIES_MONTHLY":
		return "Monthly Time Series"
	default:
		return "Time Series (Daily)"
	}
}

type AlphaVantageClient struct {
	client  *resty.Client
	apiKey  string
	limiter *rate.Limiter
	log     zerolog.Logger
}

func NewAlphaVantageClient(cfg ProviderConfig, log zerolog.Logger) *AlphaVantageClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAlphaVantageURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 5
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetTimeout(timeout)
	client.SetHeader("User-Agent", "stock-portfolio-tracker/1.0")

	return &AlphaVantageClient{
		client:  client,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		log:     log.With().Str("component", "alphavantage").Logger(),
	}
}

// query performs one paced API call and returns the top-level JSON object.
func (a *AlphaVantageClient) query(ctx context.Context, params map[string]string) (map[string]json.RawMessage, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("apikey", a.apiKey).
		Get("/query")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %v", ErrProviderFailure, params["function"], err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d, body: %s", ErrProviderFailure, resp.StatusCode(), resp.String())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProviderFailure, err)
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := raw[key]; ok {
			return nil, fmt.Errorf("%w: rate limited: %s", ErrProviderFailure, strings.Trim(string(msg), `"`))
		}
	}
	return raw, nil
}

func (a *AlphaVantageClient) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, nil
	}

	raw, err := a.query(ctx, map[string]string{
		"function": "GLOBAL_QUOTE",
		"symbol":   symbol,
	})
	if err != nil {
		return nil, err
	}

	var gq map[string]string
	if body, ok := raw["Global Quote"]; ok {
		if err := json.Unmarshal(body, &gq); err != nil {
			return nil, fmt.Errorf("%w: malformed quote for %s: %v", ErrProviderFailure, symbol, err)
		}
	}
	if len(gq) == 0 {
		a.log.Warn().Str("symbol", symbol).Msg("no quote data returned")
		return nil, nil
	}

	price, err := decimal.NewFromString(gq["05. price"])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid price %q for %s", ErrProviderFailure, gq["05. price"], symbol)
	}
	if !price.IsPositive() {
		return nil, nil
	}

	quote := &Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        parseDecimalOrZero(gq["09. change"]),
		ChangePercent: parseDecimalOrZero(strings.TrimSuffix(strings.TrimSpace(gq["10. change percent"]), "%")),
		Volume:        parseDecimalOrZero(gq["06. volume"]),
		Open:          parseOptionalDecimal(gq["02. open"]),
		High:          parseOptionalDecimal(gq["03. high"]),
		Low:           parseOptionalDecimal(gq["04. low"]),
		PreviousClose: parseOptionalDecimal(gq["08. previous close"]),
		Timestamp:     time.Now().UTC(),
	}
	if s := gq["01. symbol"]; s != "" {
		quote.Symbol = strings.ToUpper(s)
	}
	return quote, nil
}

// GetHistory returns bars between start and end inclusive, oldest first.
func (a *AlphaVantageClient) GetHistory(ctx context.Context, symbol string, start, end time.Time, interval string) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if interval == "" {
		interval = defaultInterval
	}
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	function := alphaVantageFunctions[interval]

	params := map[string]string{
		"function":   function,
		"symbol":     symbol,
		"outputsize": "full",
	}
	if function == "TIME_SERIES_INTRADAY" {
		params["interval"] = interval
	}

	raw, err := a.query(ctx, params)
	if err != nil {
		return nil, err
	}

	body, ok := raw[timeSeriesKey(function, interval)]
	if !ok {
		a.log.Warn().Str("symbol", symbol).Str("interval", interval).Msg("no time series returned")
		return nil, nil
	}
	var series map[string]map[string]string
	if err := json.Unmarshal(body, &series); err != nil {
		return nil, fmt.Errorf("%w: malformed time series for %s: %v", ErrProviderFailure, symbol, err)
	}

	startKey := start.Format("2006-01-02")
	endKey := end.Format("2006-01-02")

	bars := make([]Bar, 0, len(series))
	for stamp, values := range series {
		day := stamp
		if len(day) > 10 {
			day = day[:10]
		}
		if day < startKey || day > endKey {
			continue
		}

		bar, ok := parseSeriesBar(stamp, values)
		if !ok {
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// parseSeriesBar rejects incomplete or inconsistent rows instead of storing them.
func parseSeriesBar(stamp string, values map[string]string) (Bar, bool) {
	layout := "2006-01-02"
	if len(stamp) > 10 {
		layout = "2006-01-02 15:04:05"
	}
	date, err := time.Parse(layout, stamp)
	if err != nil {
		return Bar{}, false
	}

	open, err1 := decimal.NewFromString(values["1. open"])
	high, err2 := decimal.NewFromString(values["2. high"])
	low, err3 := decimal.NewFromString(values["3. low"])
	closePrice, err4 := decimal.NewFromString(values["4. close"])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Bar{}, false
	}
	volume := parseDecimalOrZero(values["5. volume"])

	// Skip null/zero values
	if !open.IsPositive() || !high.IsPositive() || !low.IsPositive() || !closePrice.IsPositive() {
		return Bar{}, false
	}
	// High should be >= other prices, Low should be <= other prices
	if high.LessThan(open) || high.LessThan(closePrice) || low.GreaterThan(open) || low.GreaterThan(closePrice) {
		return Bar{}, false
	}

	return Bar{Date: date, Open: open, High: high, Low: low, Close: closePrice, Volume: volume}, true
}

func (a *AlphaVantageClient) Search(ctx context.Context, query string, limit int) ([]SearchMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	raw, err := a.query(ctx, map[string]string{
		"function": "SYMBOL_SEARCH",
		"keywords": query,
	})
	if err != nil {
		return nil, err
	}

	body, ok := raw["bestMatches"]
	if !ok {
		return nil, nil
	}
	var matches []map[string]string
	if err := json.Unmarshal(body, &matches); err != nil {
		return nil, fmt.Errorf("%w: malformed search results: %v", ErrProviderFailure, err)
	}

	results := make([]SearchMatch, 0, limit)
	for _, m := range matches {
		results = append(results, SearchMatch{
			Symbol:   m["1. symbol"],
			Name:     m["2. name"],
			Type:     m["3. type"],
			Region:   m["4. region"],
			Timezone: m["7. timezone"],
			Currency: m["8. currency"],
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func parseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseOptionalDecimal(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &d
}
