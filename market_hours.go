package main

import (
	"time"
)

// MarketClock answers trading-session questions in the exchange's timezone.
type MarketClock struct {
	loc *time.Location
	now func() time.Time
}

func NewMarketClock(timezone string) (*MarketClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &MarketClock{loc: loc, now: time.Now}, nil
}

var (
	sessionOpen  = 9*time.Hour + 30*time.Minute
	sessionClose = 16 * time.Hour
)

// IsOpen reports whether t falls inside the regular session, Monday to Friday 09:30-16:00.
// Exchange holidays are not modelled.
func (m *MarketClock) IsOpen(t time.Time) bool {
	local := t.In(m.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.loc)
	offset := local.Sub(midnight)
	return offset >= sessionOpen && offset < sessionClose
}

func (m *MarketClock) IsOpenNow() bool {
	return m.IsOpen(m.now())
}

// TradingDate is midnight UTC of the calendar day t falls on at the exchange.
func (m *MarketClock) TradingDate(t time.Time) time.Time {
	local := t.In(m.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

func (m *MarketClock) Today() time.Time {
	return m.TradingDate(m.now())
}

func (m *MarketClock) Location() *time.Location {
	return m.loc
}

// normalizeDate drops the clock part of a date, keeping its calendar day.
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
