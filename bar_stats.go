package main

import (
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// BarStats summarises a series of bars ordered oldest first.
type BarStats struct {
	Count         int             `json:"count"`
	From          time.Time       `json:"from"`
	To            time.Time       `json:"to"`
	FirstClose    decimal.Decimal `json:"firstClose"`
	LastClose     decimal.Decimal `json:"lastClose"`
	MinClose      decimal.Decimal `json:"minClose"`
	MaxClose      decimal.Decimal `json:"maxClose"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"changePercent"`
	TotalVolume   decimal.Decimal `json:"totalVolume"`
	AverageVolume decimal.Decimal `json:"averageVolume"`
	// Mean and standard deviation of bar-to-bar close returns, in percent.
	MeanReturn       float64        `json:"meanReturn"`
	ReturnVolatility float64        `json:"returnVolatility"`
	HighestVolume    *HistoricalBar `json:"highestVolume,omitempty"`
	LowestClose      *HistoricalBar `json:"lowestClose,omitempty"`
}

// AnalyzeBars returns nil for an empty series.
func AnalyzeBars(bars []HistoricalBar) *BarStats {
	if len(bars) == 0 {
		return nil
	}

	first, last := bars[0], bars[len(bars)-1]
	s := &BarStats{
		Count:      len(bars),
		From:       first.Date,
		To:         last.Date,
		FirstClose: first.Close,
		LastClose:  last.Close,
		MinClose:   first.Close,
		MaxClose:   first.Close,
	}

	maxVolumeIdx, minCloseIdx := 0, 0
	total := decimal.Zero
	for i, bar := range bars {
		if bar.Close.LessThan(s.MinClose) {
			s.MinClose = bar.Close
			minCloseIdx = i
		}
		if bar.Close.GreaterThan(s.MaxClose) {
			s.MaxClose = bar.Close
		}
		if bar.Volume.GreaterThan(bars[maxVolumeIdx].Volume) {
			maxVolumeIdx = i
		}
		total = total.Add(bar.Volume)
	}

	s.Change = roundPrice(last.Close.Sub(first.Close))
	s.ChangePercent = percentChange(last.Close, first.Close)
	s.TotalVolume = total
	s.AverageVolume = roundAmount(total.Div(decimal.NewFromInt(int64(len(bars)))))
	s.HighestVolume = &bars[maxVolumeIdx]
	s.LowestClose = &bars[minCloseIdx]

	returns := closeReturns(bars)
	if len(returns) > 0 {
		s.MeanReturn = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		s.ReturnVolatility = stat.StdDev(returns, nil)
	}
	return s
}

func closeReturns(bars []HistoricalBar) []float64 {
	returns := make([]float64, 0, len(bars))
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if !prev.IsPositive() {
			continue
		}
		r, _ := bars[i].Close.Sub(prev).Div(prev).Mul(hundred).Float64()
		returns = append(returns, r)
	}
	return returns
}
