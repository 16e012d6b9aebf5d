package main

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recalculate refreshes the derived fields of a holding from its quantity, its
// average buy price and the given market price. It is the only place they are written.
func (i *PortfolioItem) Recalculate(currentPrice decimal.Decimal, now time.Time) {
	qty := decimal.NewFromInt(i.Quantity)
	i.AverageBuyPrice = roundPrice(i.AverageBuyPrice)
	i.TotalCost = roundAmount(i.AverageBuyPrice.Mul(qty))
	i.CurrentValue = roundAmount(currentPrice.Mul(qty))
	i.PerformancePercent = performancePercent(i.CurrentValue, i.TotalCost)
	i.LastUpdated = &now
}

// costBasisScale bounds the digits kept for the unrounded cost basis.
const costBasisScale = 10

// applyBuy folds a purchase into the cost basis. The average is derived from the
// basis on every buy and never feeds back into it.
func (i *PortfolioItem) applyBuy(quantity int64, price decimal.Decimal) {
	basis := i.costBasis().Add(decimal.NewFromInt(quantity).Mul(price))
	i.Quantity += quantity
	i.CostBasis = basis.Round(costBasisScale)
	i.AverageBuyPrice = roundPrice(i.CostBasis.Div(decimal.NewFromInt(i.Quantity)))
}

// applySell reduces the held quantity. The average buy price never changes on a sell;
// the basis shrinks in proportion to the quantity left.
func (i *PortfolioItem) applySell(quantity int64) error {
	if quantity > i.Quantity {
		return invalidOperation("cannot sell more than held")
	}
	oldQty := decimal.NewFromInt(i.Quantity)
	basis := i.costBasis()
	i.Quantity -= quantity
	if i.Quantity == 0 {
		i.CostBasis = decimal.Zero
		return nil
	}
	i.CostBasis = basis.Mul(decimal.NewFromInt(i.Quantity)).DivRound(oldQty, costBasisScale)
	return nil
}

// costBasis falls back to quantity times the average for rows that predate the column.
func (i *PortfolioItem) costBasis() decimal.Decimal {
	if i.Quantity > 0 && i.CostBasis.IsZero() {
		return decimal.NewFromInt(i.Quantity).Mul(i.AverageBuyPrice)
	}
	return i.CostBasis
}

// resetCostBasis restarts the basis from a manually entered quantity and average.
func (i *PortfolioItem) resetCostBasis() {
	i.CostBasis = decimal.NewFromInt(i.Quantity).Mul(roundPrice(i.AverageBuyPrice))
}

// RecalculateTotals sums the current items into the portfolio aggregates.
// Items must already be recalculated.
func (p *Portfolio) RecalculateTotals() {
	value := decimal.Zero
	cost := decimal.Zero
	for _, item := range p.Items {
		value = value.Add(item.CurrentValue)
		cost = cost.Add(item.TotalCost)
	}
	p.TotalValue = roundAmount(value)
	p.TotalCost = roundAmount(cost)
	p.PerformancePercent = performancePercent(p.TotalValue, p.TotalCost)
}

func (p *Portfolio) itemForStock(stockID uint) (int, *PortfolioItem) {
	for idx := range p.Items {
		if p.Items[idx].StockID == stockID {
			return idx, &p.Items[idx]
		}
	}
	return -1, nil
}

func (p *Portfolio) itemByID(itemID uint) *PortfolioItem {
	for idx := range p.Items {
		if p.Items[idx].ID == itemID {
			return &p.Items[idx]
		}
	}
	return nil
}

func (p *Portfolio) removeItemAt(idx int) {
	p.Items = append(p.Items[:idx], p.Items[idx+1:]...)
}
