package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TransactionInput is a buy or sell as requested by a user.
type TransactionInput struct {
	PortfolioID     uint
	Symbol          string
	Type            string
	Quantity        int64
	Price           decimal.Decimal
	Fee             *decimal.Decimal
	TransactionDate *time.Time
	Notes           string
}

func (in TransactionInput) validate() error {
	v := &ValidationError{}
	if in.PortfolioID == 0 {
		v.add("portfolioId", "is required")
	}
	if strings.TrimSpace(in.Symbol) == "" {
		v.add("symbol", "is required")
	}
	if in.Type != TransactionTypeBuy && in.Type != TransactionTypeSell {
		v.add("type", "must be buy or sell")
	}
	if in.Quantity <= 0 {
		v.add("quantity", "must be a positive integer")
	}
	if !in.Price.IsPositive() {
		v.add("price", "must be positive")
	}
	if in.Fee != nil && in.Fee.IsNegative() {
		v.add("fee", "must not be negative")
	}
	return v.orNil()
}

// totalAmount is price x quantity plus the fee on a buy, minus it on a sell.
func (in TransactionInput) totalAmount() decimal.Decimal {
	total := in.Price.Mul(decimal.NewFromInt(in.Quantity))
	if in.Fee != nil {
		if in.Type == TransactionTypeBuy {
			total = total.Add(*in.Fee)
		} else {
			total = total.Sub(*in.Fee)
		}
	}
	return roundAmount(total)
}

// LedgerResult describes the committed state after one ledger operation.
// Item is nil when the holding was removed.
type LedgerResult struct {
	Transaction *Transaction   `json:"transaction,omitempty"`
	Item        *PortfolioItem `json:"item,omitempty"`
	ItemRemoved bool           `json:"itemRemoved"`
	Portfolio   *Portfolio     `json:"portfolio"`
}

// portfolioLocks serialises read-modify-write cycles per portfolio inside this process.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func (l *portfolioLocks) lock(portfolioID uint) func() {
	l.mu.Lock()
	m, ok := l.locks[portfolioID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[portfolioID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Ledger applies transactions and manual edits to holdings. Every operation
// runs in one database transaction; notifications and events follow the commit.
type Ledger struct {
	db            *Database
	notifications *NotificationService
	publisher     Publisher
	currency      string
	locks         *portfolioLocks
	log           zerolog.Logger
	now           func() time.Time
}

func NewLedger(db *Database, notifications *NotificationService, publisher Publisher, currency string, log zerolog.Logger) *Ledger {
	return &Ledger{
		db:            db,
		notifications: notifications,
		publisher:     publisher,
		currency:      currency,
		locks:         &portfolioLocks{locks: make(map[uint]*sync.Mutex)},
		log:           log.With().Str("component", "ledger").Logger(),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// lockPortfolio is shared with portfolio management so deletes cannot race a transaction.
func (l *Ledger) lockPortfolio(portfolioID uint) func() {
	return l.locks.lock(portfolioID)
}

func loadPortfolio(tx *gorm.DB, userID, portfolioID uint) (*Portfolio, error) {
	var portfolio Portfolio
	err := tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Stock").
		Where("id = ? AND user_id = ?", portfolioID, userID).
		First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("portfolio", portfolioID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio %d: %w", portfolioID, err)
	}
	return &portfolio, nil
}

func saveTotals(tx *gorm.DB, p *Portfolio) error {
	err := tx.Model(&Portfolio{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"total_value":         p.TotalValue,
		"total_cost":          p.TotalCost,
		"performance_percent": p.PerformancePercent,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to save portfolio %d totals: %w", p.ID, err)
	}
	return nil
}

func saveItem(tx *gorm.DB, item *PortfolioItem) error {
	if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
		return fmt.Errorf("failed to save portfolio item: %w", err)
	}
	return nil
}

// ApplyTransaction records a buy or sell and folds it into the holding:
// weighted-average cost on buys, unchanged average on partial sells, item
// removal on a full exit. Selling what is not held, or more than is held, fails
// with ErrInvalidOperation and commits nothing.
func (l *Ledger) ApplyTransaction(ctx context.Context, userID uint, in TransactionInput) (*LedgerResult, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock := l.lockPortfolio(in.PortfolioID)
	defer unlock()

	now := l.now()
	result := &LedgerResult{}
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		portfolio, err := loadPortfolio(tx, userID, in.PortfolioID)
		if err != nil {
			return err
		}
		stock, err := findStockBySymbol(tx, in.Symbol)
		if err != nil {
			return err
		}

		txDate := now
		if in.TransactionDate != nil {
			txDate = in.TransactionDate.UTC()
		}
		var fee *decimal.Decimal
		if in.Fee != nil {
			f := roundPrice(*in.Fee)
			fee = &f
		}
		record := &Transaction{
			UserID:          userID,
			PortfolioID:     portfolio.ID,
			StockID:         stock.ID,
			Type:            in.Type,
			Quantity:        in.Quantity,
			Price:           roundPrice(in.Price),
			Fee:             fee,
			TotalAmount:     in.totalAmount(),
			TransactionDate: txDate,
			Notes:           in.Notes,
			IsProcessed:     false,
		}
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return fmt.Errorf("failed to record transaction: %w", err)
		}

		idx, item := portfolio.itemForStock(stock.ID)
		switch in.Type {
		case TransactionTypeBuy:
			if item == nil {
				portfolio.Items = append(portfolio.Items, PortfolioItem{
					PortfolioID: portfolio.ID,
					StockID:     stock.ID,
					Stock:       stock,
				})
				item = &portfolio.Items[len(portfolio.Items)-1]
			}
			item.applyBuy(in.Quantity, record.Price)
		case TransactionTypeSell:
			if item == nil {
				return invalidOperation("cannot sell a stock not held")
			}
			if err := item.applySell(in.Quantity); err != nil {
				return err
			}
		}

		if item.Quantity == 0 {
			if err := tx.Delete(&PortfolioItem{}, item.ID).Error; err != nil {
				return fmt.Errorf("failed to remove portfolio item: %w", err)
			}
			portfolio.removeItemAt(idx)
			result.ItemRemoved = true
		} else {
			item.Recalculate(stock.CurrentPrice, now)
			if err := saveItem(tx, item); err != nil {
				return err
			}
			saved := *item
			result.Item = &saved
		}

		portfolio.RecalculateTotals()
		if err := saveTotals(tx, portfolio); err != nil {
			return err
		}

		// Last write: marks the ledger effects as settled.
		if err := tx.Model(record).Update("is_processed", true).Error; err != nil {
			return fmt.Errorf("failed to mark transaction processed: %w", err)
		}
		record.IsProcessed = true

		record.Stock = stock
		result.Transaction = record
		result.Portfolio = portfolio
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info().
		Uint("user_id", userID).
		Uint("portfolio_id", in.PortfolioID).
		Str("symbol", in.Symbol).
		Str("type", in.Type).
		Int64("quantity", in.Quantity).
		Str("price", result.Transaction.Price.String()).
		Msg("transaction applied")

	l.afterCommit(ctx, userID, result.Transaction)
	return result, nil
}

// afterCommit never fails the operation; the ledger state is already durable.
func (l *Ledger) afterCommit(ctx context.Context, userID uint, record *Transaction) {
	if l.notifications != nil {
		if err := l.notifications.Create(ctx, transactionNotification(record, l.currency)); err != nil {
			l.log.Warn().Err(err).Uint("transaction_id", record.ID).Msg("failed to create transaction notification")
		}
	}

	if l.publisher == nil {
		return
	}
	payload, err := json.Marshal(record)
	if err != nil {
		l.log.Warn().Err(err).Uint("transaction_id", record.ID).Msg("failed to encode transaction event")
		return
	}
	if err := l.publisher.Publish(ctx, UserTransactionsTopic(userID), string(payload)); err != nil {
		l.log.Warn().Err(err).Uint("transaction_id", record.ID).Msg("failed to publish transaction event")
	}
}

func transactionNotification(record *Transaction, currency string) *Notification {
	stock := record.Stock
	verb, past := "Bought", "purchased"
	if record.Type == TransactionTypeSell {
		verb, past = "Sold", "sold"
	}
	shares := "shares"
	if record.Quantity == 1 {
		shares = "share"
	}
	total := formatMoney(record.TotalAmount, currency)

	stockID := stock.ID
	return &Notification{
		UserID:  record.UserID,
		StockID: &stockID,
		Type:    NotificationTypeTransaction,
		Title:   fmt.Sprintf("%s %s %d %s for %s", verb, stock.Symbol, record.Quantity, shares, total),
		Message: fmt.Sprintf("You have %s %d %s of %s (%s) at %s per share for a total of %s.",
			past, record.Quantity, shares, stock.Name, stock.Symbol, formatMoney(record.Price, currency), total),
		Data: map[string]interface{}{
			"transaction_id": record.ID,
			"type":           record.Type,
			"symbol":         stock.Symbol,
			"quantity":       record.Quantity,
			"price":          record.Price.String(),
			"total_amount":   record.TotalAmount.String(),
		},
	}
}

// ItemInput adds a holding directly, without a transaction record.
type ItemInput struct {
	Symbol          string
	Quantity        int64
	AverageBuyPrice decimal.Decimal
}

// ItemUpdate changes the fields that are set.
type ItemUpdate struct {
	Quantity        *int64
	AverageBuyPrice *decimal.Decimal
}

func (l *Ledger) AddItem(ctx context.Context, userID, portfolioID uint, in ItemInput) (*LedgerResult, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	v := &ValidationError{}
	if in.Symbol == "" {
		v.add("symbol", "is required")
	}
	if in.Quantity <= 0 {
		v.add("quantity", "must be a positive integer")
	}
	if !in.AverageBuyPrice.IsPositive() {
		v.add("averageBuyPrice", "must be positive")
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	return l.editPortfolio(ctx, userID, portfolioID, func(tx *gorm.DB, p *Portfolio, res *LedgerResult) error {
		stock, err := findStockBySymbol(tx, in.Symbol)
		if err != nil {
			return err
		}
		if _, existing := p.itemForStock(stock.ID); existing != nil {
			return invalidOperation(fmt.Sprintf("stock %s already exists in portfolio", stock.Symbol))
		}

		p.Items = append(p.Items, PortfolioItem{
			PortfolioID:     p.ID,
			StockID:         stock.ID,
			Stock:           stock,
			Quantity:        in.Quantity,
			AverageBuyPrice: in.AverageBuyPrice,
		})
		item := &p.Items[len(p.Items)-1]
		item.resetCostBasis()
		item.Recalculate(stock.CurrentPrice, l.now())
		if err := saveItem(tx, item); err != nil {
			return err
		}
		saved := *item
		res.Item = &saved
		return nil
	})
}

func (l *Ledger) UpdateItem(ctx context.Context, userID, portfolioID, itemID uint, upd ItemUpdate) (*LedgerResult, error) {
	v := &ValidationError{}
	if upd.Quantity != nil && *upd.Quantity < 0 {
		v.add("quantity", "must not be negative")
	}
	if upd.AverageBuyPrice != nil && upd.AverageBuyPrice.IsNegative() {
		v.add("averageBuyPrice", "must not be negative")
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	return l.editPortfolio(ctx, userID, portfolioID, func(tx *gorm.DB, p *Portfolio, res *LedgerResult) error {
		item := p.itemByID(itemID)
		if item == nil {
			return notFound("portfolio item", itemID)
		}
		if upd.Quantity != nil {
			item.Quantity = *upd.Quantity
		}
		if upd.AverageBuyPrice != nil {
			item.AverageBuyPrice = *upd.AverageBuyPrice
		}
		item.resetCostBasis()
		item.Recalculate(item.Stock.CurrentPrice, l.now())
		if err := saveItem(tx, item); err != nil {
			return err
		}
		saved := *item
		res.Item = &saved
		return nil
	})
}

func (l *Ledger) RemoveItem(ctx context.Context, userID, portfolioID, itemID uint) (*LedgerResult, error) {
	return l.editPortfolio(ctx, userID, portfolioID, func(tx *gorm.DB, p *Portfolio, res *LedgerResult) error {
		for idx := range p.Items {
			if p.Items[idx].ID != itemID {
				continue
			}
			if err := tx.Delete(&PortfolioItem{}, itemID).Error; err != nil {
				return fmt.Errorf("failed to remove portfolio item: %w", err)
			}
			p.removeItemAt(idx)
			res.ItemRemoved = true
			return nil
		}
		return notFound("portfolio item", itemID)
	})
}

// RefreshPortfolio revalues every holding at the current stock prices.
func (l *Ledger) RefreshPortfolio(ctx context.Context, userID, portfolioID uint) (*LedgerResult, error) {
	return l.editPortfolio(ctx, userID, portfolioID, func(tx *gorm.DB, p *Portfolio, _ *LedgerResult) error {
		return l.revalueItems(tx, p)
	})
}

func (l *Ledger) revalueItems(tx *gorm.DB, p *Portfolio) error {
	now := l.now()
	for idx := range p.Items {
		item := &p.Items[idx]
		if item.Stock == nil {
			return fmt.Errorf("portfolio item %d has no stock loaded", item.ID)
		}
		item.Recalculate(item.Stock.CurrentPrice, now)
		if err := saveItem(tx, item); err != nil {
			return err
		}
	}
	return nil
}

// RevalueHoldings refreshes every portfolio that holds one of the given stocks.
// It runs after a price refresh so stored item values follow stock prices.
func (l *Ledger) RevalueHoldings(ctx context.Context, stockIDs []uint) (int, error) {
	if len(stockIDs) == 0 {
		return 0, nil
	}

	var owners []struct {
		PortfolioID uint
		UserID      uint
	}
	err := l.db.db.WithContext(ctx).
		Table("portfolio_items").
		Select("DISTINCT portfolio_items.portfolio_id AS portfolio_id, portfolios.user_id AS user_id").
		Joins("JOIN portfolios ON portfolios.id = portfolio_items.portfolio_id").
		Where("portfolio_items.stock_id IN ?", stockIDs).
		Scan(&owners).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find portfolios to revalue: %w", err)
	}

	revalued := 0
	for _, o := range owners {
		if _, err := l.RefreshPortfolio(ctx, o.UserID, o.PortfolioID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return revalued, err
		}
		revalued++
	}
	return revalued, nil
}

// editPortfolio runs fn against the locked, loaded portfolio and persists the
// recomputed totals in the same database transaction.
func (l *Ledger) editPortfolio(ctx context.Context, userID, portfolioID uint, fn func(tx *gorm.DB, p *Portfolio, res *LedgerResult) error) (*LedgerResult, error) {
	unlock := l.lockPortfolio(portfolioID)
	defer unlock()

	result := &LedgerResult{}
	err := l.db.WithTx(ctx, func(tx *gorm.DB) error {
		portfolio, err := loadPortfolio(tx, userID, portfolioID)
		if err != nil {
			return err
		}
		if err := fn(tx, portfolio, result); err != nil {
			return err
		}
		portfolio.RecalculateTotals()
		if err := saveTotals(tx, portfolio); err != nil {
			return err
		}
		result.Portfolio = portfolio
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
