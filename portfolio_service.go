package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PortfolioInput creates a portfolio or, on update, changes the fields that are set.
type PortfolioInput struct {
	Name        *string
	Description *string
	IsDefault   *bool
}

// PortfolioService manages portfolios themselves; holdings go through the Ledger.
type PortfolioService struct {
	db     *Database
	ledger *Ledger
	log    zerolog.Logger
}

func NewPortfolioService(db *Database, ledger *Ledger, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		db:     db,
		ledger: ledger,
		log:    log.With().Str("component", "portfolios").Logger(),
	}
}

func validatePortfolioName(v *ValidationError, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		v.add("name", "is required")
	} else if len(name) > 100 {
		v.add("name", "must be at most 100 characters")
	}
}

func clearDefaultPortfolios(tx *gorm.DB, userID uint) error {
	err := tx.Model(&Portfolio{}).
		Where("user_id = ? AND is_default = ?", userID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("failed to clear default portfolio: %w", err)
	}
	return nil
}

// CreatePortfolio makes the new portfolio the default when asked to, or when it is the user's first.
func (s *PortfolioService) CreatePortfolio(ctx context.Context, userID uint, in PortfolioInput) (*Portfolio, error) {
	v := &ValidationError{}
	if in.Name == nil {
		v.add("name", "is required")
	} else {
		validatePortfolioName(v, *in.Name)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	portfolio := &Portfolio{
		UserID: userID,
		Name:   strings.TrimSpace(*in.Name),
	}
	if in.Description != nil {
		portfolio.Description = *in.Description
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Portfolio{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count portfolios: %w", err)
		}

		makeDefault := count == 0 || (in.IsDefault != nil && *in.IsDefault)
		if makeDefault {
			if err := clearDefaultPortfolios(tx, userID); err != nil {
				return err
			}
		}
		portfolio.IsDefault = makeDefault

		if err := tx.Omit(clause.Associations).Create(portfolio).Error; err != nil {
			return fmt.Errorf("failed to create portfolio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("user_id", userID).Uint("portfolio_id", portfolio.ID).Bool("default", portfolio.IsDefault).Msg("portfolio created")
	return portfolio, nil
}

func (s *PortfolioService) UpdatePortfolio(ctx context.Context, userID, portfolioID uint, in PortfolioInput) (*Portfolio, error) {
	v := &ValidationError{}
	if in.Name != nil {
		validatePortfolioName(v, *in.Name)
	}
	if err := v.orNil(); err != nil {
		return nil, err
	}

	unlock := s.ledger.lockPortfolio(portfolioID)
	defer unlock()

	var portfolio *Portfolio
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		p, err := loadPortfolio(tx, userID, portfolioID)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
			updates["name"] = p.Name
		}
		if in.Description != nil {
			p.Description = *in.Description
			updates["description"] = p.Description
		}
		if in.IsDefault != nil && *in.IsDefault && !p.IsDefault {
			if err := clearDefaultPortfolios(tx, userID); err != nil {
				return err
			}
			p.IsDefault = true
			updates["is_default"] = true
		}

		if len(updates) > 0 {
			if err := tx.Model(&Portfolio{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update portfolio %d: %w", p.ID, err)
			}
		}
		portfolio = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return portfolio, nil
}

// DeletePortfolio removes a portfolio with its holdings and transaction history.
// The last remaining portfolio cannot be deleted; deleting the default promotes
// the most recently created other portfolio.
func (s *PortfolioService) DeletePortfolio(ctx context.Context, userID, portfolioID uint) error {
	unlock := s.ledger.lockPortfolio(portfolioID)
	defer unlock()

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var portfolio Portfolio
		err := tx.Where("id = ? AND user_id = ?", portfolioID, userID).First(&portfolio).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("portfolio", portfolioID)
		}
		if err != nil {
			return fmt.Errorf("failed to load portfolio %d: %w", portfolioID, err)
		}

		var count int64
		if err := tx.Model(&Portfolio{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count portfolios: %w", err)
		}
		if count <= 1 {
			return invalidOperation("cannot delete the only portfolio")
		}

		if portfolio.IsDefault {
			var next Portfolio
			err := tx.Where("user_id = ? AND id <> ?", userID, portfolio.ID).
				Order("created_at DESC").Order("id DESC").
				First(&next).Error
			if err != nil {
				return fmt.Errorf("failed to find portfolio to promote: %w", err)
			}
			if err := tx.Model(&Portfolio{}).Where("id = ?", next.ID).Update("is_default", true).Error; err != nil {
				return fmt.Errorf("failed to promote portfolio %d: %w", next.ID, err)
			}
		}

		if err := tx.Where("portfolio_id = ?", portfolio.ID).Delete(&PortfolioItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete portfolio items: %w", err)
		}
		if err := tx.Where("portfolio_id = ?", portfolio.ID).Delete(&Transaction{}).Error; err != nil {
			return fmt.Errorf("failed to delete portfolio transactions: %w", err)
		}
		if err := tx.Delete(&Portfolio{}, portfolio.ID).Error; err != nil {
			return fmt.Errorf("failed to delete portfolio: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Uint("user_id", userID).Uint("portfolio_id", portfolioID).Msg("portfolio deleted")
	return nil
}

func (s *PortfolioService) ListPortfolios(ctx context.Context, userID uint) ([]Portfolio, error) {
	var portfolios []Portfolio
	result := s.db.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Stock").
		Where("user_id = ?", userID).
		Order("is_default DESC").Order("name ASC").
		Find(&portfolios)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", result.Error)
	}
	return portfolios, nil
}

func (s *PortfolioService) GetPortfolio(ctx context.Context, userID, portfolioID uint) (*Portfolio, error) {
	return loadPortfolio(s.db.db.WithContext(ctx), userID, portfolioID)
}

func (s *PortfolioService) DefaultPortfolio(ctx context.Context, userID uint) (*Portfolio, error) {
	var portfolio Portfolio
	err := s.db.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ?", userID, true).
		First(&portfolio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("default portfolio for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load default portfolio: %w", err)
	}
	return loadPortfolio(s.db.db.WithContext(ctx), userID, portfolio.ID)
}
