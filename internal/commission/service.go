package commission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the admin surface for managing commission rates.
type Service interface {
	SetCategoryRate(ctx context.Context, input SetCategoryRateInput) (*CategoryRateView, error)
	ListCategoryRates(ctx context.Context) ([]CategoryRateView, error)
	SetCustomRate(ctx context.Context, input SetCustomRateInput) (*CustomRateView, error)
	ListCustomRates(ctx context.Context, sellerID uuid.UUID) ([]CustomRateView, error)
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService builds the commission admin service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) SetCategoryRate(ctx context.Context, input SetCategoryRateInput) (*CategoryRateView, error) {
	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category required")
	}
	if !input.Zone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid commission zone")
	}
	if err := validateRate(input.RatePercent); err != nil {
		return nil, err
	}

	row := &models.CategoryCommission{
		Category:    category,
		Zone:        input.Zone,
		ForUnsold:   input.ForUnsold,
		RatePercent: input.RatePercent,
		Active:      input.Active,
	}
	if err := s.repo.UpsertCategoryRate(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert category rate")
	}
	view := categoryView(*row)
	return &view, nil
}

func (s *service) ListCategoryRates(ctx context.Context) ([]CategoryRateView, error) {
	rows, err := s.repo.ListCategoryRates(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list category rates")
	}
	views := make([]CategoryRateView, 0, len(rows))
	for _, row := range rows {
		views = append(views, categoryView(row))
	}
	return views, nil
}

// SetCustomRate deactivates any live override in the same (seller,
// for_unsold) scope before inserting the new one, so at most one custom
// rate is active per scope.
func (s *service) SetCustomRate(ctx context.Context, input SetCustomRateInput) (*CustomRateView, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if err := validateRate(input.RatePercent); err != nil {
		return nil, err
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidUntil.After(*input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid_until must be after valid_from")
	}

	row := &models.CustomCommission{
		UserID:      input.SellerID,
		ForUnsold:   input.ForUnsold,
		RatePercent: input.RatePercent,
		Active:      true,
		ValidFrom:   input.ValidFrom,
		ValidUntil:  input.ValidUntil,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.DeactivateCustomRates(ctx, input.SellerID, input.ForUnsold); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate custom rates")
		}
		if err := repo.CreateCustomRate(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create custom rate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := customView(*row)
	return &view, nil
}

func (s *service) ListCustomRates(ctx context.Context, sellerID uuid.UUID) ([]CustomRateView, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	rows, err := s.repo.ListCustomRates(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list custom rates")
	}
	views := make([]CustomRateView, 0, len(rows))
	for _, row := range rows {
		views = append(views, customView(row))
	}
	return views, nil
}

func validateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "rate_percent must be between 0 and 100")
	}
	return nil
}

func categoryView(row models.CategoryCommission) CategoryRateView {
	return CategoryRateView{
		ID:          row.ID,
		Category:    row.Category,
		Zone:        row.Zone,
		ForUnsold:   row.ForUnsold,
		RatePercent: row.RatePercent,
		Active:      row.Active,
		UpdatedAt:   row.UpdatedAt,
	}
}

func customView(row models.CustomCommission) CustomRateView {
	return CustomRateView{
		ID:          row.ID,
		SellerID:    row.UserID,
		ForUnsold:   row.ForUnsold,
		RatePercent: row.RatePercent,
		Active:      row.Active,
		ValidFrom:   row.ValidFrom,
		ValidUntil:  row.ValidUntil,
		CreatedAt:   row.CreatedAt,
	}
}
