package commission

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// FlatPolicy charges a single percentage on every sale regardless of
// category or seller. This is the calculator wired in production today.
type FlatPolicy struct {
	RatePercent decimal.Decimal
}

// NewFlatPolicy parses the configured flat rate, e.g. "5" for five percent.
func NewFlatPolicy(ratePercent string) (FlatPolicy, error) {
	rate, err := decimal.NewFromString(ratePercent)
	if err != nil {
		return FlatPolicy{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid flat fee rate")
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return FlatPolicy{}, pkgerrors.New(pkgerrors.CodeValidation, "flat fee rate must be between 0 and 100")
	}
	return FlatPolicy{RatePercent: rate}, nil
}

// Fee returns subtotal * rate / 100, rounded to cents.
func (p FlatPolicy) Fee(_ context.Context, input FeeInput) (decimal.Decimal, error) {
	if input.Subtotal.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}
	return input.Subtotal.Mul(p.RatePercent).Div(hundred).Round(2), nil
}

// Engine resolves the rate from the commission tables: a seller-specific
// override wins, then the (category, zone, for_unsold) rate, then the
// flat fallback.
// It is a drop-in replacement for FlatPolicy behind FeeCalculator.
type Engine struct {
	repo     Repository
	fallback FlatPolicy
}

// NewEngine builds a table-driven fee calculator.
func NewEngine(repo Repository, fallback FlatPolicy) (*Engine, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repository required")
	}
	return &Engine{repo: repo, fallback: fallback}, nil
}

func (e *Engine) Fee(ctx context.Context, input FeeInput) (decimal.Decimal, error) {
	if input.Subtotal.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must not be negative")
	}

	at := input.At
	if at.IsZero() {
		at = time.Now()
	}

	if custom, err := e.repo.FindActiveCustomRate(ctx, input.SellerID, input.ForUnsold, at); err == nil {
		return applyRate(input.Subtotal, custom.RatePercent), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load custom commission")
	}

	if byCategory, err := e.repo.FindCategoryRate(ctx, input.Category, input.Zone, input.ForUnsold); err == nil {
		return applyRate(input.Subtotal, byCategory.RatePercent), nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category commission")
	}

	return e.fallback.Fee(ctx, input)
}

func applyRate(subtotal, ratePercent decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(ratePercent).Div(hundred).Round(2)
}
