package commission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/alifmarket/marketplace-backend/pkg/db/models"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
)

type stubAdminRepo struct {
	Repository
	upserted             *models.CategoryCommission
	created              *models.CustomCommission
	deactivated          []uuid.UUID
	deactivatedForUnsold []bool
}

func (s *stubAdminRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAdminRepo) UpsertCategoryRate(ctx context.Context, row *models.CategoryCommission) error {
	s.upserted = row
	return nil
}

func (s *stubAdminRepo) CreateCustomRate(ctx context.Context, row *models.CustomCommission) error {
	s.created = row
	return nil
}

func (s *stubAdminRepo) DeactivateCustomRates(ctx context.Context, sellerID uuid.UUID, forUnsold bool) error {
	s.deactivated = append(s.deactivated, sellerID)
	s.deactivatedForUnsold = append(s.deactivatedForUnsold, forUnsold)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	var appErr *pkgerrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}

func TestService_SetCategoryRate(t *testing.T) {
	repo := &stubAdminRepo{}
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	view, err := svc.SetCategoryRate(context.Background(), SetCategoryRateInput{
		Category:    "  Electronics ",
		Zone:        enums.CommissionZoneEU,
		RatePercent: decimal.RequireFromString("7.5"),
		Active:      true,
	})
	if err != nil {
		t.Fatalf("set category rate: %v", err)
	}

	if repo.upserted.Category != "electronics" {
		t.Fatalf("category not normalized, got %q", repo.upserted.Category)
	}
	if !view.RatePercent.Equal(decimal.RequireFromString("7.5")) || !view.Active {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestService_SetCategoryRateRejectsBadInput(t *testing.T) {
	svc, err := NewService(&stubAdminRepo{}, stubTxRunner{})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	_, err = svc.SetCategoryRate(context.Background(), SetCategoryRateInput{
		Zone:        enums.CommissionZoneEU,
		RatePercent: decimal.NewFromInt(5),
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.SetCategoryRate(context.Background(), SetCategoryRateInput{
		Category:    "metals",
		Zone:        enums.CommissionZone("atlantis"),
		RatePercent: decimal.NewFromInt(5),
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.SetCategoryRate(context.Background(), SetCategoryRateInput{
		Category:    "metals",
		Zone:        enums.CommissionZoneEU,
		RatePercent: decimal.NewFromInt(101),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestService_SetCustomRateReplacesActiveOverride(t *testing.T) {
	repo := &stubAdminRepo{}
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	sellerID := uuid.New()
	view, err := svc.SetCustomRate(context.Background(), SetCustomRateInput{
		SellerID:    sellerID,
		ForUnsold:   true,
		RatePercent: decimal.NewFromInt(3),
	})
	if err != nil {
		t.Fatalf("set custom rate: %v", err)
	}

	if len(repo.deactivated) != 1 || repo.deactivated[0] != sellerID {
		t.Fatalf("previous overrides not deactivated")
	}
	if len(repo.deactivatedForUnsold) != 1 || !repo.deactivatedForUnsold[0] {
		t.Fatalf("deactivation not scoped to unsold stock overrides")
	}
	if repo.created == nil || !repo.created.Active || !repo.created.ForUnsold {
		t.Fatalf("new override not created active in the unsold scope")
	}
	if view.SellerID != sellerID {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestService_SetCustomRateRejectsInvertedWindow(t *testing.T) {
	svc, err := NewService(&stubAdminRepo{}, stubTxRunner{})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}

	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(-time.Hour)
	_, err = svc.SetCustomRate(context.Background(), SetCustomRateInput{
		SellerID:    uuid.New(),
		RatePercent: decimal.NewFromInt(3),
		ValidFrom:   &from,
		ValidUntil:  &until,
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}
