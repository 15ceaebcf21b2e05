package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/api/responses"
	"github.com/alifmarket/marketplace-backend/api/validators"
	"github.com/alifmarket/marketplace-backend/internal/commission"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
)

type setCategoryRateRequest struct {
	Category    string `json:"category" validate:"required,max=120"`
	Zone        string `json:"zone" validate:"required"`
	RatePercent string `json:"rate_percent" validate:"required"`
	ForUnsold   bool   `json:"for_unsold"`
	Active      *bool  `json:"active"`
}

type setCustomRateRequest struct {
	SellerID    string     `json:"seller_id" validate:"required,uuid4"`
	RatePercent string     `json:"rate_percent" validate:"required"`
	ForUnsold   bool       `json:"for_unsold"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidUntil  *time.Time `json:"valid_until"`
}

// AdminSetCategoryRate upserts the commission rate for a category/zone pair.
func AdminSetCategoryRate(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		var body setCategoryRateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		zone, err := enums.ParseCommissionZone(strings.TrimSpace(body.Zone))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid zone"))
			return
		}

		rate, err := parseRatePercent(body.RatePercent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		active := true
		if body.Active != nil {
			active = *body.Active
		}

		view, err := svc.SetCategoryRate(r.Context(), commission.SetCategoryRateInput{
			Category:    validators.SanitizeString(body.Category, 120),
			Zone:        zone,
			ForUnsold:   body.ForUnsold,
			RatePercent: rate,
			Active:      active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminListCategoryRates returns every configured category rate.
func AdminListCategoryRates(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		views, err := svc.ListCategoryRates(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

// AdminSetCustomRate configures a seller-specific commission override.
func AdminSetCustomRate(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		var body setCustomRateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sellerID, err := parseUUIDField(body.SellerID, "seller id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rate, err := parseRatePercent(body.RatePercent)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.SetCustomRate(r.Context(), commission.SetCustomRateInput{
			SellerID:    sellerID,
			ForUnsold:   body.ForUnsold,
			RatePercent: rate,
			ValidFrom:   body.ValidFrom,
			ValidUntil:  body.ValidUntil,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminListCustomRates returns the override history for one seller.
func AdminListCustomRates(svc commission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission service unavailable"))
			return
		}

		sellerID, err := parseIDParam(r, "sellerId", "seller id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views, err := svc.ListCustomRates(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, views)
	}
}

func parseRatePercent(raw string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate_percent")
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "rate_percent must be between 0 and 100")
	}
	return rate, nil
}
