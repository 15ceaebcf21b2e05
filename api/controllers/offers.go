package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alifmarket/marketplace-backend/api/responses"
	"github.com/alifmarket/marketplace-backend/api/validators"
	"github.com/alifmarket/marketplace-backend/internal/offers"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

type createOfferRequest struct {
	AdID         string     `json:"ad_id" validate:"required,uuid4"`
	PriceOffered string     `json:"price_offered" validate:"required"`
	Quantity     int        `json:"quantity" validate:"required,gt=0"`
	Message      *string    `json:"message" validate:"omitempty,max=1000"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

type offerDecisionRequest struct {
	Status         string  `json:"status" validate:"required,oneof=accepted rejected cancelled"`
	SellerResponse *string `json:"seller_response" validate:"omitempty,max=1000"`
}

// CreateOffer places a buyer's offer on an active ad.
func CreateOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		adID, err := parseUUIDField(body.AdID, "ad id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(strings.TrimSpace(body.PriceOffered))
		if err != nil || !price.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "price_offered must be a positive decimal"))
			return
		}

		offer, err := svc.Create(r.Context(), offers.CreateOfferInput{
			BuyerID:      act.UserID,
			ActorRole:    act.Role,
			AdID:         adID,
			PriceOffered: price,
			Quantity:     body.Quantity,
			Message:      body.Message,
			ExpiresAt:    body.ExpiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// ListOffers returns the sent or received offers page for the user.
func ListOffers(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		side, err := parseOfferSide(r.URL.Query().Get("type"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := offers.ListOffersInput{
			UserID: act.UserID,
			Side:   side,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOfferStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			input.Status = &status
		}

		resp, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// OfferDetail returns a single offer visible to either party.
func OfferDetail(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := parseIDParam(r, "offerId", "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Get(r.Context(), act.UserID, enums.Role(act.Role), offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

// DecideOffer routes a PATCH to accept, reject, or cancel. Accepting
// returns the offer together with the order it produced.
func DecideOffer(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offers service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offerID, err := parseIDParam(r, "offerId", "offer id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body offerDecisionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := offers.DecisionInput{
			OfferID:        offerID,
			ActorUserID:    act.UserID,
			ActorRole:      act.Role,
			SellerResponse: body.SellerResponse,
		}

		switch enums.OfferStatus(body.Status) {
		case enums.OfferStatusAccepted:
			result, err := svc.Accept(r.Context(), input)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, result)
		case enums.OfferStatusRejected:
			offer, err := svc.Reject(r.Context(), input)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, offer)
		case enums.OfferStatusCancelled:
			offer, err := svc.Cancel(r.Context(), input)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, offer)
		default:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "status must be accepted, rejected, or cancelled"))
		}
	}
}

func parseOfferSide(raw string) (offers.OfferSide, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", "sent":
		return offers.OfferSideSent, nil
	case "received":
		return offers.OfferSideReceived, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "type must be sent or received")
	}
}
