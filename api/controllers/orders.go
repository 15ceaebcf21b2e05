package controllers

import (
	"net/http"
	"strings"

	"github.com/alifmarket/marketplace-backend/api/responses"
	"github.com/alifmarket/marketplace-backend/api/validators"
	"github.com/alifmarket/marketplace-backend/internal/deliveries"
	"github.com/alifmarket/marketplace-backend/internal/orders"
	"github.com/alifmarket/marketplace-backend/pkg/enums"
	pkgerrors "github.com/alifmarket/marketplace-backend/pkg/errors"
	"github.com/alifmarket/marketplace-backend/pkg/logger"
	"github.com/alifmarket/marketplace-backend/pkg/pagination"
)

type orderStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	Carrier        *string `json:"carrier" validate:"omitempty,max=120"`
	TrackingNumber *string `json:"tracking_number" validate:"omitempty,max=120"`
}

// ListOrders returns the user's orders from the requested side of the trade.
func ListOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		side, err := parseOrderSide(r.URL.Query().Get("type"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := orders.ListOrdersInput{
			UserID: act.UserID,
			Side:   side,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
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

// OrderDetail returns the order with payment and delivery preloaded,
// restricted to the buyer or seller on the order.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), act.UserID, enums.Role(act.Role), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// UpdateOrderStatus advances fulfilment: the seller moves the order
// through processing, shipped, and delivered.
func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body orderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(strings.TrimSpace(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:        orderID,
			ActorUserID:    act.UserID,
			ActorRole:      act.Role,
			Target:         target,
			Carrier:        body.Carrier,
			TrackingNumber: body.TrackingNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// ConfirmDelivery lets the buyer acknowledge receipt, completing the
// order and releasing seller funds bookkeeping.
func ConfirmDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.ConfirmDelivery(r.Context(), deliveries.ConfirmInput{
			OrderID:     orderID,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func parseOrderSide(raw string) (orders.OrderSide, error) {
	switch strings.TrimSpace(strings.ToLower(raw)) {
	case "", "all":
		return orders.OrderSideAny, nil
	case "buyer":
		return orders.OrderSideBuyer, nil
	case "seller":
		return orders.OrderSideSeller, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "type must be buyer, seller, or all")
	}
}
