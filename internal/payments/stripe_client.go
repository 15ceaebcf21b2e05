package payments

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/account"
	"github.com/stripe/stripe-go/v84/accountlink"
	"github.com/stripe/stripe-go/v84/paymentintent"

	pkgstripe "github.com/alifmarket/marketplace-backend/pkg/stripe"
)

// StripePaymentClient exposes the subset of Stripe operations the payment
// service needs, so it can be stubbed in tests.
type StripePaymentClient interface {
	CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
}

type stripeClientWrapper struct {
	client *pkgstripe.Client
}

// NewStripeClient wraps the shared Stripe client. Every call runs under
// the client's bounded deadline so a slow Stripe maps to a timeout, not a
// stuck request.
func NewStripeClient(client *pkgstripe.Client) StripePaymentClient {
	if client == nil {
		return nil
	}
	return &stripeClientWrapper{client: client}
}

func (w *stripeClientWrapper) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params != nil {
		params.Context = callCtx
	}
	return paymentintent.New(params)
}

func (w *stripeClientWrapper) GetIntent(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = callCtx
	return paymentintent.Get(id, params)
}

func (w *stripeClientWrapper) CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params != nil {
		params.Context = callCtx
	}
	return account.New(params)
}

func (w *stripeClientWrapper) CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	callCtx, cancel := w.client.CallContext(ctx)
	defer cancel()
	if params != nil {
		params.Context = callCtx
	}
	return accountlink.New(params)
}
