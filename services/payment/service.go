package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mypublisher"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/catalog"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
	"github.com/MarcGrol/shopcheckout/services/checkoutevents"
)

type service struct {
	payer        Payer
	paymentStore mystore.Store[PaymentContext]
	productStore mystore.Store[catalog.Product]
	publisher    mypublisher.Publisher
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	pricing      checkoutapi.Pricing
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(apiKey string, payer Payer, paymentStore mystore.Store[PaymentContext], productStore mystore.Store[catalog.Product], publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, pricing checkoutapi.Pricing, logger mylog.Logger) *service {
	payer.UseAPIKey(apiKey)
	return &service{
		payer:        payer,
		paymentStore: paymentStore,
		productStore: productStore,
		publisher:    publisher,
		nower:        nower,
		uuider:       uuider,
		pricing:      pricing,
		logger:       logger,
	}
}

// createIntent validates the submitted checkout, recomputes the total from
// authoritative product prices and creates a payment-intent with the
// payment provider. Returns the client secret.
func (s *service) createIntent(c context.Context, req checkoutapi.CheckoutRequest) (string, error) {
	checkoutUID := req.CheckoutUID
	if checkoutUID == "" {
		checkoutUID = s.uuider.Create()
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Create payment-intent for checkout %s", checkoutUID)

	err := validate(req)
	if err != nil {
		return "", err
	}

	authoritativeTotal, hasPhysical, err := s.recomputeTotal(c, req.Items)
	if err != nil {
		return "", err
	}

	// Never trust the client-computed total: a mismatch with the
	// server-side recomputation is rejected, not honored
	if req.TotalInCents != authoritativeTotal {
		return "", myerrors.NewInvalidInputErrorf(
			"submitted total %d does not match expected total %d", req.TotalInCents, authoritativeTotal)
	}
	if req.IsDigital == hasPhysical {
		return "", myerrors.NewInvalidInputErrorf("isDigital flag does not match submitted items")
	}

	now := s.nower.Now()

	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(authoritativeTotal),
		Currency:     stripe.String(s.pricing.Currency),
		ReceiptEmail: stripe.String(req.FormData.Contact.Email),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	// Correlates the asynchronous webhook with this checkout
	params.AddMetadata("checkoutUID", checkoutUID)

	intent, err := s.payer.CreatePaymentIntent(c, params)
	if err != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityError, "Provider error creating payment-intent for checkout %s: %s", checkoutUID, err)
		// Do not leak provider internals to the caller
		return "", myerrors.NewInternalError(fmt.Errorf("error creating payment-intent"))
	}

	err = s.paymentStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		err := s.paymentStore.Put(c, checkoutUID, PaymentContext{
			CheckoutUID:   checkoutUID,
			CreatedAt:     now,
			IntentID:      intent.ID,
			ClientSecret:  intent.ClientSecret,
			AmountInCents: intent.Amount,
			Currency:      string(intent.Currency),
			DigitalOnly:   req.IsDigital,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error storing payment context: %s", err))
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   checkoutUID,
			AmountInCents: intent.Amount,
			Currency:      string(intent.Currency),
			DigitalOnly:   req.IsDigital,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	return intent.ClientSecret, nil
}

func (s *service) recomputeTotal(c context.Context, items []checkoutapi.LineItem) (int64, bool, error) {
	var subtotal int64
	hasPhysical := false

	for _, item := range items {
		product, found, err := s.productStore.Get(c, item.ProductUID)
		if err != nil {
			return 0, false, myerrors.NewInternalError(err)
		}
		if !found {
			return 0, false, myerrors.NewInvalidInputErrorf("unknown product %s", item.ProductUID)
		}

		quantity := item.Quantity
		if quantity < 1 {
			quantity = 1
		}

		subtotal += product.EffectivePriceInCents() * int64(quantity)
		if product.IsPhysical() {
			hasPhysical = true
		}
	}

	quote := s.pricing.Quote(subtotal, hasPhysical)

	return quote.TotalInCents, hasPhysical, nil
}

func validate(req checkoutapi.CheckoutRequest) error {
	if len(req.Items) == 0 {
		return myerrors.NewInvalidInputErrorf("checkout without items")
	}

	violations := req.FormData.ValidateContact(!req.IsDigital)
	if !req.IsDigital {
		for field, msg := range req.FormData.ValidateShipping() {
			violations[field] = msg
		}
	}
	if len(violations) > 0 {
		return myerrors.NewFieldValidationError(fmt.Errorf("missing required checkout fields"), violations)
	}

	return nil
}
