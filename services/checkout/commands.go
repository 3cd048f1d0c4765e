package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/services/cart"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

var errEmptyCart = errors.New("cart is empty")

// Shown when the payment provider could not be reached. Deliberately
// vague: provider internals must not reach the shopper.
const paymentSetupFailedMessage = "Something went wrong while preparing your payment. Please try again."

const paymentStatusSucceeded = "succeeded"

// startCheckout creates a new checkout session for the cart or resumes
// the existing one. A checkout on an empty cart is refused.
func (s *service) startCheckout(c context.Context, cartUID string) (CheckoutSession, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Start checkout for cart %s", cartUID)

	session, found, err := s.sessionStore.Get(c, cartUID)
	if err != nil {
		return CheckoutSession{}, myerrors.NewInternalError(err)
	}
	if found {
		return session, nil
	}

	shoppingCart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		return CheckoutSession{}, myerrors.NewInternalError(err)
	}
	if !found {
		return CheckoutSession{}, myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
	}
	if shoppingCart.IsEmpty() {
		return CheckoutSession{}, errEmptyCart
	}

	hasPhysical := shoppingCart.HasPhysicalItems()

	session = CheckoutSession{
		UID:         cartUID,
		CartUID:     cartUID,
		CreatedAt:   s.nower.Now(),
		State:       StateContactInfo,
		HasPhysical: hasPhysical,
		Currency:    s.pricing.Currency,
		Lines:       toLineItems(shoppingCart.Items),
		Quote:       s.pricing.Quote(shoppingCart.TotalInCents, hasPhysical),
	}
	if hasPhysical {
		session.Form.Shipping.Country = s.pricing.DefaultCountry
	}

	err = s.sessionStore.Put(c, cartUID, session)
	if err != nil {
		return CheckoutSession{}, myerrors.NewInternalError(err)
	}

	return session, nil
}

// submitContact stores the contact info on the session. Violations are
// returned for inline rendering and never advance the step.
func (s *service) submitContact(c context.Context, checkoutUID string, form checkoutapi.CheckoutForm) (CheckoutSession, map[string]string, error) {
	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Submit contact-info for checkout %s", checkoutUID)

	var session CheckoutSession
	var violations map[string]string
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		session, found, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}
		if session.State == StateComplete {
			return myerrors.NewInvalidInputErrorf("checkout %s has already completed", checkoutUID)
		}
		// Once the intent exists, the provider already holds the buyer
		// details: the earlier steps are frozen
		if session.ClientSecret != "" {
			return myerrors.NewInvalidInputErrorf("checkout %s is already awaiting payment", checkoutUID)
		}

		violations = form.ValidateContact(session.HasPhysical)
		if len(violations) > 0 {
			session.Form.Contact = form.Contact
			return nil
		}

		now := s.nower.Now()
		session.Form.Contact = form.Contact
		session.LastModified = &now
		if session.State == StateContactInfo {
			session.advance()
		}

		return s.sessionStore.Put(c, checkoutUID, session)
	})
	if err != nil {
		return CheckoutSession{}, nil, err
	}

	return session, violations, nil
}

func (s *service) submitShipping(c context.Context, checkoutUID string, form checkoutapi.CheckoutForm) (CheckoutSession, map[string]string, error) {
	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Submit shipping-address for checkout %s", checkoutUID)

	var session CheckoutSession
	var violations map[string]string
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		session, found, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}
		if !session.HasPhysical {
			return myerrors.NewInvalidInputErrorf("checkout %s does not need shipping", checkoutUID)
		}
		if session.State == StateComplete {
			return myerrors.NewInvalidInputErrorf("checkout %s has already completed", checkoutUID)
		}
		if session.ClientSecret != "" {
			return myerrors.NewInvalidInputErrorf("checkout %s is already awaiting payment", checkoutUID)
		}

		violations = form.ValidateShipping()
		if len(violations) > 0 {
			session.Form.Shipping = form.Shipping
			return nil
		}

		now := s.nower.Now()
		session.Form.Shipping = form.Shipping
		session.LastModified = &now
		if session.State == StateShipping {
			session.advance()
		}

		return s.sessionStore.Put(c, checkoutUID, session)
	})
	if err != nil {
		return CheckoutSession{}, nil, err
	}

	return session, violations, nil
}

// ensureIntent requests a payment-intent for a session that has reached
// the payment step. The IntentRequested flag guarantees at most one
// in-flight request: re-entering the payment page while a request is
// running, or after it succeeded, does not trigger a second one.
func (s *service) ensureIntent(c context.Context, checkoutUID string) (CheckoutSession, error) {
	var session CheckoutSession
	needIntent := false
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		session, found, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}

		if session.State != StatePayment || session.ClientSecret != "" || session.IntentRequested {
			return nil
		}

		// claim the request before performing it
		session.IntentRequested = true
		session.LastError = ""
		needIntent = true
		return s.sessionStore.Put(c, checkoutUID, session)
	})
	if err != nil {
		return CheckoutSession{}, err
	}
	if !needIntent {
		return session, nil
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Requesting payment-intent for checkout %s", checkoutUID)

	// The call to the payment service is kept outside the transaction
	clientSecret, intentErr := s.intentCreator.CreateIntent(c, checkoutapi.CheckoutRequest{
		CheckoutUID:  checkoutUID,
		FormData:     session.Form,
		Items:        session.Lines,
		IsDigital:    session.IsDigital(),
		TotalInCents: session.Quote.TotalInCents,
	})

	err = s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		session, found, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}

		now := s.nower.Now()
		session.LastModified = &now
		if intentErr != nil {
			// release the claim so the shopper can retry
			session.IntentRequested = false
			session.LastError = paymentSetupFailedMessage
		} else {
			session.ClientSecret = clientSecret
			session.LastError = ""
		}

		return s.sessionStore.Put(c, checkoutUID, session)
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	if intentErr != nil {
		s.logger.Log(c, checkoutUID, mylog.SeverityError, "Error requesting payment-intent for checkout %s: %s", checkoutUID, intentErr)
	}

	return session, nil
}

// confirmResult handles the redirect back from the payment provider.
// Success completes the checkout and empties the cart, failure keeps the
// shopper on the payment step with the provider's message.
func (s *service) confirmResult(c context.Context, checkoutUID string, status string, message string) (CheckoutSession, error) {
	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Redirect: checkout %s finalized with status %s", checkoutUID, status)

	now := s.nower.Now()

	var session CheckoutSession
	err := s.sessionStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		var found bool
		var err error
		session, found, err = s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}

		if status != paymentStatusSucceeded {
			if session.State == StatePayment {
				session.LastError = message
				if session.LastError == "" {
					session.LastError = fmt.Sprintf("Payment %s. Please try again.", status)
				}
				session.LastModified = &now
				return s.sessionStore.Put(c, checkoutUID, session)
			}
			return nil
		}

		if session.OrderComplete {
			return nil
		}

		// Only a session that actually reached the payment step with an
		// intent in place can be completed: the redirect is shopper
		// controllable and must not be able to skip ahead
		if session.State != StatePayment || session.ClientSecret == "" {
			return myerrors.NewInvalidInputErrorf("checkout %s has no payment to confirm", checkoutUID)
		}

		session.State = StateComplete
		session.OrderComplete = true
		session.LastError = ""
		session.LastModified = &now

		err = s.sessionStore.Put(c, checkoutUID, session)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return s.clearCart(c, session.CartUID, now)
	})
	if err != nil {
		return CheckoutSession{}, err
	}

	return session, nil
}

func (s *service) clearCart(c context.Context, cartUID string, now time.Time) error {
	shoppingCart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		return myerrors.NewInternalError(err)
	}
	if !found {
		// already gone, nothing to clear
		return nil
	}

	shoppingCart.Clear()
	shoppingCart.LastModified = &now

	err = s.cartStore.Put(c, cartUID, shoppingCart)
	if err != nil {
		return myerrors.NewInternalError(err)
	}

	return nil
}

func toLineItems(lines []cart.CartLine) []checkoutapi.LineItem {
	items := make([]checkoutapi.LineItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, checkoutapi.LineItem{
			ProductUID:   line.ProductUID,
			Title:        line.Title,
			PriceInCents: line.PriceInCents,
			Quantity:     line.Quantity,
			Type:         string(line.Type),
		})
	}
	return items
}
