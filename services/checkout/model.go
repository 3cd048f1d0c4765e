package checkout

import (
	"fmt"
	"time"

	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

type CheckoutState string

const (
	StateContactInfo CheckoutState = "CONTACT_INFO"
	StateShipping    CheckoutState = "SHIPPING"
	StatePayment     CheckoutState = "PAYMENT"
	StateComplete    CheckoutState = "COMPLETE"
)

// CheckoutSession tracks a shopper walking through the checkout steps.
// Keyed by the cart uid so that an abandoned checkout can be resumed.
type CheckoutSession struct {
	UID          string
	CartUID      string
	CreatedAt    time.Time
	LastModified *time.Time
	State        CheckoutState
	HasPhysical  bool
	Currency     string
	Form         checkoutapi.CheckoutForm
	Lines        []checkoutapi.LineItem
	Quote        checkoutapi.Quote

	// Payment-intent bookkeeping
	ClientSecret    string
	IntentRequested bool
	OrderComplete   bool
	LastError       string
}

// TotalSteps is 3 for orders that need shipping, 2 for digital-only orders
func (s CheckoutSession) TotalSteps() int {
	if s.HasPhysical {
		return 3
	}
	return 2
}

func (s CheckoutSession) CurrentStep() int {
	switch s.State {
	case StateContactInfo:
		return 1
	case StateShipping:
		return 2
	default:
		return s.TotalSteps()
	}
}

// advance moves the session to the next step. The shipping step is
// skipped entirely for digital-only orders.
func (s *CheckoutSession) advance() {
	switch s.State {
	case StateContactInfo:
		if s.HasPhysical {
			s.State = StateShipping
		} else {
			s.State = StatePayment
		}
	case StateShipping:
		s.State = StatePayment
	case StatePayment:
		s.State = StateComplete
	}
}

func (s CheckoutSession) IsDigital() bool {
	return !s.HasPhysical
}

func (s CheckoutSession) GetTotalInCurrency() string {
	return formatAmount(s.Currency, s.Quote.TotalInCents)
}

func (s CheckoutSession) GetShippingInCurrency() string {
	return formatAmount(s.Currency, s.Quote.ShippingInCents)
}

func (s CheckoutSession) GetTaxInCurrency() string {
	return formatAmount(s.Currency, s.Quote.TaxInCents)
}

func (s CheckoutSession) GetSubtotalInCurrency() string {
	return formatAmount(s.Currency, s.Quote.SubtotalInCents)
}

func formatAmount(currency string, amountInCents int64) string {
	return fmt.Sprintf("%s %.2f", currency, float64(amountInCents)/100.0)
}
