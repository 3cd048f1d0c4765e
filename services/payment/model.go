package payment

import "time"

// PaymentContext is what we remember about a payment-intent, keyed by checkout uid
type PaymentContext struct {
	CheckoutUID         string
	CreatedAt           time.Time
	LastModified        *time.Time
	IntentID            string
	ClientSecret        string
	AmountInCents       int64
	Currency            string
	DigitalOnly         bool
	WebhookEventName    string
	WebhookEventSuccess bool
	PaymentMethod       string
}
