package checkoutapi

// Pricing holds the deterministic order-cost rules: a flat shipping fee and
// a fixed tax percentage, both applied only when the order contains
// physical items.
type Pricing struct {
	ShippingFeeInCents int64
	TaxRatePercent     int64
	Currency           string
	DefaultCountry     string
}

func DefaultPricing() Pricing {
	return Pricing{
		ShippingFeeInCents: 500,
		TaxRatePercent:     10,
		Currency:           "EUR",
		DefaultCountry:     "NL",
	}
}

type Quote struct {
	SubtotalInCents int64
	ShippingInCents int64
	TaxInCents      int64
	TotalInCents    int64
}

func (p Pricing) Quote(subtotalInCents int64, hasPhysicalItems bool) Quote {
	quote := Quote{
		SubtotalInCents: subtotalInCents,
	}

	if hasPhysicalItems {
		quote.ShippingInCents = p.ShippingFeeInCents
		quote.TaxInCents = subtotalInCents * p.TaxRatePercent / 100
	}

	quote.TotalInCents = quote.SubtotalInCents + quote.ShippingInCents + quote.TaxInCents

	return quote
}
