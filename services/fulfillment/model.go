package fulfillment

import (
	"time"

	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

// Order is the durable record of a paid checkout, keyed by the checkout uid
// so that replayed completion events cannot create duplicates
type Order struct {
	UID           string
	CheckoutUID   string
	CreatedAt     time.Time
	PaidAt        time.Time
	Buyer         checkoutapi.CheckoutForm
	Lines         []checkoutapi.LineItem
	Quote         checkoutapi.Quote
	Currency      string
	PaymentMethod string
	Downloads     []Download
}

// Download is a minted access link for a digital line of an order
type Download struct {
	Token      string
	ProductUID string
	Title      string
}

// DownloadToken makes a token independently resolvable
type DownloadToken struct {
	Token      string
	OrderUID   string
	ProductUID string
	Title      string
	CreatedAt  time.Time
}

type DownloadResponse struct {
	ProductUID string
	Title      string
	AssetURL   string
}
