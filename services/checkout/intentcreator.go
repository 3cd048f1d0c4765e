package checkout

import (
	"context"

	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

// IntentCreator abstracts the payment service so that this service does
// not have to call its own http endpoint
//
//go:generate mockgen -source=intentcreator.go -package checkout -destination intentcreator_mock.go IntentCreator
type IntentCreator interface {
	CreateIntent(c context.Context, req checkoutapi.CheckoutRequest) (string, error)
}
