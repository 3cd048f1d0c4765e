package checkout

import (
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/services/cart"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

type service struct {
	sessionStore  mystore.Store[CheckoutSession]
	cartStore     mystore.Store[cart.Cart]
	intentCreator IntentCreator
	pricing       checkoutapi.Pricing
	nower         mytime.Nower
	logger        mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(sessionStore mystore.Store[CheckoutSession], cartStore mystore.Store[cart.Cart], intentCreator IntentCreator, pricing checkoutapi.Pricing, nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		sessionStore:  sessionStore,
		cartStore:     cartStore,
		intentCreator: intentCreator,
		pricing:       pricing,
		nower:         nower,
		logger:        logger,
	}
}
