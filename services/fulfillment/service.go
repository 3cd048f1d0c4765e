package fulfillment

import (
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mypubsub"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/checkout"
)

type service struct {
	orderStore   mystore.Store[Order]
	tokenStore   mystore.Store[DownloadToken]
	sessionStore mystore.Store[checkout.CheckoutSession]
	subscriber   mypubsub.PubSub
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(orderStore mystore.Store[Order], tokenStore mystore.Store[DownloadToken], sessionStore mystore.Store[checkout.CheckoutSession], subscriber mypubsub.PubSub, nower mytime.Nower, uuider myuuid.UUIDer, logger mylog.Logger) *service {
	return &service{
		orderStore:   orderStore,
		tokenStore:   tokenStore,
		sessionStore: sessionStore,
		subscriber:   subscriber,
		nower:        nower,
		uuider:       uuider,
		logger:       logger,
	}
}
