package cart

import (
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/catalog"
)

type service struct {
	cartStore    mystore.Store[Cart]
	productStore mystore.Store[catalog.Product]
	nower        mytime.Nower
	uuider       myuuid.UUIDer
	currency     string
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(cartStore mystore.Store[Cart], productStore mystore.Store[catalog.Product], nower mytime.Nower, uuider myuuid.UUIDer, currency string, logger mylog.Logger) *service {
	return &service{
		cartStore:    cartStore,
		productStore: productStore,
		nower:        nower,
		uuider:       uuider,
		currency:     currency,
		logger:       logger,
	}
}
