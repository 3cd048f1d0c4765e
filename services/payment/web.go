package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/shopcheckout/lib/mycontext"
	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/myhttp"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mypublisher"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/catalog"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(apiKey string, payer Payer, paymentStore mystore.Store[PaymentContext], productStore mystore.Store[catalog.Product], publisher mypublisher.Publisher, nower mytime.Nower, uuider myuuid.UUIDer, pricing checkoutapi.Pricing) *webService {
	logger := mylog.New("payment")
	return &webService{
		logger:  logger,
		service: newService(apiKey, payer, paymentStore, productStore, publisher, nower, uuider, pricing, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/checkout", s.createIntentPage()).Methods("POST")

	router.HandleFunc("/api/payment/webhook/event", s.webhookNotification()).Methods("POST")

	return nil
}

// CreateIntent exists so that other services can create a payment-intent
// in-process instead of calling the http endpoint
func (s *webService) CreateIntent(c context.Context, req checkoutapi.CheckoutRequest) (string, error) {
	return s.service.createIntent(c, req)
}

func (s *webService) createIntentPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		req := checkoutapi.CheckoutRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		clientSecret, err := s.service.createIntent(c, req)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, checkoutapi.CheckoutResponse{
			ClientSecret: clientSecret,
		})
	}
}

func (s *webService) webhookNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		event := stripe.Event{}
		err := json.NewDecoder(r.Body).Decode(&event)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing webhook event: %s", err)))
			return
		}

		err = s.service.webhookNotification(c, event)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, myhttp.SuccessResponse{})
	}
}
