package checkout

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcheckout/lib/mycontext"
	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/myhttp"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/services/cart"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

//go:embed templates
var templateFolder embed.FS
var (
	contactPageTemplate   *template.Template
	shippingPageTemplate  *template.Template
	paymentPageTemplate   *template.Template
	completedPageTemplate *template.Template
	emptyCartPageTemplate *template.Template
)

func init() {
	contactPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/contact.html"))
	shippingPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/shipping.html"))
	paymentPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/payment.html"))
	completedPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/completed.html"))
	emptyCartPageTemplate = template.Must(template.ParseFS(templateFolder, "templates/empty_cart.html"))
}

type pageData struct {
	Session    CheckoutSession
	Violations map[string]string
}

type webService struct {
	logger  mylog.Logger
	service *service
}

// Use dependency injection to isolate the infrastructure and easy testing
func NewWebService(sessionStore mystore.Store[CheckoutSession], cartStore mystore.Store[cart.Cart], intentCreator IntentCreator, pricing checkoutapi.Pricing, nower mytime.Nower) *webService {
	logger := mylog.New("checkout")
	return &webService{
		logger:  logger,
		service: newService(sessionStore, cartStore, intentCreator, pricing, nower, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	// Endpoints that compose the user-interface
	router.HandleFunc("/checkout/{cartUID}", s.checkoutPage()).Methods("GET")
	router.HandleFunc("/checkout/{checkoutUID}/contact", s.submitContactPage()).Methods("POST")
	router.HandleFunc("/checkout/{checkoutUID}/shipping", s.submitShippingPage()).Methods("POST")

	// The payment sdk redirects here after the shopper confirmed the payment
	router.HandleFunc("/checkout/{checkoutUID}/confirm", s.confirmPage()).Methods("GET")

	return nil
}

// checkoutPage starts a checkout for the cart or resumes where the
// shopper left off, and renders the page for the current step
func (s *webService) checkoutPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]

		session, err := s.service.startCheckout(c, cartUID)
		if errors.Is(err, errEmptyCart) {
			s.renderPage(c, w, emptyCartPageTemplate, pageData{})
			return
		}
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		if session.State == StatePayment {
			session, err = s.service.ensureIntent(c, session.UID)
			if err != nil {
				errorWriter.WriteError(c, w, 2, err)
				return
			}
		}

		s.renderStep(c, w, session, nil)
	}
}

func (s *webService) submitContactPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		checkoutUID := mux.Vars(r)["checkoutUID"]

		form, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing form: %s", err)))
			return
		}

		session, violations, err := s.service.submitContact(c, checkoutUID, form)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		if len(violations) > 0 {
			w.WriteHeader(http.StatusBadRequest)
			s.renderPage(c, w, contactPageTemplate, pageData{Session: session, Violations: violations})
			return
		}

		http.Redirect(w, r, fmt.Sprintf("/checkout/%s", checkoutUID), http.StatusSeeOther)
	}
}

func (s *webService) submitShippingPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		checkoutUID := mux.Vars(r)["checkoutUID"]

		form, err := checkoutapi.NewFromRequest(r)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing form: %s", err)))
			return
		}

		session, violations, err := s.service.submitShipping(c, checkoutUID, form)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}
		if len(violations) > 0 {
			w.WriteHeader(http.StatusBadRequest)
			s.renderPage(c, w, shippingPageTemplate, pageData{Session: session, Violations: violations})
			return
		}

		http.Redirect(w, r, fmt.Sprintf("/checkout/%s", checkoutUID), http.StatusSeeOther)
	}
}

func (s *webService) confirmPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		checkoutUID := mux.Vars(r)["checkoutUID"]
		status := r.URL.Query().Get("status")
		message := r.URL.Query().Get("message")

		_, err := s.service.confirmResult(c, checkoutUID, status, message)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		http.Redirect(w, r, fmt.Sprintf("/checkout/%s", checkoutUID), http.StatusSeeOther)
	}
}

func (s *webService) renderStep(c context.Context, w http.ResponseWriter, session CheckoutSession, violations map[string]string) {
	data := pageData{Session: session, Violations: violations}

	switch session.State {
	case StateContactInfo:
		s.renderPage(c, w, contactPageTemplate, data)
	case StateShipping:
		s.renderPage(c, w, shippingPageTemplate, data)
	case StatePayment:
		s.renderPage(c, w, paymentPageTemplate, data)
	case StateComplete:
		s.renderPage(c, w, completedPageTemplate, data)
	}
}

func (s *webService) renderPage(c context.Context, w http.ResponseWriter, t *template.Template, data pageData) {
	err := t.Execute(w, data)
	if err != nil {
		s.logger.Log(c, data.Session.UID, mylog.SeverityError, "Error rendering page: %s", err)
	}
}
