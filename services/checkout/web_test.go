package checkout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/services/cart"
	"github.com/MarcGrol/shopcheckout/services/catalog"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
)

func physicalCart() cart.Cart {
	c := cart.Cart{UID: "cart-phys", Currency: "EUR"}
	c.AddLine(cart.CartLine{ProductUID: "tennis-balls-4pack", Title: "Tennis balls (4-pack)", PriceInCents: 1000, Quantity: 4, Type: catalog.ProductTypePhysical})
	return c
}

func digitalCart() cart.Cart {
	c := cart.Cart{UID: "cart-digi", Currency: "EUR"}
	c.AddLine(cart.CartLine{ProductUID: "serve-masterclass", Title: "Serve masterclass video", PriceInCents: 1500, Quantity: 1, Type: catalog.ProductTypeDigital})
	return c
}

func validContact() url.Values {
	values := url.Values{}
	values.Set("contact.email", "eva@example.com")
	values.Set("contact.firstName", "Eva")
	values.Set("contact.lastName", "de Vries")
	values.Set("contact.phone", "+31612345678")
	return values
}

func validShipping() url.Values {
	values := url.Values{}
	values.Set("shipping.street", "Heemdstrakwartier")
	values.Set("shipping.houseNumber", "79")
	values.Set("shipping.postalCode", "3731TB")
	values.Set("shipping.city", "De Bilt")
	values.Set("shipping.country", "NL")
	return values
}

func TestStartCheckout(t *testing.T) {

	t.Run("Physical cart starts a three-step checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, _ := setup(t, ctrl)

		// given
		_ = cartStore.Put(ctx, "cart-phys", physicalCart())

		// when
		response := doGet(t, router, "/checkout/cart-phys")

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Step 1 of 3")
		session, exists, _ := sessionStore.Get(ctx, "cart-phys")
		assert.True(t, exists)
		assert.Equal(t, StateContactInfo, session.State)
		assert.Equal(t, int64(4900), session.Quote.TotalInCents)
		assert.Equal(t, "NL", session.Form.Shipping.Country)
	})

	t.Run("Digital-only cart starts a two-step checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, _ := setup(t, ctrl)

		// given
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())

		// when
		response := doGet(t, router, "/checkout/cart-digi")

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Step 1 of 2")
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, int64(1500), session.Quote.TotalInCents)
		assert.Equal(t, int64(0), session.Quote.ShippingInCents)
	})

	t.Run("Empty cart renders terminal page without creating a session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, _ := setup(t, ctrl)

		// given
		_ = cartStore.Put(ctx, "cart-empty", cart.Cart{UID: "cart-empty", Currency: "EUR"})

		// when
		response := doGet(t, router, "/checkout/cart-empty")

		// then
		assert.Equal(t, 200, response.Code)
		assert.Contains(t, response.Body.String(), "Your cart is empty")
		_, exists, _ := sessionStore.Get(ctx, "cart-empty")
		assert.False(t, exists)
	})

	t.Run("Unknown cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _ := setup(t, ctrl)

		// when
		response := doGet(t, router, "/checkout/unknown")

		// then
		assert.Equal(t, 404, response.Code)
	})
}

func TestSubmitSteps(t *testing.T) {

	t.Run("Missing contact fields are rendered inline and do not advance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, _ := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-phys", physicalCart())
		doGet(t, router, "/checkout/cart-phys")

		// when: only an email, nothing else
		values := url.Values{}
		values.Set("contact.email", "eva@example.com")
		response := doPost(t, router, "/checkout/cart-phys/contact", values)

		// then
		assert.Equal(t, 400, response.Code)
		assert.Contains(t, response.Body.String(), "is required")
		session, _, _ := sessionStore.Get(ctx, "cart-phys")
		assert.Equal(t, StateContactInfo, session.State)
	})

	t.Run("Digital checkout jumps from contact-info straight to payment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		doGet(t, router, "/checkout/cart-digi")

		// given: the one and only intent request
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req checkoutapi.CheckoutRequest) (string, error) {
				assert.Equal(t, "cart-digi", req.CheckoutUID)
				assert.True(t, req.IsDigital)
				assert.Equal(t, int64(1500), req.TotalInCents)
				return "pi_digi_secret", nil
			}).Times(1)

		// when
		response := doPost(t, router, "/checkout/cart-digi/contact", validContact())

		// then
		assert.Equal(t, 303, response.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StatePayment, session.State)

		// when: render the payment page twice
		first := doGet(t, router, "/checkout/cart-digi")
		second := doGet(t, router, "/checkout/cart-digi")

		// then: intent requested exactly once
		assert.Contains(t, first.Body.String(), "pi_digi_secret")
		assert.Contains(t, second.Body.String(), "pi_digi_secret")
	})

	t.Run("Physical checkout goes through the shipping step", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-phys", physicalCart())
		doGet(t, router, "/checkout/cart-phys")

		// when
		contactResponse := doPost(t, router, "/checkout/cart-phys/contact", validContact())

		// then
		assert.Equal(t, 303, contactResponse.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-phys")
		assert.Equal(t, StateShipping, session.State)
		assert.Contains(t, doGet(t, router, "/checkout/cart-phys").Body.String(), "Step 2 of 3")

		// given
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req checkoutapi.CheckoutRequest) (string, error) {
				assert.False(t, req.IsDigital)
				assert.Equal(t, int64(4900), req.TotalInCents)
				return "pi_phys_secret", nil
			})

		// when
		shippingResponse := doPost(t, router, "/checkout/cart-phys/shipping", validShipping())

		// then
		assert.Equal(t, 303, shippingResponse.Code)
		assert.Contains(t, doGet(t, router, "/checkout/cart-phys").Body.String(), "pi_phys_secret")
	})

	t.Run("Earlier steps are frozen once the payment-intent exists", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("pi_secret", nil)
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())
		doGet(t, router, "/checkout/cart-digi")

		// when: re-submitting contact info with another email
		changed := validContact()
		changed.Set("contact.email", "other@example.com")
		response := doPost(t, router, "/checkout/cart-digi/contact", changed)

		// then: refused, stored email matches the intent's receipt email
		assert.Equal(t, 400, response.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, "eva@example.com", session.Form.Contact.Email)
		assert.Equal(t, StatePayment, session.State)
	})

	t.Run("Shipping submit on digital checkout is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, _, cartStore, _ := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		doGet(t, router, "/checkout/cart-digi")

		// when
		response := doPost(t, router, "/checkout/cart-digi/shipping", validShipping())

		// then
		assert.Equal(t, 400, response.Code)
	})
}

func TestPaymentIntent(t *testing.T) {

	t.Run("Failed intent request shows generic error and can be retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())

		// given: provider down on first attempt, fine on second
		gomock.InOrder(
			intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("", assert.AnError),
			intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("pi_retry_secret", nil),
		)

		// when
		failed := doGet(t, router, "/checkout/cart-digi")

		// then: generic message, no provider details
		assert.Equal(t, 200, failed.Code)
		assert.Contains(t, failed.Body.String(), "Something went wrong")
		assert.NotContains(t, failed.Body.String(), assert.AnError.Error())
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.False(t, session.IntentRequested)
		assert.Equal(t, StatePayment, session.State)

		// when: retry
		retried := doGet(t, router, "/checkout/cart-digi")

		// then
		assert.Contains(t, retried.Body.String(), "pi_retry_secret")
	})
}

func TestConfirm(t *testing.T) {

	t.Run("Successful payment completes the checkout and empties the cart", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("pi_secret", nil)
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())
		doGet(t, router, "/checkout/cart-digi")

		// when
		response := doGet(t, router, "/checkout/cart-digi/confirm?status=succeeded")

		// then
		assert.Equal(t, 303, response.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StateComplete, session.State)
		assert.True(t, session.OrderComplete)
		emptiedCart, _, _ := cartStore.Get(ctx, "cart-digi")
		assert.True(t, emptiedCart.IsEmpty())

		// and the completed page is rendered
		assert.Contains(t, doGet(t, router, "/checkout/cart-digi").Body.String(), "Thank you for your order")
	})

	t.Run("Failed payment stays on the payment step with the provider message", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("pi_secret", nil).Times(1)
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())
		doGet(t, router, "/checkout/cart-digi")

		// when
		response := doGet(t, router, "/checkout/cart-digi/confirm?status=failed&message="+url.QueryEscape("Your card was declined."))

		// then
		assert.Equal(t, 303, response.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StatePayment, session.State)
		assert.False(t, session.OrderComplete)

		// the payment page shows the message, with the existing intent intact
		paymentPage := doGet(t, router, "/checkout/cart-digi")
		assert.Contains(t, paymentPage.Body.String(), "Your card was declined.")
		assert.Contains(t, paymentPage.Body.String(), "pi_secret")

		// and the cart was not emptied
		keptCart, _, _ := cartStore.Get(ctx, "cart-digi")
		assert.False(t, keptCart.IsEmpty())
	})

	t.Run("Forged confirmation before the payment step is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, _ := setup(t, ctrl)

		// given: checkout started but still collecting contact info
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		doGet(t, router, "/checkout/cart-digi")
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StateContactInfo, session.State)
		assert.Empty(t, session.ClientSecret)

		// when: shopper forges the return-url of the payment sdk
		response := doGet(t, router, "/checkout/cart-digi/confirm?status=succeeded")

		// then: session untouched, cart untouched
		assert.Equal(t, 400, response.Code)
		session, _, _ = sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StateContactInfo, session.State)
		assert.False(t, session.OrderComplete)
		keptCart, _, _ := cartStore.Get(ctx, "cart-digi")
		assert.False(t, keptCart.IsEmpty())
	})

	t.Run("Confirmation without a payment-intent is refused", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)

		// given: payment step reached but the intent request failed
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("", assert.AnError)
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())
		doGet(t, router, "/checkout/cart-digi")
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StatePayment, session.State)
		assert.Empty(t, session.ClientSecret)

		// when
		response := doGet(t, router, "/checkout/cart-digi/confirm?status=succeeded")

		// then
		assert.Equal(t, 400, response.Code)
		session, _, _ = sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StatePayment, session.State)
		assert.False(t, session.OrderComplete)
	})

	t.Run("Duplicate success confirmation is idempotent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, sessionStore, cartStore, intentCreator := setup(t, ctrl)
		_ = cartStore.Put(ctx, "cart-digi", digitalCart())
		intentCreator.EXPECT().CreateIntent(gomock.Any(), gomock.Any()).Return("pi_secret", nil)
		doGet(t, router, "/checkout/cart-digi")
		doPost(t, router, "/checkout/cart-digi/contact", validContact())
		doGet(t, router, "/checkout/cart-digi")

		// when
		doGet(t, router, "/checkout/cart-digi/confirm?status=succeeded")
		response := doGet(t, router, "/checkout/cart-digi/confirm?status=succeeded")

		// then
		assert.Equal(t, 303, response.Code)
		session, _, _ := sessionStore.Get(ctx, "cart-digi")
		assert.Equal(t, StateComplete, session.State)
	})
}

func doGet(t *testing.T, router *mux.Router, path string) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodGet, path, nil)
	assert.NoError(t, err)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func doPost(t *testing.T, router *mux.Router, path string, values url.Values) *httptest.ResponseRecorder {
	request, err := http.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	assert.NoError(t, err)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	return response
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[CheckoutSession], mystore.Store[cart.Cart], *MockIntentCreator) {
	c := context.TODO()
	sessionStore, _, _ := mystore.NewInMemoryStore[CheckoutSession](c)
	cartStore, _, _ := mystore.NewInMemoryStore[cart.Cart](c)
	intentCreator := NewMockIntentCreator(ctrl)
	nower := mytime.NewMockNower(ctrl)
	nower.EXPECT().Now().Return(mytime.ExampleTime).AnyTimes()

	sut := NewWebService(sessionStore, cartStore, intentCreator, checkoutapi.DefaultPricing(), nower)
	router := mux.NewRouter()
	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, sessionStore, cartStore, intentCreator
}
