package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74"
	"go.uber.org/mock/gomock"

	"github.com/MarcGrol/shopcheckout/lib/mypublisher"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/catalog"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
	"github.com/MarcGrol/shopcheckout/services/checkoutevents"
)

var (
	balls = catalog.Product{
		UID:              "tennis-balls-4pack",
		Title:            "Tennis balls (4-pack)",
		PriceInCents:     1200,
		SalePriceInCents: 1000,
		Currency:         "EUR",
		Stock:            100,
		Type:             catalog.ProductTypePhysical,
	}
	masterclass = catalog.Product{
		UID:          "serve-masterclass",
		Title:        "Serve masterclass video",
		PriceInCents: 1500,
		Currency:     "EUR",
		Type:         catalog.ProductTypeDigital,
	}
)

func TestCreateIntent(t *testing.T) {

	t.Run("Digital-only checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, paymentStore, payer, publisher, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		payer.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params *stripe.PaymentIntentParams) (stripe.PaymentIntent, error) {
				assert.Equal(t, int64(1500), *params.Amount)
				assert.Equal(t, "EUR", *params.Currency)
				assert.Equal(t, "checkout-123", params.Metadata["checkoutUID"])
				return stripe.PaymentIntent{
					ID:           "pi_123",
					ClientSecret: "pi_123_secret_456",
					Amount:       1500,
					Currency:     "eur",
				}, nil
			})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutStarted{
			CheckoutUID:   "checkout-123",
			AmountInCents: 1500,
			Currency:      "eur",
			DigitalOnly:   true,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-123",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries"}
			},
			"items": [{"id": "serve-masterclass", "title": "Serve masterclass video", "price": 1500, "quantity": 1, "type": "digital"}],
			"isDigital": true,
			"total": 1500
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		got := checkoutapi.CheckoutResponse{}
		_ = json.Unmarshal(response.Body.Bytes(), &got)
		assert.Equal(t, "pi_123_secret_456", got.ClientSecret)

		stored, exists, _ := paymentStore.Get(ctx, "checkout-123")
		assert.True(t, exists)
		assert.Equal(t, "pi_123", stored.IntentID)
		assert.Equal(t, int64(1500), stored.AmountInCents)
		assert.True(t, stored.DigitalOnly)
	})

	t.Run("Physical checkout adds shipping and tax", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, payer, publisher, nower := setup(t, ctrl)

		// given: 4 x 1000 = 4000 subtotal, 500 shipping, 400 tax
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		payer.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, params *stripe.PaymentIntentParams) (stripe.PaymentIntent, error) {
				assert.Equal(t, int64(4900), *params.Amount)
				return stripe.PaymentIntent{ID: "pi_456", ClientSecret: "pi_456_secret", Amount: 4900, Currency: "eur"}, nil
			})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-456",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries", "phone": "+31612345678"},
				"shipping": {"street": "Heemdstrakwartier", "houseNumber": "79", "postalCode": "3731TB", "city": "De Bilt", "country": "NL"}
			},
			"items": [{"id": "tennis-balls-4pack", "title": "Tennis balls (4-pack)", "price": 1000, "quantity": 4, "type": "physical"}],
			"isDigital": false,
			"total": 4900
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("Tampered total is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when: client claims a total of 1 cent
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-123",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries"}
			},
			"items": [{"id": "serve-masterclass", "title": "Serve masterclass video", "price": 1, "quantity": 1, "type": "digital"}],
			"isDigital": true,
			"total": 1
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Missing shipping fields on physical checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-456",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries"}
			},
			"items": [{"id": "tennis-balls-4pack", "title": "Tennis balls (4-pack)", "price": 1000, "quantity": 4, "type": "physical"}],
			"isDigital": false,
			"total": 4900
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
		got := struct {
			FieldErrors map[string]string
		}{}
		_ = json.Unmarshal(response.Body.Bytes(), &got)
		assert.Contains(t, got.FieldErrors, "contact.phone")
		assert.Contains(t, got.FieldErrors, "shipping.street")
	})

	t.Run("Checkout without items is rejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-123",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries"}
			},
			"items": [],
			"isDigital": true,
			"total": 0
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 400, response.Code)
	})

	t.Run("Provider error does not leak details", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, paymentStore, payer, _, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		payer.EXPECT().CreatePaymentIntent(gomock.Any(), gomock.Any()).
			Return(stripe.PaymentIntent{}, assert.AnError)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(`{
			"checkoutUid": "checkout-123",
			"formData": {
				"contact": {"email": "eva@example.com", "firstName": "Eva", "lastName": "de Vries"}
			},
			"items": [{"id": "serve-masterclass", "title": "Serve masterclass video", "price": 1500, "quantity": 1, "type": "digital"}],
			"isDigital": true,
			"total": 1500
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 500, response.Code)
		assert.NotContains(t, response.Body.String(), assert.AnError.Error())

		_, exists, _ := paymentStore.Get(ctx, "checkout-123")
		assert.False(t, exists)
	})
}

func TestWebhookNotification(t *testing.T) {

	const webhookPayload = `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"metadata": {"checkoutUID": "checkout-123"},
				"payment_method_types": ["ideal"]
			}
		}
	}`

	t.Run("Successful payment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, paymentStore, _, publisher, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = paymentStore.Put(ctx, "checkout-123", PaymentContext{
			CheckoutUID:   "checkout-123",
			IntentID:      "pi_123",
			AmountInCents: 1500,
		})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:   "checkout-123",
			PaymentMethod: "ideal",
			Status:        "payment_intent.succeeded",
			Success:       true,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/payment/webhook/event", strings.NewReader(webhookPayload))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, exists, _ := paymentStore.Get(ctx, "checkout-123")
		assert.True(t, exists)
		assert.Equal(t, "payment_intent.succeeded", stored.WebhookEventName)
		assert.True(t, stored.WebhookEventSuccess)
		assert.Equal(t, "ideal", stored.PaymentMethod)
	})

	t.Run("Duplicate delivery is ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, paymentStore, _, publisher, nower := setup(t, ctrl)

		// given: first delivery already processed
		nower.EXPECT().Now().Return(mytime.ExampleTime).Times(2)
		_ = paymentStore.Put(ctx, "checkout-123", PaymentContext{
			CheckoutUID: "checkout-123",
			IntentID:    "pi_123",
		})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, gomock.Any()).Return(nil).Times(1)

		// when
		for i := 0; i < 2; i++ {
			request, err := http.NewRequest(http.MethodPost, "/api/payment/webhook/event", strings.NewReader(webhookPayload))
			assert.NoError(t, err)
			response := httptest.NewRecorder()
			router.ServeHTTP(response, request)
			assert.Equal(t, 200, response.Code)
		}

		// then: mock verifies single publish
	})

	t.Run("Failed payment", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		ctx, router, paymentStore, _, publisher, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)
		_ = paymentStore.Put(ctx, "checkout-123", PaymentContext{
			CheckoutUID: "checkout-123",
			IntentID:    "pi_123",
		})
		publisher.EXPECT().Publish(gomock.Any(), checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:   "checkout-123",
			PaymentMethod: "card",
			Status:        "payment_intent.payment_failed",
			Success:       false,
		}).Return(nil)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/payment/webhook/event", strings.NewReader(`{
			"id": "evt_2",
			"type": "payment_intent.payment_failed",
			"data": {
				"object": {
					"metadata": {"checkoutUID": "checkout-123"},
					"payment_method_types": ["card"]
				}
			}
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
		stored, _, _ := paymentStore.Get(ctx, "checkout-123")
		assert.False(t, stored.WebhookEventSuccess)
	})

	t.Run("Unrelated event types are acknowledged and ignored", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, _ := setup(t, ctrl)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/payment/webhook/event", strings.NewReader(`{
			"id": "evt_3",
			"type": "charge.refunded",
			"data": {"object": {}}
		}`))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 200, response.Code)
	})

	t.Run("Unknown checkout", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		// setup
		_, router, _, _, _, nower := setup(t, ctrl)

		// given
		nower.EXPECT().Now().Return(mytime.ExampleTime)

		// when
		request, err := http.NewRequest(http.MethodPost, "/api/payment/webhook/event", strings.NewReader(webhookPayload))
		assert.NoError(t, err)
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)

		// then
		assert.Equal(t, 404, response.Code)
	})
}

func setup(t *testing.T, ctrl *gomock.Controller) (context.Context, *mux.Router, mystore.Store[PaymentContext], *MockPayer, *mypublisher.MockPublisher, *mytime.MockNower) {
	c := context.TODO()
	paymentStore, _, _ := mystore.NewInMemoryStore[PaymentContext](c)
	productStore, _, _ := mystore.NewInMemoryStore[catalog.Product](c)
	payer := NewMockPayer(ctrl)
	publisher := mypublisher.NewMockPublisher(ctrl)
	nower := mytime.NewMockNower(ctrl)
	uuider := myuuid.NewMockUUIDer(ctrl)

	_ = productStore.Put(c, balls.UID, balls)
	_ = productStore.Put(c, masterclass.UID, masterclass)

	payer.EXPECT().UseAPIKey("my-api-key")

	sut := NewWebService("my-api-key", payer, paymentStore, productStore, publisher, nower, uuider, checkoutapi.DefaultPricing())
	router := mux.NewRouter()
	err := sut.RegisterEndpoints(c, router)
	assert.NoError(t, err)

	return c, router, paymentStore, payer, publisher, nower
}
