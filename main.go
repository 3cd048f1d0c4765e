package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/cristalhq/aconfig"
	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcheckout/lib/mypublisher"
	"github.com/MarcGrol/shopcheckout/lib/mypubsub"
	"github.com/MarcGrol/shopcheckout/lib/myqueue"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/cart"
	"github.com/MarcGrol/shopcheckout/services/catalog"
	"github.com/MarcGrol/shopcheckout/services/checkout"
	"github.com/MarcGrol/shopcheckout/services/checkoutapi"
	"github.com/MarcGrol/shopcheckout/services/checkoutevents"
	"github.com/MarcGrol/shopcheckout/services/fulfillment"
	"github.com/MarcGrol/shopcheckout/services/payment"
)

type Config struct {
	Port               int    `default:"8080" usage:"port to listen on"`
	StripeAPIKey       string `env:"STRIPE_API_KEY" usage:"stripe secret api-key"`
	Currency           string `default:"EUR" usage:"iso-4217 currency of the shop"`
	ShippingFeeInCents int64  `default:"500" usage:"flat shipping fee for physical orders"`
	TaxRatePercent     int64  `default:"10" usage:"tax percentage for physical orders"`
	DefaultCountry     string `default:"NL" usage:"pre-selected shipping country"`
}

func main() {
	c := context.Background()

	cfg := Config{}
	err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:        "SHOP",
		AllowUnknownEnvs: true,
	}).Load()
	if err != nil {
		log.Fatalf("Error loading config: %s", err)
	}

	pricing := checkoutapi.Pricing{
		ShippingFeeInCents: cfg.ShippingFeeInCents,
		TaxRatePercent:     cfg.TaxRatePercent,
		Currency:           cfg.Currency,
		DefaultCountry:     cfg.DefaultCountry,
	}

	nower := mytime.RealNower{}
	uuider := myuuid.RealUUIDer{}

	router := mux.NewRouter()

	productStore, productStoreCleanup, err := mystore.New[catalog.Product](c)
	if err != nil {
		log.Fatalf("Error creating product store: %s", err)
	}
	defer productStoreCleanup()

	cartStore, cartStoreCleanup, err := mystore.New[cart.Cart](c)
	if err != nil {
		log.Fatalf("Error creating cart store: %s", err)
	}
	defer cartStoreCleanup()

	sessionStore, sessionStoreCleanup, err := mystore.New[checkout.CheckoutSession](c)
	if err != nil {
		log.Fatalf("Error creating checkout-session store: %s", err)
	}
	defer sessionStoreCleanup()

	paymentStore, paymentStoreCleanup, err := mystore.New[payment.PaymentContext](c)
	if err != nil {
		log.Fatalf("Error creating payment store: %s", err)
	}
	defer paymentStoreCleanup()

	orderStore, orderStoreCleanup, err := mystore.New[fulfillment.Order](c)
	if err != nil {
		log.Fatalf("Error creating order store: %s", err)
	}
	defer orderStoreCleanup()

	tokenStore, tokenStoreCleanup, err := mystore.New[fulfillment.DownloadToken](c)
	if err != nil {
		log.Fatalf("Error creating download-token store: %s", err)
	}
	defer tokenStoreCleanup()

	pubsub, pubsubCleanup, err := mypubsub.New(c)
	if err != nil {
		log.Fatalf("Error creating pubsub: %s", err)
	}
	defer pubsubCleanup()

	queue, queueCleanup, err := myqueue.New(c)
	if err != nil {
		log.Fatalf("Error creating task-queue: %s", err)
	}
	defer queueCleanup()

	publisher, publisherCleanup, err := mypublisher.New(c, pubsub, queue, nower)
	if err != nil {
		log.Fatalf("Error creating publisher: %s", err)
	}
	defer publisherCleanup()
	publisher.RegisterEndpoints(c, router)

	err = publisher.CreateTopic(c, checkoutevents.TopicName)
	if err != nil {
		log.Fatalf("Error creating topic %s: %s", checkoutevents.TopicName, err)
	}

	catalogService := catalog.NewWebService(productStore, nower)
	err = catalogService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering catalog service: %s", err)
	}

	cartService := cart.NewWebService(cartStore, productStore, nower, uuider, cfg.Currency)
	err = cartService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering cart service: %s", err)
	}

	paymentService := payment.NewWebService(cfg.StripeAPIKey, payment.NewPayer(), paymentStore, productStore, publisher, nower, uuider, pricing)
	err = paymentService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering payment service: %s", err)
	}

	checkoutService := checkout.NewWebService(sessionStore, cartStore, paymentService, pricing, nower)
	err = checkoutService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering checkout service: %s", err)
	}

	fulfillmentService := fulfillment.NewWebService(orderStore, tokenStore, sessionStore, pubsub, nower, uuider)
	err = fulfillmentService.RegisterEndpoints(c, router)
	if err != nil {
		log.Fatalf("Error registering fulfillment service: %s", err)
	}

	startWebServerBlocking(router, cfg.Port)
}

func startWebServerBlocking(router *mux.Router, port int) {
	log.Printf("Starting webserver on port %d (try http://localhost:%d)", port, port)
	err := http.ListenAndServe(fmt.Sprintf(":%d", port), router)
	if err != nil {
		log.Fatalf("Error starting webserver on port %d: %s", port, err)
	}
}
