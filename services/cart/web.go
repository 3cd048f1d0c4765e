package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MarcGrol/shopcheckout/lib/mycontext"
	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/myhttp"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
	"github.com/MarcGrol/shopcheckout/lib/myuuid"
	"github.com/MarcGrol/shopcheckout/services/catalog"
)

type webService struct {
	logger  mylog.Logger
	service *service
}

func NewWebService(cartStore mystore.Store[Cart], productStore mystore.Store[catalog.Product], nower mytime.Nower, uuider myuuid.UUIDer, currency string) *webService {
	logger := mylog.New("cart")
	return &webService{
		logger:  logger,
		service: newService(cartStore, productStore, nower, uuider, currency, logger),
	}
}

func (s *webService) RegisterEndpoints(c context.Context, router *mux.Router) error {
	router.HandleFunc("/api/cart", s.createCartPage()).Methods("POST")
	router.HandleFunc("/api/cart/{cartUID}", s.cartDetailPage()).Methods("GET")
	router.HandleFunc("/api/cart/{cartUID}/items", s.addItemPage()).Methods("POST")
	router.HandleFunc("/api/cart/{cartUID}/items", s.clearCartPage()).Methods("DELETE")
	router.HandleFunc("/api/cart/{cartUID}/items/{productUID}", s.updateQuantityPage()).Methods("PUT")
	router.HandleFunc("/api/cart/{cartUID}/items/{productUID}", s.removeItemPage()).Methods("DELETE")

	return nil
}

type addItemRequest struct {
	ProductSlug string `json:"productSlug"`
	Quantity    int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *webService) createCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cart, err := s.service.createCart(c)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusCreated, cart)
	}
}

func (s *webService) cartDetailPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]

		cart, err := s.service.getCart(c, cartUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) addItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]

		req := addItemRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}
		if req.ProductSlug == "" {
			errorWriter.WriteError(c, w, 2, myerrors.NewInvalidInputErrorf("missing productSlug"))
			return
		}

		cart, err := s.service.addProduct(c, cartUID, req.ProductSlug, req.Quantity)
		if err != nil {
			errorWriter.WriteError(c, w, 3, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) updateQuantityPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]
		productUID := mux.Vars(r)["productUID"]

		req := updateQuantityRequest{}
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			errorWriter.WriteError(c, w, 1, myerrors.NewInvalidInputError(fmt.Errorf("error parsing request: %s", err)))
			return
		}

		cart, err := s.service.updateQuantity(c, cartUID, productUID, req.Quantity)
		if err != nil {
			errorWriter.WriteError(c, w, 2, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) removeItemPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]
		productUID := mux.Vars(r)["productUID"]

		cart, err := s.service.removeProduct(c, cartUID, productUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cart)
	}
}

func (s *webService) clearCartPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := mycontext.ContextFromHTTPRequest(r)
		errorWriter := myhttp.NewWriter(s.logger)

		cartUID := mux.Vars(r)["cartUID"]

		cart, err := s.service.clearCart(c, cartUID)
		if err != nil {
			errorWriter.WriteError(c, w, 1, err)
			return
		}

		errorWriter.Write(c, w, http.StatusOK, cart)
	}
}
