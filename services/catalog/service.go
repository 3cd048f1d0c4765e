package catalog

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/lib/mystore"
	"github.com/MarcGrol/shopcheckout/lib/mytime"
)

type service struct {
	productStore mystore.Store[Product]
	nower        mytime.Nower
	logger       mylog.Logger
}

// Use dependency injection to isolate the infrastructure and easy testing
func newService(store mystore.Store[Product], nower mytime.Nower, logger mylog.Logger) *service {
	return &service{
		productStore: store,
		nower:        nower,
		logger:       logger,
	}
}

func (s *service) listProducts(c context.Context) ([]Product, error) {
	s.logger.Log(c, "", mylog.SeverityInfo, "Fetch all products")

	products, err := s.productStore.List(c)
	if err != nil {
		return nil, myerrors.NewInternalError(err)
	}

	return products, nil
}

func (s *service) getProduct(c context.Context, slug string) (Product, error) {
	s.logger.Log(c, slug, mylog.SeverityInfo, "Fetch details of product %s", slug)

	product, found, err := s.productStore.Get(c, slug)
	if err != nil {
		return Product{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Product{}, myerrors.NewNotFoundError(fmt.Errorf("product with slug %s not found", slug))
	}

	return product, nil
}

// seed fills an empty store with the demo catalog
func (s *service) seed(c context.Context) error {
	return s.productStore.RunInTransaction(c, func(c context.Context) error {
		existing, err := s.productStore.List(c)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if len(existing) > 0 {
			return nil
		}

		for _, p := range defaultCatalog(s.nower) {
			err := s.productStore.Put(c, p.UID, p)
			if err != nil {
				return myerrors.NewInternalError(err)
			}
		}
		return nil
	})
}

func defaultCatalog(nower mytime.Nower) []Product {
	now := nower.Now()
	return []Product{
		{
			UID:          "tennis-racket-pro",
			Title:        "Tennis racket",
			Description:  "Babolat Pure Strike 98",
			PriceInCents: 23000,
			Currency:     "EUR",
			Stock:        12,
			Type:         ProductTypePhysical,
			ThumbnailURL: "/static/img/racket.jpg",
			CreatedAt:    now,
		},
		{
			UID:              "tennis-balls-4pack",
			Title:            "Tennis balls",
			Description:      "Dunlop Fort All Court, 4 pack",
			PriceInCents:     1200,
			SalePriceInCents: 1000,
			Currency:         "EUR",
			Stock:            100,
			Type:             ProductTypePhysical,
			ThumbnailURL:     "/static/img/balls.jpg",
			CreatedAt:        now,
		},
		{
			UID:          "serve-masterclass",
			Title:        "Serve masterclass",
			Description:  "Video course on the modern serve, 2h30",
			PriceInCents: 1500,
			Currency:     "EUR",
			Type:         ProductTypeDigital,
			ThumbnailURL: "/static/img/serve.jpg",
			CreatedAt:    now,
		},
		{
			UID:              "footwork-ebook",
			Title:            "Footwork patterns e-book",
			Description:      "120 pages of court movement drills",
			PriceInCents:     2000,
			SalePriceInCents: 1500,
			Currency:         "EUR",
			Type:             ProductTypeDigital,
			ThumbnailURL:     "/static/img/footwork.jpg",
			CreatedAt:        now,
		},
	}
}
