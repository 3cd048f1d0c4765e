package cart

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/services/catalog"
)

func (s *service) createCart(c context.Context) (Cart, error) {
	cartUID := s.uuider.Create()
	createdAt := s.nower.Now()

	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Creating new cart with uid %s", cartUID)

	cart := Cart{
		UID:       cartUID,
		CreatedAt: createdAt,
		Currency:  s.currency,
		Items:     []CartLine{},
	}

	err := s.cartStore.Put(c, cartUID, cart)
	if err != nil {
		return Cart{}, myerrors.NewInternalError(err)
	}

	return cart, nil
}

func (s *service) getCart(c context.Context, cartUID string) (Cart, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Fetch details of cart %s", cartUID)

	cart, found, err := s.cartStore.Get(c, cartUID)
	if err != nil {
		return Cart{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Cart{}, myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
	}

	return cart, nil
}

func (s *service) addProduct(c context.Context, cartUID string, productSlug string, quantity int) (Cart, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Add product %s (x %d) to cart %s", productSlug, quantity, cartUID)

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
		}

		product, found, err := s.productStore.Get(c, productSlug)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("product with slug %s not found", productSlug))
		}

		quantity, err = clampToStock(cart, product, quantity)
		if err != nil {
			return err
		}

		cart.AddLine(CartLine{
			ProductUID:   product.UID,
			Title:        product.Title,
			PriceInCents: product.EffectivePriceInCents(),
			Quantity:     quantity,
			ThumbnailURL: product.ThumbnailURL,
			Type:         product.Type,
		})
		cart.LastModified = &now

		return s.put(c, cart)
	})
	if err != nil {
		return Cart{}, err
	}

	return cart, nil
}

func (s *service) updateQuantity(c context.Context, cartUID string, productUID string, quantity int) (Cart, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Set quantity of product %s to %d in cart %s", productUID, quantity, cartUID)

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
		}

		// The cart itself has no stock awareness: clamp against the
		// authoritative product here, at the call site
		product, found, err := s.productStore.Get(c, productUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("product with slug %s not found", productUID))
		}
		if product.IsPhysical() && quantity > product.Stock {
			quantity = product.Stock
		}

		cart.SetQuantity(productUID, quantity)
		cart.LastModified = &now

		return s.put(c, cart)
	})
	if err != nil {
		return Cart{}, err
	}

	return cart, nil
}

func (s *service) removeProduct(c context.Context, cartUID string, productUID string) (Cart, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Remove product %s from cart %s", productUID, cartUID)

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
		}

		cart.RemoveLine(productUID)
		cart.LastModified = &now

		return s.put(c, cart)
	})
	if err != nil {
		return Cart{}, err
	}

	return cart, nil
}

func (s *service) clearCart(c context.Context, cartUID string) (Cart, error) {
	s.logger.Log(c, cartUID, mylog.SeverityInfo, "Clear cart %s", cartUID)

	now := s.nower.Now()

	var cart Cart
	err := s.cartStore.RunInTransaction(c, func(c context.Context) error {
		var found bool
		var err error
		cart, found, err = s.cartStore.Get(c, cartUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("cart with uid %s not found", cartUID))
		}

		cart.Clear()
		cart.LastModified = &now

		return s.put(c, cart)
	})
	if err != nil {
		return Cart{}, err
	}

	return cart, nil
}

func (s *service) put(c context.Context, cart Cart) error {
	err := s.cartStore.Put(c, cart.UID, cart)
	if err != nil {
		return myerrors.NewInternalError(err)
	}
	return nil
}

func clampToStock(cart Cart, product catalog.Product, quantity int) (int, error) {
	if quantity < 1 {
		quantity = 1
	}

	if !product.IsPhysical() {
		return quantity, nil
	}

	inCart := 0
	for _, line := range cart.Items {
		if line.ProductUID == product.UID {
			inCart = line.Quantity
		}
	}

	if inCart >= product.Stock {
		return 0, myerrors.NewInvalidInputErrorf("product %s is out of stock", product.UID)
	}
	if inCart+quantity > product.Stock {
		quantity = product.Stock - inCart
	}

	return quantity, nil
}
