package fulfillment

import (
	"context"
	"fmt"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/services/catalog"
)

// recordOrder persists the order for a successfully paid checkout and mints
// a download token for every digital line. Keyed by checkout uid: a replayed
// completion event finds the existing order and leaves it untouched.
func (s *service) recordOrder(c context.Context, checkoutUID string, paymentMethod string) error {
	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Recording order for checkout %s", checkoutUID)

	now := s.nower.Now()

	return s.orderStore.RunInTransaction(c, func(c context.Context) error {
		// must be idempotent

		_, exists, err := s.orderStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if exists {
			return nil
		}

		session, found, err := s.sessionStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(err)
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("checkout with uid %s not found", checkoutUID))
		}

		order := Order{
			UID:           checkoutUID,
			CheckoutUID:   checkoutUID,
			CreatedAt:     now,
			PaidAt:        now,
			Buyer:         session.Form,
			Lines:         session.Lines,
			Quote:         session.Quote,
			Currency:      session.Currency,
			PaymentMethod: paymentMethod,
		}

		for _, line := range session.Lines {
			if line.Type != string(catalog.ProductTypeDigital) {
				continue
			}

			token := DownloadToken{
				Token:      s.uuider.Create(),
				OrderUID:   order.UID,
				ProductUID: line.ProductUID,
				Title:      line.Title,
				CreatedAt:  now,
			}
			err = s.tokenStore.Put(c, token.Token, token)
			if err != nil {
				return myerrors.NewInternalError(err)
			}

			order.Downloads = append(order.Downloads, Download{
				Token:      token.Token,
				ProductUID: token.ProductUID,
				Title:      token.Title,
			})
		}

		err = s.orderStore.Put(c, order.UID, order)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		return nil
	})
}

func (s *service) getOrder(c context.Context, orderUID string) (Order, error) {
	s.logger.Log(c, orderUID, mylog.SeverityInfo, "Fetch details of order %s", orderUID)

	order, found, err := s.orderStore.Get(c, orderUID)
	if err != nil {
		return Order{}, myerrors.NewInternalError(err)
	}
	if !found {
		return Order{}, myerrors.NewNotFoundError(fmt.Errorf("order with uid %s not found", orderUID))
	}

	return order, nil
}

func (s *service) resolveDownload(c context.Context, tokenUID string) (DownloadResponse, error) {
	token, found, err := s.tokenStore.Get(c, tokenUID)
	if err != nil {
		return DownloadResponse{}, myerrors.NewInternalError(err)
	}
	if !found {
		return DownloadResponse{}, myerrors.NewNotFoundError(fmt.Errorf("unknown download token"))
	}

	return DownloadResponse{
		ProductUID: token.ProductUID,
		Title:      token.Title,
		AssetURL:   fmt.Sprintf("/assets/%s", token.ProductUID),
	}, nil
}
