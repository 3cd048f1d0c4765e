package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v74"

	"github.com/MarcGrol/shopcheckout/lib/myerrors"
	"github.com/MarcGrol/shopcheckout/lib/mylog"
	"github.com/MarcGrol/shopcheckout/services/checkoutevents"
)

const (
	eventPaymentSucceeded = "payment_intent.succeeded"
	eventPaymentFailed    = "payment_intent.payment_failed"
)

// webhookNotification processes an asynchronous status update from the
// payment provider. Must be idempotent: the provider retries delivery.
func (s *service) webhookNotification(c context.Context, event stripe.Event) error {
	if event.Type != eventPaymentSucceeded && event.Type != eventPaymentFailed {
		s.logger.Log(c, "", mylog.SeverityInfo, "Ignoring webhook event of type %s", event.Type)
		return nil
	}

	checkoutUID, paymentMethod := parseEvent(event)
	if checkoutUID == "" {
		return myerrors.NewInvalidInputErrorf("webhook event %s without checkoutUID metadata", event.ID)
	}

	s.logger.Log(c, checkoutUID, mylog.SeverityInfo, "Webhook: %s on checkout %s", event.Type, checkoutUID)

	now := s.nower.Now()

	return s.paymentStore.RunInTransaction(c, func(c context.Context) error {
		paymentContext, found, err := s.paymentStore.Get(c, checkoutUID)
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error fetching payment context %s: %s", checkoutUID, err))
		}
		if !found {
			return myerrors.NewNotFoundError(fmt.Errorf("payment context %s not found", checkoutUID))
		}

		if paymentContext.WebhookEventName == string(event.Type) {
			// duplicate delivery
			return nil
		}

		paymentContext.WebhookEventName = string(event.Type)
		paymentContext.WebhookEventSuccess = event.Type == eventPaymentSucceeded
		paymentContext.PaymentMethod = paymentMethod
		paymentContext.LastModified = &now

		err = s.paymentStore.Put(c, checkoutUID, paymentContext)
		if err != nil {
			return myerrors.NewInternalError(err)
		}

		err = s.publisher.Publish(c, checkoutevents.TopicName, checkoutevents.CheckoutCompleted{
			CheckoutUID:   checkoutUID,
			PaymentMethod: paymentMethod,
			Status:        string(event.Type),
			Success:       event.Type == eventPaymentSucceeded,
		})
		if err != nil {
			return myerrors.NewInternalError(fmt.Errorf("error publishing event: %s", err))
		}

		return nil
	})
}

func parseEvent(event stripe.Event) (string, string) {
	checkoutUID := ""
	metadata, ok := event.Data.Object["metadata"].(map[string]interface{})
	if ok {
		checkoutUID, _ = metadata["checkoutUID"].(string)
	}

	paymentMethod := ""
	methodTypes, ok := event.Data.Object["payment_method_types"].([]interface{})
	if ok && len(methodTypes) > 0 {
		paymentMethod, _ = methodTypes[0].(string)
	}

	return checkoutUID, paymentMethod
}
