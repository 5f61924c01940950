package payment

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/logger"
)

type ReturnResult string

const (
	ReturnSuccessful ReturnResult = "successful"
	ReturnCancelled  ReturnResult = "cancelled"
	ReturnPending    ReturnResult = "pending"
)

const defaultFailureMessage = "Something went wrong with your payment. Please try again."

// ReturnParams are the query parameters the hosted provider appends when it
// sends the shopper back.
type ReturnParams struct {
	Status string
	TxRef  string
}

func ParseReturn(q url.Values) ReturnParams {
	return ReturnParams{
		Status: strings.ToLower(strings.TrimSpace(q.Get("status"))),
		TxRef:  strings.TrimSpace(q.Get("tx_ref")),
	}
}

// VerifyReturn interprets a hosted payment return. A success claimed in the
// query only counts once the backend verifies the transaction; the cart is
// cleared at that point.
func (s *Service) VerifyReturn(ctx context.Context, p ReturnParams) (ReturnResult, error) {
	log := logger.WithTrace(ctx, s.log).With(zap.String("tx_ref", p.TxRef))

	switch p.Status {
	case string(ReturnCancelled):
		return ReturnCancelled, nil
	case string(ReturnSuccessful), "completed":
	default:
		return ReturnPending, nil
	}
	if p.TxRef == "" {
		log.Warn("hosted return without transaction reference")
		return ReturnPending, nil
	}

	status, err := s.api.VerifyHosted(ctx, p.TxRef)
	if err != nil {
		log.Warn("hosted payment verification failed", zap.Error(err))
		return ReturnPending, err
	}
	if !strings.EqualFold(status, string(ReturnSuccessful)) {
		log.Info("hosted payment not confirmed", zap.String("status", status))
		return ReturnPending, nil
	}

	if s.cart != nil {
		if err := s.cart.ClearCart(ctx); err != nil {
			log.Warn("cart not cleared after payment", zap.Error(err))
		}
	}
	return ReturnSuccessful, nil
}

// FailureMessage returns the provider's error text from the failure return
// route, or a generic message.
func FailureMessage(q url.Values) string {
	msg := q.Get("error")
	if decoded, err := url.PathUnescape(msg); err == nil {
		msg = decoded
	}
	if msg = strings.TrimSpace(msg); msg == "" {
		return defaultFailureMessage
	}
	return msg
}
