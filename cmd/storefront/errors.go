package main

import (
	"errors"
	"fmt"

	"github.com/campusmarket/storefront/internal/domain"
	"github.com/campusmarket/storefront/internal/order"
	"github.com/campusmarket/storefront/internal/session"
)

// userError turns a service error into the message a shopper should see.
func userError(err error) error {
	var (
		authErr  *session.AuthError
		verr     *domain.ValidationError
		orderErr *order.OrderCreationError
		provider *domain.ProviderError
	)
	switch {
	case errors.As(err, &authErr):
		return errors.New(authErr.Message)
	case errors.As(err, &orderErr):
		return errors.New(orderErr.Message())
	case errors.As(err, &verr):
		if verr.Field == "" {
			return errors.New(verr.Message)
		}
		return fmt.Errorf("%s: %s", verr.Field, verr.Message)
	case errors.As(err, &provider):
		return provider
	case errors.Is(err, session.ErrUnauthenticated), errors.Is(err, order.ErrNotAuthenticated):
		return errors.New("please sign in first: storefront login --email ... --password ...")
	case domain.IsNetwork(err):
		return fmt.Errorf("storefront backend unreachable: %w", err)
	}
	return err
}
