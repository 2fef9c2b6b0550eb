package order

import (
	"errors"
	"fmt"

	"github.com/ssemakov/storefront/internal/models"
)

var (
	ErrEmptyCart = errors.New("order: cart is empty")

	// ErrUnauthorizedTransition is returned when someone other than an
	// operator tries to drive an order past pending, or to touch an order
	// they do not own.
	ErrUnauthorizedTransition = errors.New("order: not allowed for this user")

	// ErrPersistenceConflict surfaces a lost update the internal retry
	// could not resolve. The caller may retry the whole request.
	ErrPersistenceConflict = errors.New("order: storage conflict, please retry")

	ErrPaymentNotConfirmed = errors.New("order: payment not confirmed")
)

type ProductNotFoundError struct {
	ProductID uint
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("order: product %d no longer exists", e.ProductID)
}

type InsufficientStockError struct {
	Product string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("order: not enough stock for product %q", e.Product)
}

type InvalidStatusTransitionError struct {
	From, To models.OrderStatus
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("order: illegal status transition %s -> %s", e.From, e.To)
}
