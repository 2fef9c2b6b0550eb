// Package order holds the order lifecycle: turning a cart into a priced,
// stock-decremented order, and walking orders through their status machine.
package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ssemakov/storefront/internal/locks"
	"github.com/ssemakov/storefront/internal/logging"
	"github.com/ssemakov/storefront/internal/metrics"
	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/payment"
	"github.com/ssemakov/storefront/internal/store"
)

const RoleAdmin = "admin"

// Actor identifies the caller of a lifecycle operation. Operators (admins)
// may drive transitions past pending; customers may only create orders,
// confirm payment for their own, and cancel their own while still pending.
type Actor struct {
	UserID uint
	Role   string
}

func (a Actor) Operator() bool { return a.Role == RoleAdmin }

type Service struct {
	store   store.Store
	locks   *locks.Manager
	sink    notify.Sink
	gateway payment.Gateway
	metrics *metrics.Metrics

	now func() time.Time
}

func NewService(st store.Store, lm *locks.Manager, sink notify.Sink, gw payment.Gateway, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		locks:   lm,
		sink:    sink,
		gateway: gw,
		metrics: m,
		now:     time.Now,
	}
}

func userKey(userID uint) string   { return fmt.Sprintf("user/%d", userID) }
func orderKey(orderID uint) string { return fmt.Sprintf("order/%d", orderID) }

// CreateOrder folds the caller's cart into a new pending order. The whole
// read-validate-decrement-persist-clear sequence commits as one unit; the
// per-user lock serializes double-submits so one cart can never yield two
// orders. Returns the order and the payment client secret.
func (s *Service) CreateOrder(ctx context.Context, userID uint) (*models.Order, string, error) {
	unlock := s.locks.Lock(userKey(userID))
	defer unlock()

	ord, secret, err := s.createOnce(ctx, userID)
	if errors.Is(err, store.ErrConflict) {
		// Lost update against a competing order. Re-read and re-validate
		// once before giving up.
		ord, secret, err = s.createOnce(ctx, userID)
		if errors.Is(err, store.ErrConflict) {
			err = ErrPersistenceConflict
		}
	}
	if err != nil {
		s.countFailure(err)
		return nil, "", err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.notifyStatus(ctx, ord.UserID, ord.ID, ord.Status)
	return ord, secret, nil
}

func (s *Service) createOnce(ctx context.Context, userID uint) (*models.Order, string, error) {
	var (
		ord    *models.Order
		secret string
	)
	err := s.store.Transact(ctx, func(tx store.Store) error {
		items, err := tx.Carts().ItemsForUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		// Validate everything before touching anything. The scan follows
		// cart-insertion order so the first offender is deterministic.
		var total float64
		names := make(map[uint]string, len(items))
		lines := make([]models.OrderItem, 0, len(items))
		for _, it := range items {
			p, err := tx.Products().Get(ctx, it.ProductID)
			if errors.Is(err, store.ErrNotFound) {
				return &ProductNotFoundError{ProductID: it.ProductID}
			}
			if err != nil {
				return err
			}
			if p.Stock < it.Quantity {
				return &InsufficientStockError{Product: p.Name}
			}
			names[p.ID] = p.Name
			total += p.Price * float64(it.Quantity)
			lines = append(lines, models.OrderItem{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
			})
		}

		for _, it := range items {
			if err := tx.Products().DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, store.ErrInsufficientStock) {
					// A competing order won the race between our check and
					// this decrement. The transaction rolls back whole.
					return &InsufficientStockError{Product: names[it.ProductID]}
				}
				if errors.Is(err, store.ErrNotFound) {
					return &ProductNotFoundError{ProductID: it.ProductID}
				}
				return err
			}
		}

		intent, err := s.gateway.CreateIntent(ctx, int64(math.Round(total*100)))
		if err != nil {
			return fmt.Errorf("payment intent: %w", err)
		}
		secret = intent.ClientSecret

		ord = &models.Order{
			UserID:          userID,
			Items:           lines,
			TotalPrice:      total,
			Status:          models.StatusPending,
			CreatedAt:       s.now().Unix(),
			PaymentIntentID: intent.ID,
		}
		if err := tx.Orders().Create(ctx, ord); err != nil {
			return err
		}
		return tx.Carts().ClearUser(ctx, userID)
	})
	if err != nil {
		return nil, "", err
	}
	return ord, secret, nil
}

// ConfirmPayment checks the gateway for settlement of the order's intent
// and moves the order pending -> confirmed.
func (s *Service) ConfirmPayment(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	ord, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord.UserID != actor.UserID && !actor.Operator() {
		return nil, ErrUnauthorizedTransition
	}

	ok, err := s.gateway.Confirm(ctx, ord.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPaymentNotConfirmed
	}

	return s.transition(ctx, orderID, models.StatusConfirmed)
}

// Transition applies an operator-driven status change. Cancellation routes
// through Cancel so stock restoration is never skipped.
func (s *Service) Transition(ctx context.Context, orderID uint, to models.OrderStatus, actor Actor) (*models.Order, error) {
	if !actor.Operator() {
		return nil, ErrUnauthorizedTransition
	}
	if to == models.StatusCancelled {
		return s.Cancel(ctx, orderID, actor)
	}
	return s.transition(ctx, orderID, to)
}

// Cancel voids an order and restores the decremented stock for each line
// item, atomically with the status write. Customers may cancel their own
// order while it is still pending; cancelling a confirmed order takes an
// operator.
func (s *Service) Cancel(ctx context.Context, orderID uint, actor Actor) (*models.Order, error) {
	unlock := s.locks.Lock(orderKey(orderID))
	defer unlock()

	var out *models.Order
	do := func() error {
		return s.store.Transact(ctx, func(tx store.Store) error {
			ord, err := tx.Orders().Get(ctx, orderID)
			if err != nil {
				return err
			}
			if !actor.Operator() {
				if ord.UserID != actor.UserID || ord.Status != models.StatusPending {
					return ErrUnauthorizedTransition
				}
			}
			if !CanTransition(ord.Status, models.StatusCancelled) {
				return &InvalidStatusTransitionError{From: ord.Status, To: models.StatusCancelled}
			}

			for _, it := range ord.Items {
				if err := tx.Products().RestoreStock(ctx, it.ProductID, it.Quantity); err != nil {
					// The product may have been deleted since; the order
					// still cancels.
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					return err
				}
			}
			if err := tx.Orders().UpdateStatus(ctx, orderID, models.StatusCancelled); err != nil {
				return err
			}

			cancelled := *ord
			cancelled.Status = models.StatusCancelled
			out = &cancelled
			return nil
		})
	}

	err := do()
	if errors.Is(err, store.ErrConflict) {
		err = do()
		if errors.Is(err, store.ErrConflict) {
			err = ErrPersistenceConflict
		}
	}
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCancelled.Inc()
	}
	s.notifyStatus(ctx, out.UserID, out.ID, out.Status)
	return out, nil
}

// UpdateDetails sets the operator-only fields on an order.
func (s *Service) UpdateDetails(ctx context.Context, orderID uint, trackingCode, adminNotes *string, actor Actor) (*models.Order, error) {
	if !actor.Operator() {
		return nil, ErrUnauthorizedTransition
	}
	if err := s.store.Orders().SetOperatorFields(ctx, orderID, trackingCode, adminNotes); err != nil {
		return nil, err
	}
	return s.store.Orders().Get(ctx, orderID)
}

func (s *Service) transition(ctx context.Context, orderID uint, to models.OrderStatus) (*models.Order, error) {
	unlock := s.locks.Lock(orderKey(orderID))
	defer unlock()

	var out *models.Order
	do := func() error {
		return s.store.Transact(ctx, func(tx store.Store) error {
			ord, err := tx.Orders().Get(ctx, orderID)
			if err != nil {
				return err
			}
			if !CanTransition(ord.Status, to) {
				return &InvalidStatusTransitionError{From: ord.Status, To: to}
			}
			if err := tx.Orders().UpdateStatus(ctx, orderID, to); err != nil {
				return err
			}
			next := *ord
			next.Status = to
			out = &next
			return nil
		})
	}

	err := do()
	if errors.Is(err, store.ErrConflict) {
		err = do()
		if errors.Is(err, store.ErrConflict) {
			err = ErrPersistenceConflict
		}
	}
	if err != nil {
		return nil, err
	}

	s.notifyStatus(ctx, out.UserID, out.ID, out.Status)
	return out, nil
}

// notifyStatus is best-effort: a delivery failure is logged and never fails
// the operation that triggered it.
func (s *Service) notifyStatus(ctx context.Context, userID, orderID uint, status models.OrderStatus) {
	if s.sink == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.sink.Notify(nctx, userID, orderID, status); err != nil {
		logging.FromContext(ctx).Error("order notification failed",
			"order_id", orderID, "status", string(status), "error", err)
	}
}

func (s *Service) countFailure(err error) {
	if s.metrics == nil {
		return
	}

	var (
		notFound *ProductNotFoundError
		noStock  *InsufficientStockError
	)
	reason := "internal"
	switch {
	case errors.Is(err, ErrEmptyCart):
		reason = "empty_cart"
	case errors.As(err, &notFound):
		reason = "product_not_found"
	case errors.As(err, &noStock):
		reason = "insufficient_stock"
	case errors.Is(err, ErrPersistenceConflict):
		reason = "conflict"
	}
	s.metrics.OrdersFailed.WithLabelValues(reason).Inc()
}
