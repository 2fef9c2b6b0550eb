// Package store defines the backend-neutral persistence interface. Two
// implementations exist: gormstore (relational) and jsonstore (flat files).
// Callers must not assume anything beyond this contract, in particular not
// the locking strategy a backend uses to honor it.
package store

import (
	"context"
	"errors"

	"github.com/ssemakov/storefront/internal/models"
)

var (
	ErrNotFound = errors.New("store: record not found")

	// ErrInsufficientStock is returned by DecrementStock when the
	// conditional decrement would drive stock negative.
	ErrInsufficientStock = errors.New("store: insufficient stock")

	// ErrConflict signals a lost update detected at commit time.
	ErrConflict = errors.New("store: conflict")
)

type ProductFilter struct {
	CategoryID uint
	Offset     int
	Limit      int
}

type ProductRepo interface {
	Get(ctx context.Context, id uint) (*models.Product, error)
	List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error

	// DecrementStock subtracts qty only if the remaining stock allows it,
	// as a single check-and-set against live state.
	DecrementStock(ctx context.Context, id uint, qty int) error
	RestoreStock(ctx context.Context, id uint, qty int) error
}

type CategoryRepo interface {
	Get(ctx context.Context, id uint) (*models.Category, error)
	List(ctx context.Context) ([]models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id uint) error
}

type CartRepo interface {
	// ItemsForUser returns the cart in insertion order.
	ItemsForUser(ctx context.Context, userID uint) ([]models.CartItem, error)
	// Upsert increments quantity when the (user, product) pair exists.
	Upsert(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error)
	// RemoveOne decrements quantity, deleting the row at zero. The returned
	// item is nil when the row was deleted.
	RemoveOne(ctx context.Context, userID, itemID uint) (*models.CartItem, error)
	Remove(ctx context.Context, userID, itemID uint) error
	ClearUser(ctx context.Context, userID uint) error
}

type OrderRepo interface {
	// Create persists the order and its items, allocating a fresh id.
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id uint) (*models.Order, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error
	SetOperatorFields(ctx context.Context, id uint, trackingCode, adminNotes *string) error
}

type UserRepo interface {
	Get(ctx context.Context, id uint) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type TokenRepo interface {
	Save(ctx context.Context, t *models.RefreshToken) error
	ByToken(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
}

type Store interface {
	Products() ProductRepo
	Categories() CategoryRepo
	Carts() CartRepo
	Orders() OrderRepo
	Users() UserRepo
	Tokens() TokenRepo

	// Transact runs fn so that all reads and writes inside it commit or
	// roll back as one unit. fn receives a Store scoped to the transaction.
	Transact(ctx context.Context, fn func(tx Store) error) error
}
