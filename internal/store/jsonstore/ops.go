package jsonstore

import (
	"context"

	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/store"
)

// The *Ops types adapt single repo calls onto Transact, so a standalone
// Get or Upsert still runs under the file lock and commits atomically.

type productOps struct{ s *Store }

func (r productOps) Get(ctx context.Context, id uint) (*models.Product, error) {
	var out *models.Product
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Products().Get(ctx, id)
		return err
	})
	return out, err
}

func (r productOps) List(ctx context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	var (
		out   []models.Product
		total int64
	)
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, total, err = tx.Products().List(ctx, f)
		return err
	})
	return out, total, err
}

func (r productOps) Create(ctx context.Context, p *models.Product) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Products().Create(ctx, p)
	})
}

func (r productOps) Update(ctx context.Context, p *models.Product) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Products().Update(ctx, p)
	})
}

func (r productOps) Delete(ctx context.Context, id uint) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Products().Delete(ctx, id)
	})
}

func (r productOps) DecrementStock(ctx context.Context, id uint, qty int) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Products().DecrementStock(ctx, id, qty)
	})
}

func (r productOps) RestoreStock(ctx context.Context, id uint, qty int) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Products().RestoreStock(ctx, id, qty)
	})
}

type categoryOps struct{ s *Store }

func (r categoryOps) Get(ctx context.Context, id uint) (*models.Category, error) {
	var out *models.Category
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Categories().Get(ctx, id)
		return err
	})
	return out, err
}

func (r categoryOps) List(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Categories().List(ctx)
		return err
	})
	return out, err
}

func (r categoryOps) Create(ctx context.Context, c *models.Category) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Categories().Create(ctx, c)
	})
}

func (r categoryOps) Delete(ctx context.Context, id uint) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Categories().Delete(ctx, id)
	})
}

type cartOps struct{ s *Store }

func (r cartOps) ItemsForUser(ctx context.Context, userID uint) ([]models.CartItem, error) {
	var out []models.CartItem
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Carts().ItemsForUser(ctx, userID)
		return err
	})
	return out, err
}

func (r cartOps) Upsert(ctx context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Carts().Upsert(ctx, userID, productID, qty)
		return err
	})
	return out, err
}

func (r cartOps) RemoveOne(ctx context.Context, userID, itemID uint) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Carts().RemoveOne(ctx, userID, itemID)
		return err
	})
	return out, err
}

func (r cartOps) Remove(ctx context.Context, userID, itemID uint) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Carts().Remove(ctx, userID, itemID)
	})
}

func (r cartOps) ClearUser(ctx context.Context, userID uint) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Carts().ClearUser(ctx, userID)
	})
}

type orderOps struct{ s *Store }

func (r orderOps) Create(ctx context.Context, o *models.Order) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Orders().Create(ctx, o)
	})
}

func (r orderOps) Get(ctx context.Context, id uint) (*models.Order, error) {
	var out *models.Order
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Orders().Get(ctx, id)
		return err
	})
	return out, err
}

func (r orderOps) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var out []models.Order
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Orders().ListForUser(ctx, userID)
		return err
	})
	return out, err
}

func (r orderOps) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Orders().UpdateStatus(ctx, id, status)
	})
}

func (r orderOps) SetOperatorFields(ctx context.Context, id uint, trackingCode, adminNotes *string) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Orders().SetOperatorFields(ctx, id, trackingCode, adminNotes)
	})
}

type userOps struct{ s *Store }

func (r userOps) Get(ctx context.Context, id uint) (*models.User, error) {
	var out *models.User
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Users().Get(ctx, id)
		return err
	})
	return out, err
}

func (r userOps) ByUsername(ctx context.Context, username string) (*models.User, error) {
	var out *models.User
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Users().ByUsername(ctx, username)
		return err
	})
	return out, err
}

func (r userOps) Create(ctx context.Context, u *models.User) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Users().Create(ctx, u)
	})
}

type tokenOps struct{ s *Store }

func (r tokenOps) Save(ctx context.Context, t *models.RefreshToken) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Tokens().Save(ctx, t)
	})
}

func (r tokenOps) ByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	var out *models.RefreshToken
	err := r.s.Transact(ctx, func(tx store.Store) error {
		var err error
		out, err = tx.Tokens().ByToken(ctx, token)
		return err
	})
	return out, err
}

func (r tokenOps) Revoke(ctx context.Context, token string) error {
	return r.s.Transact(ctx, func(tx store.Store) error {
		return tx.Tokens().Revoke(ctx, token)
	})
}
