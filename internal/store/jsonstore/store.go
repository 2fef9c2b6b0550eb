// Package jsonstore implements the store contract on flat JSON files, one
// document per collection. Every mutation is a whole-document
// read-modify-write performed under an in-process mutex plus a flock file
// lock, committed with an atomic rename. Documents carry a version counter;
// a commit whose base version no longer matches the on-disk version fails
// with store.ErrConflict instead of silently losing the other write.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/store"
)

const (
	colProducts   = "products"
	colCategories = "categories"
	colUsers      = "users"
	colTokens     = "tokens"
	colCarts      = "carts"
	colOrders     = "orders"
)

type doc[T any] struct {
	Version uint64       `json:"version"`
	NextID  uint         `json:"next_id"`
	Items   map[string]T `json:"items"`
}

type Store struct {
	dir string
	mu  sync.Mutex
	fl  *flock.Flock
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir: %w", err)
	}
	return &Store{
		dir: dir,
		fl:  flock.New(filepath.Join(dir, ".lock")),
	}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *Store) Transact(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fl.Lock(); err != nil {
		return fmt.Errorf("jsonstore: file lock: %w", err)
	}
	defer s.fl.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &txn{
		s:     s,
		docs:  make(map[string]any),
		base:  make(map[string]uint64),
		dirty: make(map[string]bool),
	}
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

// Direct repo access (see ops.go) routes through a single-op transaction so
// every mutation takes the same lock-read-write-rename path.
func (s *Store) Products() store.ProductRepo    { return productOps{s} }
func (s *Store) Categories() store.CategoryRepo { return categoryOps{s} }
func (s *Store) Carts() store.CartRepo          { return cartOps{s} }
func (s *Store) Orders() store.OrderRepo        { return orderOps{s} }
func (s *Store) Users() store.UserRepo          { return userOps{s} }
func (s *Store) Tokens() store.TokenRepo        { return tokenOps{s} }

type txn struct {
	s     *Store
	docs  map[string]any
	base  map[string]uint64
	dirty map[string]bool
}

func (t *txn) Products() store.ProductRepo    { return txProducts{t} }
func (t *txn) Categories() store.CategoryRepo { return txCategories{t} }
func (t *txn) Carts() store.CartRepo          { return txCarts{t} }
func (t *txn) Orders() store.OrderRepo        { return txOrders{t} }
func (t *txn) Users() store.UserRepo          { return txUsers{t} }
func (t *txn) Tokens() store.TokenRepo        { return txTokens{t} }

// Nested Transact joins the enclosing transaction.
func (t *txn) Transact(ctx context.Context, fn func(tx store.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(t)
}

func (t *txn) commit() error {
	for name := range t.dirty {
		onDisk, err := readVersion(t.s.path(name))
		if err != nil {
			return err
		}
		if onDisk != t.base[name] {
			return store.ErrConflict
		}
	}
	for name := range t.dirty {
		if err := t.writeDoc(name); err != nil {
			return fmt.Errorf("jsonstore: commit %s: %w", name, err)
		}
	}
	return nil
}

func (t *txn) writeDoc(name string) error {
	data, err := json.MarshalIndent(t.docs[name], "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(t.s.dir, name+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), t.s.path(name))
}

func readVersion(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var v struct {
		Version uint64 `json:"version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v.Version, nil
}

func load[T any](t *txn, name string) (*doc[T], error) {
	if d, ok := t.docs[name]; ok {
		return d.(*doc[T]), nil
	}

	d := &doc[T]{Items: make(map[string]T)}
	data, err := os.ReadFile(t.s.path(name))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("jsonstore: decode %s: %w", name, err)
		}
		if d.Items == nil {
			d.Items = make(map[string]T)
		}
	}

	t.docs[name] = d
	t.base[name] = d.Version
	return d, nil
}

func touch[T any](t *txn, name string, d *doc[T]) {
	if !t.dirty[name] {
		t.dirty[name] = true
		d.Version++
	}
}

func key(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func nextID[T any](d *doc[T]) uint {
	d.NextID++
	return d.NextID
}

type txProducts struct{ t *txn }

func (r txProducts) Get(_ context.Context, id uint) (*models.Product, error) {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return nil, err
	}
	p, ok := d.Items[key(id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r txProducts) List(_ context.Context, f store.ProductFilter) ([]models.Product, int64, error) {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return nil, 0, err
	}

	all := make([]models.Product, 0, len(d.Items))
	for _, p := range d.Items {
		if f.CategoryID != 0 && p.CategoryID != f.CategoryID {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := int64(len(all))
	if f.Offset >= len(all) {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && f.Limit < len(all) {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r txProducts) Create(_ context.Context, p *models.Product) error {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return err
	}
	if p.ID == 0 {
		p.ID = nextID(d)
	} else if p.ID > d.NextID {
		d.NextID = p.ID
	}
	d.Items[key(p.ID)] = *p
	touch(r.t, colProducts, d)
	return nil
}

func (r txProducts) Update(_ context.Context, p *models.Product) error {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return err
	}
	if _, ok := d.Items[key(p.ID)]; !ok {
		return store.ErrNotFound
	}
	d.Items[key(p.ID)] = *p
	touch(r.t, colProducts, d)
	return nil
}

func (r txProducts) Delete(_ context.Context, id uint) error {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return err
	}
	delete(d.Items, key(id))
	touch(r.t, colProducts, d)
	return nil
}

func (r txProducts) DecrementStock(_ context.Context, id uint, qty int) error {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return err
	}
	p, ok := d.Items[key(id)]
	if !ok {
		return store.ErrNotFound
	}
	if p.Stock < qty {
		return store.ErrInsufficientStock
	}
	p.Stock -= qty
	d.Items[key(id)] = p
	touch(r.t, colProducts, d)
	return nil
}

func (r txProducts) RestoreStock(_ context.Context, id uint, qty int) error {
	d, err := load[models.Product](r.t, colProducts)
	if err != nil {
		return err
	}
	p, ok := d.Items[key(id)]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += qty
	d.Items[key(id)] = p
	touch(r.t, colProducts, d)
	return nil
}

type txCategories struct{ t *txn }

func (r txCategories) Get(_ context.Context, id uint) (*models.Category, error) {
	d, err := load[models.Category](r.t, colCategories)
	if err != nil {
		return nil, err
	}
	c, ok := d.Items[key(id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r txCategories) List(_ context.Context) ([]models.Category, error) {
	d, err := load[models.Category](r.t, colCategories)
	if err != nil {
		return nil, err
	}
	out := make([]models.Category, 0, len(d.Items))
	for _, c := range d.Items {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r txCategories) Create(_ context.Context, c *models.Category) error {
	d, err := load[models.Category](r.t, colCategories)
	if err != nil {
		return err
	}
	if c.ID == 0 {
		c.ID = nextID(d)
	}
	d.Items[key(c.ID)] = *c
	touch(r.t, colCategories, d)
	return nil
}

func (r txCategories) Delete(_ context.Context, id uint) error {
	d, err := load[models.Category](r.t, colCategories)
	if err != nil {
		return err
	}
	delete(d.Items, key(id))
	touch(r.t, colCategories, d)
	return nil
}

type txCarts struct{ t *txn }

func (r txCarts) ItemsForUser(_ context.Context, userID uint) ([]models.CartItem, error) {
	d, err := load[models.CartItem](r.t, colCarts)
	if err != nil {
		return nil, err
	}
	var items []models.CartItem
	for _, it := range d.Items {
		if it.UserID == userID {
			items = append(items, it)
		}
	}
	// Row ids grow monotonically, so id order is insertion order.
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r txCarts) Upsert(_ context.Context, userID, productID uint, qty int) (*models.CartItem, error) {
	d, err := load[models.CartItem](r.t, colCarts)
	if err != nil {
		return nil, err
	}
	for k, it := range d.Items {
		if it.UserID == userID && it.ProductID == productID {
			it.Quantity += qty
			d.Items[k] = it
			touch(r.t, colCarts, d)
			return &it, nil
		}
	}

	item := models.CartItem{
		ID:        nextID(d),
		UserID:    userID,
		ProductID: productID,
		Quantity:  qty,
	}
	d.Items[key(item.ID)] = item
	touch(r.t, colCarts, d)
	return &item, nil
}

func (r txCarts) RemoveOne(_ context.Context, userID, itemID uint) (*models.CartItem, error) {
	d, err := load[models.CartItem](r.t, colCarts)
	if err != nil {
		return nil, err
	}
	it, ok := d.Items[key(itemID)]
	if !ok || it.UserID != userID {
		return nil, store.ErrNotFound
	}

	if it.Quantity > 1 {
		it.Quantity--
		d.Items[key(itemID)] = it
		touch(r.t, colCarts, d)
		return &it, nil
	}

	delete(d.Items, key(itemID))
	touch(r.t, colCarts, d)
	return nil, nil
}

func (r txCarts) Remove(_ context.Context, userID, itemID uint) error {
	d, err := load[models.CartItem](r.t, colCarts)
	if err != nil {
		return err
	}
	it, ok := d.Items[key(itemID)]
	if !ok || it.UserID != userID {
		return store.ErrNotFound
	}
	delete(d.Items, key(itemID))
	touch(r.t, colCarts, d)
	return nil
}

func (r txCarts) ClearUser(_ context.Context, userID uint) error {
	d, err := load[models.CartItem](r.t, colCarts)
	if err != nil {
		return err
	}
	for k, it := range d.Items {
		if it.UserID == userID {
			delete(d.Items, k)
		}
	}
	touch(r.t, colCarts, d)
	return nil
}

type txOrders struct{ t *txn }

func (r txOrders) Create(_ context.Context, o *models.Order) error {
	d, err := load[models.Order](r.t, colOrders)
	if err != nil {
		return err
	}
	o.ID = nextID(d)
	for i := range o.Items {
		o.Items[i].ID = uint(i + 1)
		o.Items[i].OrderID = o.ID
	}
	d.Items[key(o.ID)] = *o
	touch(r.t, colOrders, d)
	return nil
}

func (r txOrders) Get(_ context.Context, id uint) (*models.Order, error) {
	d, err := load[models.Order](r.t, colOrders)
	if err != nil {
		return nil, err
	}
	o, ok := d.Items[key(id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (r txOrders) ListForUser(_ context.Context, userID uint) ([]models.Order, error) {
	d, err := load[models.Order](r.t, colOrders)
	if err != nil {
		return nil, err
	}
	var orders []models.Order
	for _, o := range d.Items {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt > orders[j].CreatedAt
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (r txOrders) UpdateStatus(_ context.Context, id uint, status models.OrderStatus) error {
	d, err := load[models.Order](r.t, colOrders)
	if err != nil {
		return err
	}
	o, ok := d.Items[key(id)]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	d.Items[key(id)] = o
	touch(r.t, colOrders, d)
	return nil
}

func (r txOrders) SetOperatorFields(_ context.Context, id uint, trackingCode, adminNotes *string) error {
	d, err := load[models.Order](r.t, colOrders)
	if err != nil {
		return err
	}
	o, ok := d.Items[key(id)]
	if !ok {
		return store.ErrNotFound
	}
	if trackingCode != nil {
		o.TrackingCode = *trackingCode
	}
	if adminNotes != nil {
		o.AdminNotes = *adminNotes
	}
	d.Items[key(id)] = o
	touch(r.t, colOrders, d)
	return nil
}

type txUsers struct{ t *txn }

func (r txUsers) Get(_ context.Context, id uint) (*models.User, error) {
	d, err := load[models.User](r.t, colUsers)
	if err != nil {
		return nil, err
	}
	u, ok := d.Items[key(id)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r txUsers) ByUsername(_ context.Context, username string) (*models.User, error) {
	d, err := load[models.User](r.t, colUsers)
	if err != nil {
		return nil, err
	}
	for _, u := range d.Items {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r txUsers) Create(_ context.Context, u *models.User) error {
	d, err := load[models.User](r.t, colUsers)
	if err != nil {
		return err
	}
	if u.ID == 0 {
		u.ID = nextID(d)
	}
	d.Items[key(u.ID)] = *u
	touch(r.t, colUsers, d)
	return nil
}

type txTokens struct{ t *txn }

func (r txTokens) Save(_ context.Context, tok *models.RefreshToken) error {
	d, err := load[models.RefreshToken](r.t, colTokens)
	if err != nil {
		return err
	}
	if tok.ID == 0 {
		tok.ID = nextID(d)
	}
	d.Items[key(tok.ID)] = *tok
	touch(r.t, colTokens, d)
	return nil
}

func (r txTokens) ByToken(_ context.Context, token string) (*models.RefreshToken, error) {
	d, err := load[models.RefreshToken](r.t, colTokens)
	if err != nil {
		return nil, err
	}
	for _, t := range d.Items {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r txTokens) Revoke(_ context.Context, token string) error {
	d, err := load[models.RefreshToken](r.t, colTokens)
	if err != nil {
		return err
	}
	for k, t := range d.Items {
		if t.Token == token {
			t.Revoked = true
			d.Items[k] = t
			touch(r.t, colTokens, d)
			return nil
		}
	}
	return store.ErrNotFound
}
