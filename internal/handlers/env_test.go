package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ssemakov/storefront/internal/handlers"
	"github.com/ssemakov/storefront/internal/locks"
	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/order"
	"github.com/ssemakov/storefront/internal/payment"
	"github.com/ssemakov/storefront/internal/service/token"
	"github.com/ssemakov/storefront/internal/store"
	"github.com/ssemakov/storefront/internal/store/gormstore"
)

// captureEvents records published events instead of talking to a broker.
type captureEvents struct {
	mu     sync.Mutex
	topics []string
	events []map[string]any
}

func (f *captureEvents) PublishEvent(_ context.Context, topic, _ string, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	if m, ok := event.(map[string]any); ok {
		f.events = append(f.events, m)
	} else {
		f.events = append(f.events, nil)
	}
	return nil
}

func (f *captureEvents) last() (string, map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return "", nil
	}
	return f.topics[len(f.topics)-1], f.events[len(f.events)-1]
}

type testEnv struct {
	T      *testing.T
	E      *echo.Echo
	Store  store.Store
	Events *captureEvents

	Auth    *handlers.AuthHandler
	Cart    *handlers.CartHandler
	Product *handlers.ProductHandler
	Order   *handlers.OrderHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormstore.Migrate(db))
	st := gormstore.New(db)

	events := &captureEvents{}
	tokens := &token.TokenService{
		Store:         st,
		JWTSecret:     []byte("test-jwt-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	svc := order.NewService(st, locks.NewManager(), &notify.LogSink{}, payment.OfflineGateway{}, nil)

	return &testEnv{
		T:       t,
		E:       echo.New(),
		Store:   st,
		Events:  events,
		Auth:    &handlers.AuthHandler{Store: st, Tokens: tokens, Events: events},
		Cart:    &handlers.CartHandler{Store: st, Events: events},
		Product: &handlers.ProductHandler{Store: st, Events: events},
		Order:   &handlers.OrderHandler{Svc: svc, Store: st},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	return rec, env.E.NewContext(req, rec)
}

// asUser emulates what the auth middleware puts into the context.
func asUser(c echo.Context, userID uint, role string) {
	c.Set("userID", userID)
	c.Set("role", role)
}

func (env *testEnv) seedProduct(name string, price float64, stock int) models.Product {
	env.T.Helper()
	p := models.Product{Name: name, Price: price, Stock: stock}
	require.NoError(env.T, env.Store.Products().Create(context.Background(), &p))
	return p
}

func (env *testEnv) seedCart(userID, productID uint, qty int) models.CartItem {
	env.T.Helper()
	it, err := env.Store.Carts().Upsert(context.Background(), userID, productID, qty)
	require.NoError(env.T, err)
	return *it
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}
