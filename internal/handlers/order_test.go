package handlers_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssemakov/storefront/internal/models"
)

func (env *testEnv) createOrder(userID uint) models.Order {
	env.T.Helper()

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/orders", nil)
	asUser(c, userID, "user")
	require.NoError(env.T, env.Order.CreateOrder(c))
	require.Equal(env.T, http.StatusCreated, rec.Code)

	var resp struct {
		Order        models.Order `json:"order"`
		ClientSecret string       `json:"client_secret"`
	}
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(env.T, resp.ClientSecret)
	return resp.Order
}

func TestCreateOrderHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 2)

	ord := env.createOrder(1)
	require.Equal(t, models.StatusPending, ord.Status)
	require.Equal(t, 20.0, ord.TotalPrice)
	require.Len(t, ord.Items, 1)
}

func TestCreateOrderEmptyCartHandler(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/orders", nil)
	asUser(c, 1, "user")
	err := env.Order.CreateOrder(c)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestCreateOrderInsufficientStockHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 1)
	env.seedCart(1, p.ID, 5)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/orders", nil)
	asUser(c, 1, "user")
	err := env.Order.CreateOrder(c)
	require.Equal(t, http.StatusConflict, httpStatus(t, err))
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	env.createOrder(1)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/orders", nil)
	asUser(c, 1, "user")
	require.NoError(t, env.Order.ListOrders(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
}

func TestGetOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	ord := env.createOrder(1)
	path := "/api/v1/orders/" + strconv.Itoa(int(ord.ID))

	rec, c := env.doJSONRequest(http.MethodGet, path, nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(ord.ID)))
	require.NoError(t, env.Order.GetOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSONRequest(http.MethodGet, path, nil)
	asUser(c, 2, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(ord.ID)))
	err := env.Order.GetOrder(c)
	require.Equal(t, http.StatusForbidden, httpStatus(t, err))

	// Operators can read anyone's order.
	rec, c = env.doJSONRequest(http.MethodGet, path, nil)
	asUser(c, 9, "admin")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(ord.ID)))
	require.NoError(t, env.Order.GetOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestConfirmOrderHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	ord := env.createOrder(1)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/orders/1/confirm", nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(ord.ID)))
	require.NoError(t, env.Order.ConfirmOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.StatusConfirmed, resp.Status)
}

func TestCancelOrderHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 2)
	ord := env.createOrder(1)

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/orders/1/cancel", nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(ord.ID)))
	require.NoError(t, env.Order.CancelOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.StatusCancelled, resp.Status)

	got, err := env.Store.Products().Get(c.Request().Context(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 5, got.Stock)
}

func TestUpdateOrderHandler(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	ord := env.createOrder(1)
	id := strconv.Itoa(int(ord.ID))

	body := map[string]any{"status": "confirmed", "tracking_code": "TRK-7"}
	rec, c := env.doJSONRequest(http.MethodPatch, "/admin/orders/"+id, body)
	asUser(c, 9, "admin")
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Order.UpdateOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, models.StatusConfirmed, resp.Status)
	require.Equal(t, "TRK-7", resp.TrackingCode)
}

func TestUpdateOrderRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	ord := env.createOrder(1)
	id := strconv.Itoa(int(ord.ID))

	body := map[string]any{"status": "teleported"}
	_, c := env.doJSONRequest(http.MethodPatch, "/admin/orders/"+id, body)
	asUser(c, 9, "admin")
	c.SetParamNames("id")
	c.SetParamValues(id)
	err := env.Order.UpdateOrder(c)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestUpdateOrderRequiresOperator(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 1)
	ord := env.createOrder(1)
	id := strconv.Itoa(int(ord.ID))

	body := map[string]any{"status": "confirmed"}
	_, c := env.doJSONRequest(http.MethodPatch, "/admin/orders/"+id, body)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(id)
	err := env.Order.UpdateOrder(c)
	require.Equal(t, http.StatusForbidden, httpStatus(t, err))
}
