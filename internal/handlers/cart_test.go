package handlers_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssemakov/storefront/internal/models"
)

func TestGetCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	env.seedCart(1, p.ID, 3)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/cart", nil)
	asUser(c, 1, "user")
	require.NoError(t, env.Cart.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	require.Equal(t, p.ID, resp[0].ProductID)
	require.Equal(t, 3, resp[0].Quantity)
}

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)

	body := map[string]any{"product_id": p.ID, "quantity": 2}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", body)
	asUser(c, 1, "user")
	require.NoError(t, env.Cart.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Quantity)

	// Adding the same product again increments, not duplicates.
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/cart", body)
	asUser(c, 1, "user")
	require.NoError(t, env.Cart.AddToCart(c))

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 4, resp.Quantity)

	topic, event := env.Events.last()
	require.Equal(t, "cart_events", topic)
	require.Equal(t, "cart_item_added", event["type"])
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"product_id": 999, "quantity": 1}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", body)
	asUser(c, 1, "user")
	err := env.Cart.AddToCart(c)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestDeleteOneFromCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	item := env.seedCart(1, p.ID, 2)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/cart/"+strconv.Itoa(int(item.ID)), nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(item.ID)))
	require.NoError(t, env.Cart.DeleteOneFromCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Quantity)

	// Second delete removes the row entirely.
	rec, c = env.doJSONRequest(http.MethodDelete, "/api/v1/cart/"+strconv.Itoa(int(item.ID)), nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(item.ID)))
	require.NoError(t, env.Cart.DeleteOneFromCart(c))

	var deleted map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	require.EqualValues(t, item.ID, deleted["deleted_item"])
}

func TestDeleteAllFromCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	item := env.seedCart(1, p.ID, 10)

	rec, c := env.doJSONRequest(http.MethodDelete, "/api/v1/cart/"+strconv.Itoa(int(item.ID))+"/all", nil)
	asUser(c, 1, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(item.ID)))
	require.NoError(t, env.Cart.DeleteAllFromCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp)
}

func TestCartIsolatedPerUser(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	item := env.seedCart(1, p.ID, 1)

	// Another user cannot touch the row.
	_, c := env.doJSONRequest(http.MethodDelete, "/api/v1/cart/"+strconv.Itoa(int(item.ID)), nil)
	asUser(c, 2, "user")
	c.SetParamNames("id")
	c.SetParamValues(strconv.Itoa(int(item.ID)))
	err := env.Cart.DeleteOneFromCart(c)
	require.Equal(t, http.StatusNotFound, httpStatus(t, err))
}
