package handlers_test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssemakov/storefront/internal/models"
)

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"name":        "widget",
		"description": "a widget",
		"price":       9.99,
		"stock":       7,
	}
	rec, c := env.doJSONRequest(http.MethodPost, "/admin/products", body)
	asUser(c, 9, "admin")
	require.NoError(t, env.Product.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotZero(t, resp.ID)
	require.Equal(t, "widget", resp.Name)
	require.Equal(t, 7, resp.Stock)

	topic, event := env.Events.last()
	require.Equal(t, "product_events", topic)
	require.Equal(t, "product_created", event["type"])
}

func TestCreateProductRejectsNegative(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{"name": "widget", "price": -1, "stock": 1}
	_, c := env.doJSONRequest(http.MethodPost, "/admin/products", body)
	asUser(c, 9, "admin")
	err := env.Product.CreateProduct(c)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestGetProducts(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		env.seedProduct("p"+strconv.Itoa(i), 1, 1)
	}

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/products?page=2&size=10", nil)
	require.NoError(t, env.Product.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.Product `json:"data"`
		Meta struct {
			Page       int   `json:"page"`
			Total      int64 `json:"total"`
			TotalPages int64 `json:"total_pages"`
			HasPrev    bool  `json:"has_prev"`
			HasNext    bool  `json:"has_next"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.EqualValues(t, 12, resp.Meta.Total)
	require.EqualValues(t, 2, resp.Meta.TotalPages)
	require.True(t, resp.Meta.HasPrev)
	require.False(t, resp.Meta.HasNext)
}

func TestPatchProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	id := strconv.Itoa(int(p.ID))

	body := map[string]any{"name": "gadget", "price": 12.5, "stock": 3}
	rec, c := env.doJSONRequest(http.MethodPatch, "/admin/products/"+id, body)
	asUser(c, 9, "admin")
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Product.PatchProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "gadget", resp.Name)
	require.Equal(t, 12.5, resp.Price)
	require.Equal(t, 3, resp.Stock)
}

func TestDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct("widget", 10, 5)
	id := strconv.Itoa(int(p.ID))

	rec, c := env.doJSONRequest(http.MethodDelete, "/admin/products/"+id, nil)
	asUser(c, 9, "admin")
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Product.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, c = env.doJSONRequest(http.MethodGet, "/api/v1/products/"+id, nil)
	c.SetParamNames("id")
	c.SetParamValues(id)
	err := env.Product.GetProduct(c)
	require.Equal(t, http.StatusNotFound, httpStatus(t, err))
}
