package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/logging"
	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/search"
	"github.com/ssemakov/storefront/internal/store"
	"github.com/ssemakov/storefront/internal/util"
)

type ProductHandler struct {
	Store   store.Store
	Events  notify.Events
	Indexer *search.Indexer
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	CategoryID  uint    `json:"category_id"`
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	product, err := h.Store.Products().Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	filter := store.ProductFilter{
		CategoryID: uint(parseIntDefault(c.QueryParam("category_id"), 0)),
		Offset:     offset,
		Limit:      limit,
	}

	items, total, err := h.Store.Products().List(c.Request().Context(), filter)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price < 0 || req.Stock < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price and stock must be non-negative")
	}

	prod := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		CategoryID:  req.CategoryID,
	}
	if err := h.Store.Products().Create(c.Request().Context(), &prod); err != nil {
		return httpError(err)
	}

	h.reindex(c, &prod)
	publish(c, h.Events, "product_events", map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price < 0 || req.Stock < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price and stock must be non-negative")
	}

	ctx := c.Request().Context()
	prod, err := h.Store.Products().Get(ctx, id)
	if err != nil {
		return httpError(err)
	}

	prod.Name = req.Name
	prod.Description = req.Description
	prod.Price = req.Price
	prod.Stock = req.Stock
	prod.CategoryID = req.CategoryID

	if err := h.Store.Products().Update(ctx, prod); err != nil {
		return httpError(err)
	}

	h.reindex(c, prod)
	publish(c, h.Events, "product_events", map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Store.Products().Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	if h.Indexer != nil {
		if err := h.Indexer.DeleteProduct(c.Request().Context(), id); err != nil {
			logging.FromContext(c.Request().Context()).Warn("search deindex failed",
				"product_id", id, "error", err)
		}
	}
	publish(c, h.Events, "product_events", map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) reindex(c echo.Context, p *models.Product) {
	if h.Indexer == nil {
		return
	}
	if err := h.Indexer.IndexProduct(c.Request().Context(), p); err != nil {
		logging.FromContext(c.Request().Context()).Warn("search index failed",
			"product_id", p.ID, "error", err)
	}
}
