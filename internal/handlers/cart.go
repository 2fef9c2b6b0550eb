package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/store"
)

type CartHandler struct {
	Store  store.Store
	Events notify.Events
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := GetID(c)
	if err != nil {
		return err
	}

	items, err := h.Store.Carts().ItemsForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := GetID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  int  `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ctx := c.Request().Context()

	// The cart references live catalog entries only.
	if _, err := h.Store.Products().Get(ctx, req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, "product not found")
		}
		return httpError(err)
	}

	item, err := h.Store.Carts().Upsert(ctx, userID, req.ProductID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	publish(c, h.Events, "cart_events", map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})

	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteOneFromCart(c echo.Context) error {
	userID, err := GetID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	item, err := h.Store.Carts().RemoveOne(c.Request().Context(), userID, id)
	if err != nil {
		return httpError(err)
	}

	if item != nil {
		publish(c, h.Events, "cart_events", map[string]any{
			"type":         "cart_item_decremented",
			"userID":       userID,
			"id":           item.ID,
			"new_quantity": item.Quantity,
		})
		return c.JSON(http.StatusOK, item)
	}

	publish(c, h.Events, "cart_events", map[string]any{
		"type":         "cart_item_deleted",
		"userID":       userID,
		"deleted_item": id,
	})
	return c.JSON(http.StatusOK, map[string]any{"deleted_item": id})
}

func (h *CartHandler) DeleteAllFromCart(c echo.Context) error {
	userID, err := GetID(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.Store.Carts().Remove(ctx, userID, id); err != nil {
		return httpError(err)
	}

	remaining, err := h.Store.Carts().ItemsForUser(ctx, userID)
	if err != nil {
		return httpError(err)
	}

	publish(c, h.Events, "cart_events", map[string]any{
		"type":         "cart_item_deleted",
		"userID":       userID,
		"deleted_item": id,
	})

	return c.JSON(http.StatusOK, remaining)
}
