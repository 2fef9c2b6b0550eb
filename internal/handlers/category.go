package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/store"
)

type CategoryHandler struct {
	Store  store.Store
	Events notify.Events
}

func (h *CategoryHandler) GetCategories(c echo.Context) error {
	categories, err := h.Store.Categories().List(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items": categories,
		"total": len(categories),
	})
}

func (h *CategoryHandler) CreateCategory(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name required")
	}

	cat := models.Category{Name: req.Name}
	if err := h.Store.Categories().Create(c.Request().Context(), &cat); err != nil {
		return httpError(err)
	}

	publish(c, h.Events, "product_events", map[string]any{
		"type":       "category_created",
		"categoryID": cat.ID,
		"name":       cat.Name,
	})

	return c.JSON(http.StatusCreated, cat)
}

func (h *CategoryHandler) DeleteCategory(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.Store.Categories().Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}

	publish(c, h.Events, "product_events", map[string]any{
		"type":       "category_deleted",
		"categoryID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
