package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/logging"
	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/order"
	"github.com/ssemakov/storefront/internal/store"
)

type OrderHandler struct {
	Svc   *order.Service
	Store store.Store
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	userID, err := GetID(c)
	if err != nil {
		return err
	}

	ord, clientSecret, err := h.Svc.CreateOrder(ctx, userID)
	if err != nil {
		l.Warn("create_order_failed", "user_id", userID, "error", err)
		return httpError(err)
	}

	l.Info("create_order_success", "user_id", userID, "order_id", ord.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"order":         ord,
		"client_secret": clientSecret,
	})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := GetID(c)
	if err != nil {
		return err
	}

	orders, err := h.Store.Orders().ListForUser(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	actor, err := GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ord, err := h.Store.Orders().Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if ord.UserID != actor.UserID && !actor.Operator() {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	}
	return c.JSON(http.StatusOK, ord)
}

func (h *OrderHandler) ConfirmOrder(c echo.Context) error {
	actor, err := GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ord, err := h.Svc.ConfirmPayment(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	actor, err := GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	ord, err := h.Svc.Cancel(c.Request().Context(), id, actor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}

// UpdateOrder is the operator endpoint for status transitions and the
// operator-set fields.
func (h *OrderHandler) UpdateOrder(c echo.Context) error {
	actor, err := GetActor(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Status       *string `json:"status"`
		TrackingCode *string `json:"tracking_code"`
		AdminNotes   *string `json:"admin_notes"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	ctx := c.Request().Context()

	if req.Status != nil {
		status := models.OrderStatus(*req.Status)
		if !order.ValidStatus(status) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		if _, err := h.Svc.Transition(ctx, id, status, actor); err != nil {
			return httpError(err)
		}
	}

	if req.TrackingCode != nil || req.AdminNotes != nil {
		if _, err := h.Svc.UpdateDetails(ctx, id, req.TrackingCode, req.AdminNotes, actor); err != nil {
			return httpError(err)
		}
	}

	ord, err := h.Store.Orders().Get(ctx, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ord)
}
