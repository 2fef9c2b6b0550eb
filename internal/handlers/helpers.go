package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/logging"
	"github.com/ssemakov/storefront/internal/notify"
	"github.com/ssemakov/storefront/internal/order"
	"github.com/ssemakov/storefront/internal/store"
)

// GetID returns the authenticated user id placed in the request context by
// the auth middleware.
func GetID(c echo.Context) (uint, error) {
	id, ok := c.Get("userID").(uint)
	if !ok || id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

func GetActor(c echo.Context) (order.Actor, error) {
	id, err := GetID(c)
	if err != nil {
		return order.Actor{}, err
	}
	role, _ := c.Get("role").(string)
	return order.Actor{UserID: id, Role: role}, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func parseID(c echo.Context, name string) (uint, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(v), nil
}

// publish sends a domain event, logging delivery problems instead of
// failing the request.
func publish(c echo.Context, events notify.Events, topic string, event map[string]any) {
	if events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	key := ""
	if v, ok := event["userID"]; ok {
		key = toKey(v)
	}
	if err := events.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed",
			"topic", topic, "error", err)
	}
}

func toKey(v any) string {
	switch t := v.(type) {
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case int:
		return strconv.Itoa(t)
	case string:
		return t
	}
	return ""
}

// httpError maps the order/store error taxonomy onto HTTP statuses.
func httpError(err error) error {
	var (
		notFound    *order.ProductNotFoundError
		noStock     *order.InsufficientStockError
		badStatus   *order.InvalidStatusTransitionError
		alreadyHTTP *echo.HTTPError
	)
	switch {
	case errors.As(err, &alreadyHTTP):
		return err
	case errors.Is(err, order.ErrEmptyCart):
		return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
	case errors.As(err, &notFound):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.As(err, &noStock):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.As(err, &badStatus):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnauthorizedTransition):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	case errors.Is(err, order.ErrPersistenceConflict):
		return echo.NewHTTPError(http.StatusConflict, "temporary conflict, please retry")
	case errors.Is(err, order.ErrPaymentNotConfirmed):
		return echo.NewHTTPError(http.StatusBadRequest, "payment not confirmed")
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
