package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/store"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour

	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type TokenService struct {
	Store         store.Store
	JWTSecret     []byte
	RefreshSecret []byte
}

func CreateCookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func SignAccessToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(AccessTTL).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

func SignRefreshToken(userID uint, role string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(RefreshTTL).Unix(),
		"typ":  "refresh",
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(secret)
}

// IssuePair signs a fresh access/refresh pair and persists the refresh
// token for later revocation checks.
func (t *TokenService) IssuePair(ctx context.Context, userID uint, role string) (string, string, error) {
	access, err := SignAccessToken(userID, role, t.JWTSecret)
	if err != nil {
		return "", "", err
	}
	refresh, err := SignRefreshToken(userID, role, t.RefreshSecret)
	if err != nil {
		return "", "", err
	}

	rec := &models.RefreshToken{
		Token:     refresh,
		UserID:    userID,
		Role:      role,
		ExpiresAt: time.Now().Add(RefreshTTL).Unix(),
	}
	if err := t.Store.Tokens().Save(ctx, rec); err != nil {
		return "", "", fmt.Errorf("save refresh token: %w", err)
	}
	return access, refresh, nil
}

func (t *TokenService) ValidateRefresh(ctx context.Context, raw string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.RefreshSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("cannot parse claims")
	}
	if typ, ok := claims["typ"].(string); !ok || typ != "refresh" {
		return nil, errors.New("not a refresh token")
	}

	stored, err := t.Store.Tokens().ByToken(ctx, raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.New("refresh token not found")
		}
		return nil, fmt.Errorf("token lookup: %w", err)
	}
	if stored.Revoked {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, errors.New("refresh token expired")
	}
	return claims, nil
}

// RotateToken trades a valid refresh token for a fresh pair, revoking the
// old one.
func (t *TokenService) RotateToken(ctx context.Context, raw string) (string, string, jwt.MapClaims, error) {
	claims, err := t.ValidateRefresh(ctx, raw)
	if err != nil {
		return "", "", nil, err
	}

	sub, ok := claims["sub"].(float64)
	if !ok {
		return "", "", nil, errors.New("invalid subject claim")
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", "", nil, errors.New("invalid role claim")
	}

	access, refresh, err := t.IssuePair(ctx, uint(sub), role)
	if err != nil {
		return "", "", nil, err
	}
	if err := t.Store.Tokens().Revoke(ctx, raw); err != nil {
		return "", "", nil, err
	}
	return access, refresh, claims, nil
}

// CheckCookie validates the access cookie, falling back to refresh
// rotation when the access token expired. Returns the (possibly new)
// access token, a new refresh token when rotation happened, and the role.
func (t *TokenService) CheckCookie(c echo.Context) (string, string, string, error) {
	ctx := c.Request().Context()

	asCookie, err := c.Cookie(AccessCookie)
	if err == nil {
		parsed, perr := jwt.Parse(asCookie.Value, func(j *jwt.Token) (interface{}, error) {
			return t.JWTSecret, nil
		})
		if perr == nil && parsed.Valid {
			claims, ok := parsed.Claims.(jwt.MapClaims)
			if !ok {
				return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
			}
			role, ok := claims["role"].(string)
			if !ok {
				return "", "", "", echo.NewHTTPError(http.StatusForbidden, "missing role claim")
			}
			if err := setUserContext(c, claims); err != nil {
				return "", "", "", err
			}
			return asCookie.Value, "", role, nil
		}
		if !errors.Is(perr, jwt.ErrTokenExpired) {
			return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
	}

	rfCookie, err := c.Cookie(RefreshCookie)
	if err != nil {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing auth cookies")
	}

	access, refresh, claims, err := t.RotateToken(ctx, rfCookie.Value)
	if err != nil {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	role, ok := claims["role"].(string)
	if !ok {
		return "", "", "", echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	return access, refresh, role, nil
}

// AutoRefreshMiddleware authenticates the request, transparently rotating
// an expired access token off the refresh cookie.
func (t *TokenService) AutoRefreshMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		access, refresh, _, err := t.CheckCookie(c)
		if err != nil {
			return err
		}

		if refresh == "" {
			return next(c)
		}

		c.SetCookie(CreateCookie(AccessCookie, access, "/", time.Now().Add(AccessTTL)))
		c.SetCookie(CreateCookie(RefreshCookie, refresh, "/", time.Now().Add(RefreshTTL)))

		if err := t.setContextFromAccess(c, access); err != nil {
			return err
		}
		return next(c)
	}
}

// AutoRefreshMiddlewareAdmin is AutoRefreshMiddleware plus an operator
// role check.
func (t *TokenService) AutoRefreshMiddlewareAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		access, refresh, role, err := t.CheckCookie(c)
		if err != nil {
			return err
		}
		if role != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
		}

		if refresh != "" {
			c.SetCookie(CreateCookie(AccessCookie, access, "/", time.Now().Add(AccessTTL)))
			c.SetCookie(CreateCookie(RefreshCookie, refresh, "/", time.Now().Add(RefreshTTL)))
			if err := t.setContextFromAccess(c, access); err != nil {
				return err
			}
		}
		return next(c)
	}
}

func (t *TokenService) setContextFromAccess(c echo.Context, access string) error {
	parsed, err := jwt.Parse(access, func(j *jwt.Token) (interface{}, error) { return t.JWTSecret, nil })
	if err != nil || !parsed.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return setUserContext(c, claims)
}

func setUserContext(c echo.Context, claims jwt.MapClaims) error {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subject claim")
	}
	role, _ := claims["role"].(string)
	c.Set("userID", uint(sub))
	c.Set("role", role)
	return nil
}
