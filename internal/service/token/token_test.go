package token

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ssemakov/storefront/internal/store/gormstore"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gormstore.Migrate(db))

	return &TokenService{
		Store:         gormstore.New(db),
		JWTSecret:     []byte("jwt-secret"),
		RefreshSecret: []byte("refresh-secret"),
	}
}

func TestIssuePairAndValidate(t *testing.T) {
	svc := newTestTokenService(t)
	ctx := context.Background()

	access, refresh, err := svc.IssuePair(ctx, 7, "user")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)

	claims, err := svc.ValidateRefresh(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, float64(7), claims["sub"])
	require.Equal(t, "user", claims["role"])
	require.Equal(t, "refresh", claims["typ"])
}

func TestValidateRefreshRejectsAccessToken(t *testing.T) {
	svc := newTestTokenService(t)

	access, _, err := svc.IssuePair(context.Background(), 7, "user")
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(context.Background(), access)
	require.Error(t, err)
}

func TestValidateRefreshRejectsForgedToken(t *testing.T) {
	svc := newTestTokenService(t)

	forged, err := SignRefreshToken(7, "admin", []byte("wrong-secret"))
	require.NoError(t, err)

	_, err = svc.ValidateRefresh(context.Background(), forged)
	require.Error(t, err)
}

func TestRotateTokenRevokesOld(t *testing.T) {
	svc := newTestTokenService(t)
	ctx := context.Background()

	_, refresh, err := svc.IssuePair(ctx, 7, "user")
	require.NoError(t, err)

	access2, refresh2, claims, err := svc.RotateToken(ctx, refresh)
	require.NoError(t, err)
	require.NotEmpty(t, access2)
	require.NotEmpty(t, refresh2)
	require.NotEqual(t, refresh, refresh2)
	require.Equal(t, float64(7), claims["sub"])

	// The spent token cannot be rotated again.
	_, _, _, err = svc.RotateToken(ctx, refresh)
	require.Error(t, err)

	// The replacement still works.
	_, err = svc.ValidateRefresh(ctx, refresh2)
	require.NoError(t, err)
}

func TestValidateRefreshRevoked(t *testing.T) {
	svc := newTestTokenService(t)
	ctx := context.Background()

	_, refresh, err := svc.IssuePair(ctx, 7, "user")
	require.NoError(t, err)
	require.NoError(t, svc.Store.Tokens().Revoke(ctx, refresh))

	_, err = svc.ValidateRefresh(ctx, refresh)
	require.ErrorContains(t, err, "revoked")
}

func TestAccessTokenClaims(t *testing.T) {
	svc := newTestTokenService(t)

	access, err := SignAccessToken(3, "admin", svc.JWTSecret)
	require.NoError(t, err)

	parsed, err := jwt.Parse(access, func(*jwt.Token) (interface{}, error) {
		return svc.JWTSecret, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, float64(3), claims["sub"])
	require.Equal(t, "admin", claims["role"])
	require.NotContains(t, claims, "typ")
}
