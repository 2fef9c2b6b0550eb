package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ssemakov/storefront/internal/models"
	"github.com/ssemakov/storefront/internal/service/token"
)

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"username": "alice", "password": "secret"}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", body)
	require.NoError(t, env.Auth.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "alice", resp.Username)
	require.Equal(t, "user", resp.Role)

	topic, event := env.Events.last()
	require.Equal(t, "user_events", topic)
	require.Equal(t, "user_registered", event["type"])
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"username": "alice", "password": "secret"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", body)
	require.NoError(t, env.Auth.Register(c))

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/register", body)
	err := env.Auth.Register(c)
	require.Equal(t, http.StatusConflict, httpStatus(t, err))
}

func TestRegisterMissingFields(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", map[string]string{"username": "alice"})
	err := env.Auth.Register(c)
	require.Equal(t, http.StatusBadRequest, httpStatus(t, err))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"username": "alice", "password": "secret"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", body)
	require.NoError(t, env.Auth.Register(c))

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/login", body)
	require.NoError(t, env.Auth.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IsAdmin      bool   `json:"is_admin"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.False(t, resp.IsAdmin)

	names := make(map[string]bool)
	for _, ck := range rec.Result().Cookies() {
		names[ck.Name] = true
	}
	require.True(t, names[token.AccessCookie])
	require.True(t, names[token.RefreshCookie])
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register",
		map[string]string{"username": "alice", "password": "secret"})
	require.NoError(t, env.Auth.Register(c))

	_, c = env.doJSONRequest(http.MethodPost, "/api/v1/login",
		map[string]string{"username": "alice", "password": "wrong"})
	err := env.Auth.Login(c)
	require.Equal(t, http.StatusUnauthorized, httpStatus(t, err))
}

func TestLogOutRevokesRefreshToken(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"username": "alice", "password": "secret"}
	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/register", body)
	require.NoError(t, env.Auth.Register(c))

	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/login", body)
	require.NoError(t, env.Auth.Login(c))

	var resp struct {
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	ck := &http.Cookie{Name: token.RefreshCookie, Value: resp.RefreshToken, Path: "/"}
	rec, c = env.doJSONRequest(http.MethodPost, "/api/v1/logout", nil, ck)
	require.NoError(t, env.Auth.LogOut(c))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.Store.Tokens().ByToken(c.Request().Context(), resp.RefreshToken)
	require.NoError(t, err)
	require.True(t, stored.Revoked)
}
