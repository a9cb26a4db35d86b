package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/hash"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/models"
	"github.com/brightpath/lms/internal/repo"
	"github.com/brightpath/lms/internal/session"
	"github.com/brightpath/lms/internal/tokens"
)

type authEnv struct {
	Handler *AuthHandler
	Gate    *authmw.Gate
	DB      *gorm.DB
	E       *echo.Echo
}

func newAuthEnv(t *testing.T) *authEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Tenant{}))

	codec := &tokens.Codec{
		AccessSecret:  tokens.AccessSecret("test-access-secret"),
		RefreshSecret: tokens.RefreshSecret("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}
	gormRepo := &repo.GormRepo{DB: db}
	manager := &session.Manager{Codec: codec, Store: session.NewMemoryStore()}
	return &authEnv{
		Handler: &AuthHandler{Repo: gormRepo, Sessions: manager},
		Gate:    &authmw.Gate{Codec: codec, Manager: manager, Repo: gormRepo},
		DB:      db,
		E:       echo.New(),
	}
}

func (env *authEnv) jsonRequest(t *testing.T, method, target string, payload any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return env.E.NewContext(req, rec), rec
}

func (env *authEnv) seedUser(t *testing.T, email, password, role string) models.User {
	t.Helper()
	pwHash, err := hash.HashPassword(password)
	require.NoError(t, err)
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		Status:       models.UserStatusActive,
	}
	require.NoError(t, env.DB.Create(&user).Error)
	return user
}

func TestRegister(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	c, rec := env.jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"email":    "new@example.com",
		"password": "password",
	})

	require.NoError(t, env.Handler.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NotEmpty(t, user.ID)

	// Same email again conflicts.
	c, _ = env.jsonRequest(t, http.MethodPost, "/register", map[string]string{
		"email":    "new@example.com",
		"password": "password",
	})
	err := env.Handler.Register(c)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeAlreadyExists, ae.Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.seedUser(t, "user@example.com", "password", models.RoleStudent)

	c, rec := env.jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email":    "user@example.com",
		"password": "password",
	})
	require.NoError(t, env.Handler.Login(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var pair session.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	cookies := rec.Result().Cookies()
	names := make([]string, len(cookies))
	for i, ck := range cookies {
		names[i] = ck.Name
	}
	assert.Contains(t, names, "accessToken")
	assert.Contains(t, names, "refreshToken")
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	env.seedUser(t, "user@example.com", "password", models.RoleStudent)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown email", email: "ghost@example.com", password: "password"},
		{name: "wrong password", email: "user@example.com", password: "nope"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := env.jsonRequest(t, http.MethodPost, "/login", map[string]string{
				"email":    tt.email,
				"password": tt.password,
			})
			err := env.Handler.Login(c)
			assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
		})
	}
}

func TestLogin_InactiveAccount(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	user := env.seedUser(t, "user@example.com", "password", models.RoleStudent)
	require.NoError(t, env.DB.Model(&user).Update("status", models.UserStatusSuspended).Error)

	c, _ := env.jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"email":    "user@example.com",
		"password": "password",
	})
	err := env.Handler.Login(c)
	assert.ErrorIs(t, err, apperr.ErrAccountInactive)
}

func TestRefresh_RotatesPair(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	user := env.seedUser(t, "user@example.com", "password", models.RoleStudent)

	pair, err := env.Handler.Sessions.Login(context.Background(), tokens.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	require.NoError(t, err)

	c, rec := env.jsonRequest(t, http.MethodPost, "/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	require.NoError(t, env.Handler.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var next session.TokenPair
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &next))
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The superseded token is now theft evidence.
	c, _ = env.jsonRequest(t, http.MethodPost, "/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	err = env.Handler.Refresh(c)
	assert.ErrorIs(t, err, apperr.ErrTokenReuse)
}

func TestRefresh_MissingToken(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	c, _ := env.jsonRequest(t, http.MethodPost, "/refresh", map[string]string{})
	err := env.Handler.Refresh(c)
	assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	user := env.seedUser(t, "user@example.com", "password", models.RoleStudent)

	pair, err := env.Handler.Sessions.Login(context.Background(), tokens.Identity{UserID: user.ID, Email: user.Email, Role: user.Role})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: pair.RefreshToken})
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)

	require.NoError(t, env.Gate.Authenticate(env.Handler.Logout)(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The access token is blacklisted for the rest of its lifetime.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	c = env.E.NewContext(req, httptest.NewRecorder())
	err = env.Gate.Authenticate(func(echo.Context) error { return nil })(c)
	assert.ErrorIs(t, err, apperr.ErrTokenRevoked)

	// And the refresh family died with the session.
	c, _ = env.jsonRequest(t, http.MethodPost, "/refresh", map[string]string{
		"refresh_token": pair.RefreshToken,
	})
	err = env.Handler.Refresh(c)
	assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)
}

func TestLogoutAll_EndsEverySession(t *testing.T) {
	t.Parallel()

	env := newAuthEnv(t)
	user := env.seedUser(t, "user@example.com", "password", models.RoleStudent)
	id := tokens.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}

	laptop, err := env.Handler.Sessions.Login(context.Background(), id)
	require.NoError(t, err)
	phone, err := env.Handler.Sessions.Login(context.Background(), id)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/logout-all", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+laptop.AccessToken)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	require.NoError(t, env.Gate.Authenticate(env.Handler.LogoutAll)(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	for _, pair := range []*session.TokenPair{laptop, phone} {
		c, _ := env.jsonRequest(t, http.MethodPost, "/refresh", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		err := env.Handler.Refresh(c)
		assert.ErrorIs(t, err, apperr.ErrInvalidRefresh)
	}

	// Outstanding access tokens ride out their natural expiry.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+phone.AccessToken)
	c = env.E.NewContext(req, httptest.NewRecorder())
	assert.NoError(t, env.Gate.Authenticate(func(echo.Context) error { return nil })(c))
}
