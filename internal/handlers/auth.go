package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/hash"
	"github.com/brightpath/lms/internal/logging"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/models"
	"github.com/brightpath/lms/internal/repo"
	"github.com/brightpath/lms/internal/session"
	"github.com/brightpath/lms/internal/tokens"
)

type AuthHandler struct {
	Repo     *repo.GormRepo
	Sessions *session.Manager
	Events   session.EventPublisher
}

func CreateCookie(name, value, path string, exp time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  exp,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *AuthHandler) setTokenCookies(c echo.Context, pair *session.TokenPair) {
	c.SetCookie(CreateCookie("accessToken", pair.AccessToken, "/", pair.AccessExpiresAt))
	c.SetCookie(CreateCookie("refreshToken", pair.RefreshToken, "/", pair.RefreshExpiresAt))
}

func (h *AuthHandler) clearTokenCookies(c echo.Context) {
	expired := time.Unix(0, 0)
	c.SetCookie(CreateCookie("accessToken", "", "/", expired))
	c.SetCookie(CreateCookie("refreshToken", "", "/", expired))
}

func (h *AuthHandler) publish(c echo.Context, eventType, userID string, extra map[string]any) {
	if h.Events == nil {
		return
	}
	event := map[string]any{"type": eventType, "user_id": userID, "at": time.Now().UTC()}
	for k, v := range extra {
		event[k] = v
	}
	ctx := c.Request().Context()
	if err := h.Events.PublishEvent(ctx, session.SecurityTopic, userID, event); err != nil {
		logging.FromContext(ctx).Error("publish event failed", "type", eventType, "error", err)
	}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.CodeValidation, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperr.New(apperr.CodeValidation, "email and password are required")
	}

	ctx := c.Request().Context()
	existing, err := h.Repo.UserByEmail(ctx, req.Email)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "check existing user", err)
	}
	if existing != nil {
		return apperr.New(apperr.CodeAlreadyExists, "user already exists")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "hash password", err)
	}
	user := models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: pwHash,
		Role:         models.RoleStudent,
		Status:       models.UserStatusActive,
	}
	if err := h.Repo.CreateUser(ctx, &user); err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "create user", err)
	}

	h.publish(c, "user_registered", user.ID, map[string]any{"email": user.Email})
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.CodeValidation, "invalid request body")
	}

	ctx := c.Request().Context()
	user, err := h.Repo.UserByEmail(ctx, req.Email)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "load user", err)
	}
	if user == nil || !hash.CheckPassword(user.PasswordHash, req.Password) {
		return apperr.ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return apperr.ErrAccountInactive
	}

	id := tokens.Identity{UserID: user.ID, Email: user.Email, Role: user.Role, TenantID: user.TenantID}
	pair, err := h.Sessions.Login(ctx, id)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, pair)
	h.publish(c, "user_logged_in", user.ID, nil)
	return c.JSON(http.StatusOK, pair)
}

// Refresh accepts the token from the cookie first, then the JSON body, so
// both browser and API clients can rotate.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		raw = cookie.Value
	}
	if raw == "" {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}
	if raw == "" {
		return apperr.ErrInvalidRefresh
	}

	pair, err := h.Sessions.Refresh(c.Request().Context(), raw)
	if err != nil {
		h.clearTokenCookies(c)
		return err
	}

	h.setTokenCookies(c, pair)
	return c.JSON(http.StatusOK, pair)
}

// Logout ends the presented session: the access token goes on the blacklist
// for its remaining lifetime and the refresh family dies with it.
func (h *AuthHandler) Logout(c echo.Context) error {
	claims := authmw.ClaimsFrom(c)
	if claims == nil {
		return apperr.ErrAuthRequired
	}
	ctx := c.Request().Context()

	remaining := time.Until(claims.ExpiresAt.Time)
	if err := h.Sessions.Logout(ctx, claims.ID, remaining); err != nil {
		return err
	}

	if cookie, err := c.Cookie("refreshToken"); err == nil {
		if rc, err := h.Sessions.Codec.VerifyRefresh(cookie.Value); err == nil {
			if err := h.Sessions.RevokeFamily(ctx, rc.Subject, rc.Family); err != nil {
				logging.FromContext(ctx).Error("revoke family on logout failed", "error", err)
			}
		}
	}

	h.clearTokenCookies(c)
	h.publish(c, "user_logged_out", claims.Subject, nil)
	return c.NoContent(http.StatusNoContent)
}

// GetUser is the superadmin lookup used by support tooling.
func (h *AuthHandler) GetUser(c echo.Context) error {
	user, err := h.Repo.UserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "load user", err)
	}
	if user == nil {
		return apperr.New(apperr.CodeNotFound, "User not found")
	}
	return c.JSON(http.StatusOK, user)
}

// LogoutAll drops every device session for the caller. A no-op when there
// are none.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	claims := authmw.ClaimsFrom(c)
	if claims == nil {
		return apperr.ErrAuthRequired
	}
	if err := h.Sessions.LogoutAll(c.Request().Context(), claims.Subject); err != nil {
		return err
	}
	h.clearTokenCookies(c)
	h.publish(c, "user_logged_out_everywhere", claims.Subject, nil)
	return c.NoContent(http.StatusNoContent)
}
