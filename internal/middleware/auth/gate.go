// Package auth is the request gate: every protected route passes through
// here before any handler runs. Token verification is stateless; only the
// revocation check touches the session store.
package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/entitlement"
	"github.com/brightpath/lms/internal/models"
	"github.com/brightpath/lms/internal/repo"
	"github.com/brightpath/lms/internal/session"
	"github.com/brightpath/lms/internal/tokens"
)

const (
	claimsKey = "authClaims"
	tenantKey = "authTenant"
	userKey   = "authUser"
)

type Gate struct {
	Codec   *tokens.Codec
	Manager *session.Manager
	Repo    *repo.GormRepo
}

// ClaimsFrom returns the verified access claims, or nil when the request is
// anonymous.
func ClaimsFrom(c echo.Context) *tokens.AccessClaims {
	if v, ok := c.Get(claimsKey).(*tokens.AccessClaims); ok {
		return v
	}
	return nil
}

func TenantFrom(c echo.Context) *models.Tenant {
	if v, ok := c.Get(tenantKey).(*models.Tenant); ok {
		return v
	}
	return nil
}

func UserFrom(c echo.Context) *models.User {
	if v, ok := c.Get(userKey).(*models.User); ok {
		return v
	}
	return nil
}

// CallerFrom adapts the request identity for the entitlement resolver.
func CallerFrom(c echo.Context) *entitlement.Caller {
	claims := ClaimsFrom(c)
	if claims == nil {
		return nil
	}
	return &entitlement.Caller{UserID: claims.Subject, Role: claims.Role, TenantID: claims.TenantID}
}

// extractToken takes the bearer header first, then the accessToken cookie.
func extractToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

func (g *Gate) resolve(c echo.Context) (*tokens.AccessClaims, error) {
	raw := extractToken(c)
	if raw == "" {
		return nil, apperr.ErrAuthRequired
	}
	claims, err := g.Codec.VerifyAccess(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := g.Manager.IsRevoked(c.Request().Context(), claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, apperr.ErrTokenRevoked
	}
	return claims, nil
}

// attach sets the identity on the context only once every lookup has
// succeeded, so a failed attach leaves the request fully anonymous.
func (g *Gate) attach(c echo.Context, claims *tokens.AccessClaims) error {
	if claims.TenantID != nil {
		tenant, err := g.Repo.TenantByID(c.Request().Context(), *claims.TenantID)
		if err != nil {
			return apperr.Wrap(apperr.CodeServiceUnavailable, "resolve tenant", err)
		}
		if tenant != nil {
			c.Set(tenantKey, tenant)
		}
	}
	c.Set(claimsKey, claims)
	return nil
}

func (g *Gate) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := g.resolve(c)
		if err != nil {
			return err
		}
		if err := g.attach(c, claims); err != nil {
			return err
		}
		return next(c)
	}
}

// OptionalAuthenticate is the one place failures are absorbed: any missing,
// invalid, expired, or revoked token just leaves the request anonymous.
func (g *Gate) OptionalAuthenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := g.resolve(c)
		if err != nil {
			return next(c)
		}
		if err := g.attach(c, claims); err != nil {
			return next(c)
		}
		return next(c)
	}
}

// RequireRole allows the listed roles. Superadmin always passes.
func (g *Gate) RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFrom(c)
			if claims == nil {
				return apperr.ErrAuthRequired
			}
			if claims.Role == models.RoleSuperAdmin {
				return next(c)
			}
			for _, role := range allowed {
				if claims.Role == role {
					return next(c)
				}
			}
			return apperr.New(apperr.CodeForbidden, "Insufficient permissions")
		}
	}
}

func (g *Gate) RequireTenant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return apperr.ErrAuthRequired
		}
		if claims.TenantID == nil {
			return apperr.New(apperr.CodeForbidden, "Tenant membership required")
		}
		return next(c)
	}
}

func (g *Gate) RequireSuperAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return apperr.ErrAuthRequired
		}
		if claims.Role != models.RoleSuperAdmin {
			return apperr.New(apperr.CodeForbidden, "SuperAdmin access required")
		}
		return next(c)
	}
}

// LoadFullUser fetches the full record for handlers that need more than the
// token's cached claims. Token claims can be stale; the row is authoritative.
func (g *Gate) LoadFullUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := ClaimsFrom(c)
		if claims == nil {
			return apperr.ErrAuthRequired
		}
		user, err := g.Repo.UserByID(c.Request().Context(), claims.Subject)
		if err != nil {
			return apperr.Wrap(apperr.CodeServiceUnavailable, "load user", err)
		}
		if user == nil {
			return apperr.New(apperr.CodeNotFound, "User not found")
		}
		if user.Status != models.UserStatusActive {
			return apperr.ErrAccountInactive
		}
		c.Set(userKey, user)
		return next(c)
	}
}
