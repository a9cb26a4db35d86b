// Package tokens is the codec for the two JWT kinds the platform issues.
// Access and refresh tokens are signed with independent secrets; the
// AccessSecret / RefreshSecret types keep the two key materials from being
// swapped at a call site.
package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/brightpath/lms/internal/apperr"
)

type AccessSecret []byte

type RefreshSecret []byte

// Identity is the claim set both token kinds carry. The database stays
// authoritative; a token is a cached assertion bounded by its expiry.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	TenantID *string
}

type AccessClaims struct {
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	TenantID *string `json:"tenant_id,omitempty"`
	Family   string  `json:"family"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role, TenantID: c.TenantID}
}

func (c *RefreshClaims) Identity() Identity {
	return Identity{UserID: c.Subject, Email: c.Email, Role: c.Role, TenantID: c.TenantID}
}

type Codec struct {
	AccessSecret  AccessSecret
	RefreshSecret RefreshSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// IssueAccess signs a short-lived access token. The returned JTI is the
// identifier the blacklist keys on.
func (c *Codec) IssueAccess(id Identity) (token, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = time.Now().Add(c.AccessTTL)
	claims := AccessClaims{
		Email:    id.Email,
		Role:     id.Role,
		TenantID: id.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.AccessSecret))
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, jti, expiresAt, nil
}

// IssueRefresh signs a refresh token bound to its rotation family.
func (c *Codec) IssueRefresh(id Identity, family string) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(c.RefreshTTL)
	claims := RefreshClaims{
		Email:    id.Email,
		Role:     id.Role,
		TenantID: id.TenantID,
		Family:   family,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.RefreshSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// VerifyAccess checks signature and expiry only; revocation is the session
// manager's concern.
func (c *Codec) VerifyAccess(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := parse(raw, &claims, []byte(c.AccessSecret)); err != nil {
		return nil, err
	}
	return &claims, nil
}

func (c *Codec) VerifyRefresh(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(raw, &claims, []byte(c.RefreshSecret)); err != nil {
		if errors.Is(err, apperr.ErrTokenExpired) {
			return nil, apperr.ErrRefreshExpired
		}
		return nil, apperr.ErrInvalidRefresh
	}
	if claims.Family == "" {
		return nil, apperr.ErrInvalidRefresh
	}
	return &claims, nil
}

func parse(raw string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return apperr.ErrTokenExpired
		}
		return apperr.Wrap(apperr.CodeTokenInvalid, "invalid token", err)
	}
	if !tkn.Valid {
		return apperr.ErrTokenInvalid
	}
	return nil
}
