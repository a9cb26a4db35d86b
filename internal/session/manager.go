package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/logging"
	"github.com/brightpath/lms/internal/tokens"
)

// EventPublisher is how the manager reports security-relevant events
// out-of-band. Token reuse is a possible-compromise signal and must not be
// lost in a log line alone.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key string, event any) error
}

const SecurityTopic = "security_events"

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Manager drives the login/refresh/logout lifecycle. Credential checking
// happens upstream; the manager owns token minting and rotation state.
type Manager struct {
	Codec  *tokens.Codec
	Store  Store
	Events EventPublisher
}

// Login mints a fresh token pair under a brand-new family and records it.
func (m *Manager) Login(ctx context.Context, id tokens.Identity) (*TokenPair, error) {
	family := uuid.NewString()

	access, _, accessExp, err := m.Codec.IssueAccess(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "issue access token", err)
	}
	refresh, refreshExp, err := m.Codec.IssueRefresh(id, family)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "issue refresh token", err)
	}

	rec := &FamilyRecord{
		Family:    family,
		UserID:    id.UserID,
		Current:   HashToken(refresh),
		CreatedAt: time.Now(),
	}
	if err := m.Store.PutFamily(ctx, rec, m.Codec.RefreshTTL); err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "persist refresh family", err)
	}
	if err := m.Store.AddUserFamily(ctx, id.UserID, family, m.Codec.RefreshTTL); err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "index refresh family", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Refresh rotates a family. Presenting a superseded token value is theft:
// the whole family dies so the attacker and the legitimate holder both have
// to re-login. A lost rotation race is treated the same way, no grace window.
func (m *Manager) Refresh(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := m.Codec.VerifyRefresh(presented)
	if err != nil {
		return nil, err
	}

	rec, err := m.Store.GetFamily(ctx, claims.Family)
	if errors.Is(err, ErrFamilyNotFound) {
		return nil, apperr.ErrInvalidRefresh
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "load refresh family", err)
	}

	presentedHash := HashToken(presented)
	if presentedHash != rec.Current {
		return nil, m.onReuse(ctx, rec)
	}

	id := claims.Identity()
	access, _, accessExp, err := m.Codec.IssueAccess(id)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "issue access token", err)
	}
	refresh, refreshExp, err := m.Codec.IssueRefresh(id, rec.Family)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "issue refresh token", err)
	}

	err = m.Store.CompareAndSwapFamily(ctx, rec.Family, presentedHash, HashToken(refresh), m.Codec.RefreshTTL)
	switch {
	case errors.Is(err, ErrConflict):
		return nil, m.onReuse(ctx, rec)
	case errors.Is(err, ErrFamilyNotFound):
		return nil, apperr.ErrInvalidRefresh
	case err != nil:
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "rotate refresh family", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) onReuse(ctx context.Context, rec *FamilyRecord) error {
	l := logging.FromContext(ctx).With("svc", "session.refresh")
	if err := m.Store.DeleteFamily(ctx, rec.Family); err != nil {
		l.Error("reuse cleanup failed", "family", rec.Family, "error", err)
	}
	if err := m.Store.RemoveUserFamily(ctx, rec.UserID, rec.Family); err != nil {
		l.Error("reuse cleanup failed", "family", rec.Family, "error", err)
	}
	l.Warn("refresh token reuse detected", "user_id", rec.UserID, "family", rec.Family)
	if m.Events != nil {
		event := map[string]any{
			"type":    "token_reuse_detected",
			"user_id": rec.UserID,
			"family":  rec.Family,
			"at":      time.Now().UTC(),
		}
		if err := m.Events.PublishEvent(ctx, SecurityTopic, rec.UserID, event); err != nil {
			l.Error("publish reuse event failed", "error", err)
		}
	}
	return apperr.ErrTokenReuse
}

// Logout blacklists one access token for its remaining lifetime. The TTL is
// never shortened below the token's own validity or a revoked token would
// come back to life.
func (m *Manager) Logout(ctx context.Context, jti string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}
	if err := m.Store.Blacklist(ctx, jti, remaining); err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "blacklist token", err)
	}
	return nil
}

// RevokeFamily ends one device session (its refresh lineage). Used by the
// single-session logout path alongside access-token blacklisting.
func (m *Manager) RevokeFamily(ctx context.Context, userID, family string) error {
	if err := m.Store.DeleteFamily(ctx, family); err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "delete refresh family", err)
	}
	if err := m.Store.RemoveUserFamily(ctx, userID, family); err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "unindex refresh family", err)
	}
	return nil
}

// LogoutAll drops every refresh family for the user. Already-issued access
// tokens are left to expire on their own short TTL; accepted residual risk.
func (m *Manager) LogoutAll(ctx context.Context, userID string) error {
	fams, err := m.Store.UserFamilies(ctx, userID)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "list refresh families", err)
	}
	for _, family := range fams {
		if err := m.Store.DeleteFamily(ctx, family); err != nil {
			return apperr.Wrap(apperr.CodeServiceUnavailable, "delete refresh family", err)
		}
	}
	if err := m.Store.DeleteUserFamilies(ctx, userID); err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "delete family index", err)
	}
	return nil
}

// IsRevoked reports blacklist membership. Store failure propagates; the
// request gate fails closed rather than assuming "not revoked".
func (m *Manager) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := m.Store.IsBlacklisted(ctx, jti)
	if err != nil {
		return false, apperr.Wrap(apperr.CodeServiceUnavailable, "blacklist lookup", err)
	}
	return revoked, nil
}
