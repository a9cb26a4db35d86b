// Package session holds the refresh-token rotation state machine and the
// revocation bookkeeping behind it. The Store interface is the single source
// of truth for "is this token/family currently valid"; the compare-and-swap
// on the family record is what makes concurrent rotation safe.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

const (
	familyPrefix       = "refresh_family:"
	userFamiliesPrefix = "user_families:"
	blacklistPrefix    = "blacklist:"
)

var (
	ErrFamilyNotFound = errors.New("session: family not found")
	// ErrConflict means the family's current value changed between read and
	// write; the caller lost a rotation race.
	ErrConflict = errors.New("session: concurrent rotation conflict")
)

// FamilyRecord tracks one device session. Current holds the SHA-256 hex of
// the latest refresh token issued for the family, never the token itself.
type FamilyRecord struct {
	Family    string    `json:"family"`
	UserID    string    `json:"user_id"`
	Current   string    `json:"current"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	GetFamily(ctx context.Context, family string) (*FamilyRecord, error)
	PutFamily(ctx context.Context, rec *FamilyRecord, ttl time.Duration) error
	// CompareAndSwapFamily replaces the family's current token hash only if
	// it still equals old. Returns ErrConflict otherwise.
	CompareAndSwapFamily(ctx context.Context, family, old, new string, ttl time.Duration) error
	DeleteFamily(ctx context.Context, family string) error

	AddUserFamily(ctx context.Context, userID, family string, ttl time.Duration) error
	UserFamilies(ctx context.Context, userID string) ([]string, error)
	RemoveUserFamily(ctx context.Context, userID, family string) error
	DeleteUserFamilies(ctx context.Context, userID string) error

	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// HashToken is how refresh token values are stored and compared.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
