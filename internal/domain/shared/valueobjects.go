package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID identifies a user of the hosted auth provider (UUID format).
type UserID string

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	_, err := uuid.Parse(string(u))
	return err == nil
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID parses and normalizes a user ID.
func NewUserID(id string) (UserID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", WrapError("shared", "NewUserID", ErrInvalidID, "user ID must be a UUID", err)
	}
	return UserID(parsed.String()), nil
}

// NewEntityID generates a fresh random identifier for goals, ledger entries and results.
func NewEntityID() string {
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Page size limits for list queries
// ═══════════════════════════════════════════════════════════════════════════

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
