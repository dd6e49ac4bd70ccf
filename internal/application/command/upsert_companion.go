package command

import (
	"context"
	"fmt"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// UpsertCompanionCommand creates or replaces a user's companion profile.
type UpsertCompanionCommand struct {
	UserID        string
	DisplayName   string
	Interests     []string
	Communication string
	Available     bool
}

// UpsertCompanionHandler handles the UpsertCompanionCommand.
type UpsertCompanionHandler struct {
	profiles companion.Repository
	now      func() time.Time
}

// NewUpsertCompanionHandler creates a new UpsertCompanionHandler.
func NewUpsertCompanionHandler(profiles companion.Repository) *UpsertCompanionHandler {
	return &UpsertCompanionHandler{profiles: profiles, now: utcNow}
}

// Handle validates and stores the profile.
func (h *UpsertCompanionHandler) Handle(ctx context.Context, cmd UpsertCompanionCommand) (*companion.Profile, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	p, err := companion.NewProfile(userID, cmd.DisplayName, cmd.Interests,
		companion.CommunicationPreference(cmd.Communication), cmd.Available, h.now())
	if err != nil {
		return nil, err
	}
	if err := h.profiles.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert_companion: %w", err)
	}
	return p, nil
}
