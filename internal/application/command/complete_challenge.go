package command

import (
	"context"
	"fmt"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE CHALLENGE COMMAND
// Records a daily challenge for the current calendar day in the configured
// timezone and grants its reward. A second completion on the same day fails.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteChallengeCommand identifies the challenge being completed.
type CompleteChallengeCommand struct {
	UserID      string
	ChallengeID string
}

// CompleteChallengeResult contains the recorded completion.
type CompleteChallengeResult struct {
	Completion challenge.Completion `json:"completion"`
	XP         *GrantXPResult       `json:"xp"`
}

// CompleteChallengeHandler handles the CompleteChallengeCommand.
type CompleteChallengeHandler struct {
	completions challenge.Repository
	granter     Granter
	publisher   shared.EventPublisher
	loc         *time.Location
	now         func() time.Time
}

// NewCompleteChallengeHandler creates a new CompleteChallengeHandler.
// loc defines the calendar day; nil means UTC.
func NewCompleteChallengeHandler(completions challenge.Repository, granter Granter, publisher shared.EventPublisher, loc *time.Location) *CompleteChallengeHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CompleteChallengeHandler{completions: completions, granter: granter, publisher: publisher, loc: loc, now: utcNow}
}

// Handle records the completion and grants the reward. If the grant fails the
// completion is removed again, so the call can be retried the same day.
func (h *CompleteChallengeHandler) Handle(ctx context.Context, cmd CompleteChallengeCommand) (*CompleteChallengeResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	c, err := challenge.Find(cmd.ChallengeID)
	if err != nil {
		return nil, err
	}

	completion := challenge.NewCompletion(userID, c, h.now(), h.loc)
	if err := h.completions.Record(ctx, completion); err != nil {
		return nil, err
	}

	xp, err := grantFor(ctx, h.granter, userID, completion.RewardXP, progression.SourceDailyChallenge, c.ID)
	if err != nil {
		// without the reward the completion does not count; free the day for a retry
		if rmErr := h.completions.Remove(ctx, completion); rmErr != nil {
			logger.FromContext(ctx).Error("failed to roll back challenge completion",
				logger.UserID(userID.String()),
				logger.String("challenge_id", c.ID),
				logger.Err(rmErr),
			)
		}
		return nil, fmt.Errorf("complete_challenge: %w", err)
	}

	publishAll(ctx, h.publisher, []shared.Event{
		shared.NewChallengeCompletedEvent(userID.String(), c.ID, completion.Day),
	})
	return &CompleteChallengeResult{Completion: completion, XP: xp}, nil
}
