package command

import (
	"context"
	"fmt"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL PROGRESS AND COMPLETION
// Progress of 100 completes a goal. Completion grants goal_completion XP once;
// a completed goal cannot be completed or updated again.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateGoalProgressCommand sets the progress percentage of a goal.
type UpdateGoalProgressCommand struct {
	UserID   string
	GoalID   string
	Progress int
}

// CompleteGoalCommand marks a goal completed.
type CompleteGoalCommand struct {
	UserID string
	GoalID string
}

// GoalProgressResult is returned by both goal handlers.
type GoalProgressResult struct {
	Goal *goal.Goal `json:"goal"`

	// Completed is true when this call completed the goal.
	Completed bool `json:"completed"`

	// XP is set when completion granted XP.
	XP *GrantXPResult `json:"xp,omitempty"`
}

// GoalProgressHandler handles UpdateGoalProgressCommand and CompleteGoalCommand.
type GoalProgressHandler struct {
	goals     goal.Repository
	granter   Granter
	publisher shared.EventPublisher
	now       func() time.Time
}

// NewGoalProgressHandler creates a new GoalProgressHandler.
func NewGoalProgressHandler(goals goal.Repository, granter Granter, publisher shared.EventPublisher) *GoalProgressHandler {
	return &GoalProgressHandler{goals: goals, granter: granter, publisher: publisher, now: utcNow}
}

// UpdateProgress applies a progress update.
func (h *GoalProgressHandler) UpdateProgress(ctx context.Context, cmd UpdateGoalProgressCommand) (*GoalProgressResult, error) {
	g, err := h.load(ctx, cmd.UserID, cmd.GoalID)
	if err != nil {
		return nil, err
	}

	prev := *g
	completed, err := g.UpdateProgress(cmd.Progress, h.now())
	if err != nil {
		return nil, err
	}
	return h.save(ctx, g, prev, completed)
}

// Complete completes the goal.
func (h *GoalProgressHandler) Complete(ctx context.Context, cmd CompleteGoalCommand) (*GoalProgressResult, error) {
	g, err := h.load(ctx, cmd.UserID, cmd.GoalID)
	if err != nil {
		return nil, err
	}

	prev := *g
	if err := g.Complete(h.now()); err != nil {
		return nil, err
	}
	return h.save(ctx, g, prev, true)
}

func (h *GoalProgressHandler) load(ctx context.Context, rawUserID, goalID string) (*goal.Goal, error) {
	userID, err := shared.NewUserID(rawUserID)
	if err != nil {
		return nil, err
	}
	if goalID == "" {
		return nil, shared.NewDomainError("command", "LoadGoal", shared.ErrEmptyValue, "goal ID is required")
	}

	g, err := h.goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	// another user's goal is reported as missing
	if !g.OwnedBy(userID) {
		return nil, shared.ErrGoalNotFound
	}
	return g, nil
}

// save persists g. When g was just completed and the XP grant fails, the goal
// is put back to prev so the completion can be retried.
func (h *GoalProgressHandler) save(ctx context.Context, g *goal.Goal, prev goal.Goal, completed bool) (*GoalProgressResult, error) {
	if err := h.goals.Update(ctx, g); err != nil {
		return nil, fmt.Errorf("update_goal: %w", err)
	}

	result := &GoalProgressResult{Goal: g, Completed: completed}
	if !completed {
		return result, nil
	}

	xp, err := grantFor(ctx, h.granter, g.UserID, progression.GoalCompletionXP, progression.SourceGoalCompletion, g.ID)
	if err != nil {
		log := logger.FromContext(ctx).With(logger.UserID(g.UserID.String()), logger.GoalID(g.ID))
		log.Error("goal completion XP grant failed, restoring goal", logger.Err(err))
		if rbErr := h.goals.Update(ctx, &prev); rbErr != nil {
			log.Error("failed to restore goal", logger.Err(rbErr))
		}
		return nil, fmt.Errorf("complete_goal: %w", err)
	}
	result.XP = xp

	publishAll(ctx, h.publisher, []shared.Event{
		shared.NewGoalEvent(shared.EventGoalCompleted, g.UserID.String(), g.ID, g.Title, string(g.Category)),
	})
	return result, nil
}
