package command

import (
	"context"
	"fmt"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE GOAL COMMAND
// Stores a new goal. The category is assigned once, from title and description.
// ══════════════════════════════════════════════════════════════════════════════

// CreateGoalCommand contains the data for a new goal.
type CreateGoalCommand struct {
	UserID      string
	Title       string
	Description string
}

// CreateGoalHandler handles the CreateGoalCommand.
type CreateGoalHandler struct {
	goals     goal.Repository
	publisher shared.EventPublisher
	recorder  Recorder
	now       func() time.Time
}

// NewCreateGoalHandler creates a new CreateGoalHandler.
func NewCreateGoalHandler(goals goal.Repository, publisher shared.EventPublisher, recorder Recorder) *CreateGoalHandler {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &CreateGoalHandler{goals: goals, publisher: publisher, recorder: recorder, now: utcNow}
}

// Handle creates the goal and returns it.
func (h *CreateGoalHandler) Handle(ctx context.Context, cmd CreateGoalCommand) (*goal.Goal, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}

	g, err := goal.NewGoal(goal.NewGoalParams{
		UserID:      userID,
		Title:       cmd.Title,
		Description: cmd.Description,
	}, h.now())
	if err != nil {
		return nil, err
	}

	if err := h.goals.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create_goal: %w", err)
	}
	h.recorder.ObserveCategorized(string(g.Category))

	logger.FromContext(ctx).Info("goal created",
		logger.UserID(userID.String()),
		logger.GoalID(g.ID),
		logger.Category(string(g.Category)),
	)

	publishAll(ctx, h.publisher, []shared.Event{
		shared.NewGoalEvent(shared.EventGoalCreated, userID.String(), g.ID, g.Title, string(g.Category)),
	})
	return g, nil
}
