package command

import (
	"context"
	"fmt"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ASSESSMENT COMMAND
// Scores a PHQ-9 or GAD-7 questionnaire, stores it and grants quiz_completion XP.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAssessmentCommand contains the answers of one questionnaire.
type SubmitAssessmentCommand struct {
	UserID    string
	Kind      string
	Responses []int
}

// SubmitAssessmentResult contains the scored result.
type SubmitAssessmentResult struct {
	Result *assessment.Result `json:"result"`
	XP     *GrantXPResult     `json:"xp,omitempty"`
}

// SubmitAssessmentHandler handles the SubmitAssessmentCommand.
type SubmitAssessmentHandler struct {
	results   assessment.Repository
	granter   Granter
	publisher shared.EventPublisher
	features  Features
	now       func() time.Time
}

// NewSubmitAssessmentHandler creates a new SubmitAssessmentHandler.
func NewSubmitAssessmentHandler(results assessment.Repository, granter Granter, publisher shared.EventPublisher, features Features) *SubmitAssessmentHandler {
	if features == nil {
		features = AllFeatures{}
	}
	return &SubmitAssessmentHandler{results: results, granter: granter, publisher: publisher, features: features, now: utcNow}
}

// Handle scores and stores the assessment.
func (h *SubmitAssessmentHandler) Handle(ctx context.Context, cmd SubmitAssessmentCommand) (*SubmitAssessmentResult, error) {
	userID, err := shared.NewUserID(cmd.UserID)
	if err != nil {
		return nil, err
	}
	kind, err := assessment.ParseKind(cmd.Kind)
	if err != nil {
		return nil, err
	}

	res, err := assessment.NewResult(userID, kind, cmd.Responses, h.now())
	if err != nil {
		return nil, err
	}
	if err := h.results.Save(ctx, res); err != nil {
		return nil, fmt.Errorf("submit_assessment: %w", err)
	}

	// responses and score stay out of logs
	logger.FromContext(ctx).Info("assessment submitted",
		logger.UserID(userID.String()),
		logger.String("kind", string(kind)),
		logger.Bool("needs_follow_up", res.NeedsFollowUp),
	)

	publishAll(ctx, h.publisher, []shared.Event{
		shared.NewAssessmentCompletedEvent(userID.String(), string(kind), string(res.Severity), res.NeedsFollowUp),
	})

	out := &SubmitAssessmentResult{Result: res}
	if !h.features.AssessmentXPEnabled(userID.String()) {
		return out, nil
	}

	xp, err := grantFor(ctx, h.granter, userID, progression.QuizCompletionXP, progression.SourceQuizCompletion, res.ID)
	if err != nil {
		return nil, fmt.Errorf("submit_assessment: %w", err)
	}
	out.XP = xp
	return out, nil
}
