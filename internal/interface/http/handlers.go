package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/soulspace/soulspace-hub/internal/application/command"
	"github.com/soulspace/soulspace-hub/internal/application/query"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/internal/interface/http/handlers"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		handlers.WriteJSON(w, r, http.StatusOK, map[string]any{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	handlers.WriteJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			handlers.WriteError(w, r, http.StatusServiceUnavailable, "not_ready", status.Message)
			return
		}
	}
	handlers.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLIC HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleDescribeLevel handles GET /api/v1/levels/{totalXp}
func (s *Server) handleDescribeLevel(w http.ResponseWriter, r *http.Request) {
	totalXP, err := strconv.ParseInt(r.PathValue("totalXp"), 10, 64)
	if err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, "invalid_argument", "totalXp must be an integer")
		return
	}
	dto, err := query.DescribeLevel(totalXP)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, dto)
}

type categorizeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// handleCategorize handles POST /api/v1/goals/categorize
func (s *Server) handleCategorize(w http.ResponseWriter, r *http.Request) {
	var req categorizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	dto := s.deps.CategorizeText.Handle(query.CategorizeTextQuery{
		Title:       req.Title,
		Description: req.Description,
	})
	handlers.WriteJSON(w, r, http.StatusOK, dto)
}

// handleListChallenges handles GET /api/v1/challenges. Authenticated callers
// also see which challenges they finished today.
func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	dto, err := s.deps.ListChallenges.Handle(r.Context(), query.ListChallengesQuery{
		UserID: handlers.UserID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, r, http.StatusOK, dto, &handlers.ResponseMeta{TotalCount: len(dto.Challenges)})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetProgress handles GET /api/v1/me/progress
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.GetProgress.Handle(r.Context(), query.GetProgressQuery{
		UserID: handlers.UserID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, snap)
}

// handleGetXPHistory handles GET /api/v1/me/xp/history
func (s *Server) handleGetXPHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit")
	if !ok {
		return
	}
	entries, err := s.deps.GetXPHistory.Handle(r.Context(), query.GetXPHistoryQuery{
		UserID: handlers.UserID(r.Context()),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, r, http.StatusOK, entries, &handlers.ResponseMeta{TotalCount: len(entries)})
}

type grantXPRequest struct {
	// Amount may be omitted for sources with a standard reward.
	Amount   int64  `json:"amount"`
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
}

// handleGrantXP handles POST /api/v1/users/{userId}/xp (service key).
func (s *Server) handleGrantXP(w http.ResponseWriter, r *http.Request) {
	var req grantXPRequest
	if !s.decode(w, r, &req) {
		return
	}
	source, err := progression.ParseSource(req.Source)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	amount := req.Amount
	if amount == 0 {
		amount = source.DefaultAmount()
	}

	res, err := s.deps.GrantXP.Handle(r.Context(), command.GrantXPCommand{
		UserID:        r.PathValue("userId"),
		Amount:        amount,
		Source:        source,
		SourceID:      req.SourceID,
		CorrelationID: handlers.RequestID(r.Context()),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// GOAL HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetGoalBoard handles GET /api/v1/me/goals/board
func (s *Server) handleGetGoalBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.deps.GetGoalBoard.Handle(r.Context(), query.GetGoalBoardQuery{
		UserID:       handlers.UserID(r.Context()),
		IncludeEmpty: queryBool(r, "include_empty"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, board)
}

type createGoalRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// handleCreateGoal handles POST /api/v1/me/goals
func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if !s.decode(w, r, &req) {
		return
	}
	g, err := s.deps.CreateGoal.Handle(r.Context(), command.CreateGoalCommand{
		UserID:      handlers.UserID(r.Context()),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusCreated, g)
}

type goalProgressRequest struct {
	Progress int `json:"progress"`
}

// handleUpdateGoalProgress handles PATCH /api/v1/me/goals/{id}/progress
func (s *Server) handleUpdateGoalProgress(w http.ResponseWriter, r *http.Request) {
	var req goalProgressRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.GoalProgress.UpdateProgress(r.Context(), command.UpdateGoalProgressCommand{
		UserID:   handlers.UserID(r.Context()),
		GoalID:   r.PathValue("id"),
		Progress: req.Progress,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, res)
}

// handleCompleteGoal handles POST /api/v1/me/goals/{id}/complete
func (s *Server) handleCompleteGoal(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.GoalProgress.Complete(r.Context(), command.CompleteGoalCommand{
		UserID: handlers.UserID(r.Context()),
		GoalID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// WELLBEING HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type submitAssessmentRequest struct {
	Kind      string `json:"kind"`
	Responses []int  `json:"responses"`
}

// handleSubmitAssessment handles POST /api/v1/me/assessments
func (s *Server) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var req submitAssessmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.deps.SubmitAssessment.Handle(r.Context(), command.SubmitAssessmentCommand{
		UserID:    handlers.UserID(r.Context()),
		Kind:      req.Kind,
		Responses: req.Responses,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusCreated, res)
}

// handleListAssessments handles GET /api/v1/me/assessments
func (s *Server) handleListAssessments(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit")
	if !ok {
		return
	}
	results, err := s.deps.ListAssessments.Handle(r.Context(), query.ListAssessmentsQuery{
		UserID: handlers.UserID(r.Context()),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, r, http.StatusOK, results, &handlers.ResponseMeta{TotalCount: len(results)})
}

// handleCompleteChallenge handles POST /api/v1/me/challenges/{id}/complete
func (s *Server) handleCompleteChallenge(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.CompleteChallenge.Handle(r.Context(), command.CompleteChallengeCommand{
		UserID:      handlers.UserID(r.Context()),
		ChallengeID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusCreated, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPANION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type companionRequest struct {
	DisplayName   string   `json:"display_name"`
	Interests     []string `json:"interests"`
	Communication string   `json:"communication"`
	Available     bool     `json:"available"`
}

// handleUpsertCompanion handles PUT /api/v1/me/companion
func (s *Server) handleUpsertCompanion(w http.ResponseWriter, r *http.Request) {
	var req companionRequest
	if !s.decode(w, r, &req) {
		return
	}
	profile, err := s.deps.UpsertCompanion.Handle(r.Context(), command.UpsertCompanionCommand{
		UserID:        handlers.UserID(r.Context()),
		DisplayName:   req.DisplayName,
		Interests:     req.Interests,
		Communication: req.Communication,
		Available:     req.Available,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, profile)
}

// handleFindCompanions handles GET /api/v1/me/companions
func (s *Server) handleFindCompanions(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.queryInt(w, r, "limit")
	if !ok {
		return
	}
	matches, err := s.deps.FindCompanions.Handle(r.Context(), query.FindCompanionsQuery{
		UserID: handlers.UserID(r.Context()),
		Limit:  limit,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	handlers.WriteJSONWithMeta(w, r, http.StatusOK, matches, &handlers.ResponseMeta{TotalCount: len(matches)})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decode reads a JSON body into dst, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handlers.WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		handlers.WriteError(w, r, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON: "+err.Error())
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter; 0 means absent.
func (s *Server) queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		handlers.WriteError(w, r, http.StatusBadRequest, "invalid_argument", key+" must be an integer")
		return 0, false
	}
	return v, true
}

func queryBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return v
}

// statusFor maps a domain error kind to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsInvalidArgument(err):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeDomainError writes the error envelope for err. Internal errors are
// logged and their details withheld from the client.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		handlers.WriteError(w, r, status, code, "An unexpected error occurred")
		return
	}

	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	handlers.WriteError(w, r, status, code, message)
}
