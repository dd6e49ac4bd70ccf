package query

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ListAssessmentsQuery - история опросников пользователя.
type ListAssessmentsQuery struct {
	UserID string
	Limit  int
}

// ListAssessmentsHandler обрабатывает ListAssessmentsQuery.
// Ответы на вопросы наружу не отдаются, только сумма и уровень.
type ListAssessmentsHandler struct {
	results assessment.Repository
}

// NewListAssessmentsHandler создаёт обработчик.
func NewListAssessmentsHandler(results assessment.Repository) *ListAssessmentsHandler {
	return &ListAssessmentsHandler{results: results}
}

// Handle возвращает результаты, новые первыми.
func (h *ListAssessmentsHandler) Handle(ctx context.Context, q ListAssessmentsQuery) ([]assessment.Result, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > shared.MaxPageSize {
		limit = shared.DefaultPageSize
	}

	results, err := h.results.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []assessment.Result{}
	}
	return results, nil
}
