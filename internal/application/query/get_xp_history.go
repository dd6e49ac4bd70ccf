package query

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// GetXPHistoryQuery - запрос журнала начислений.
type GetXPHistoryQuery struct {
	UserID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// Validate нормализует лимит.
func (q *GetXPHistoryQuery) Validate() error {
	if q.Limit < 0 {
		return shared.InvalidArgument("query", "GetXPHistory", "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	return nil
}

// GetXPHistoryHandler обрабатывает GetXPHistoryQuery.
type GetXPHistoryHandler struct {
	repo progression.Repository
}

// NewGetXPHistoryHandler создаёт обработчик.
func NewGetXPHistoryHandler(repo progression.Repository) *GetXPHistoryHandler {
	return &GetXPHistoryHandler{repo: repo}
}

// Handle возвращает записи журнала, новые первыми.
func (h *GetXPHistoryHandler) Handle(ctx context.Context, q GetXPHistoryQuery) ([]progression.LedgerEntry, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	entries, err := h.repo.History(ctx, userID, q.Limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []progression.LedgerEntry{}
	}
	return entries, nil
}
