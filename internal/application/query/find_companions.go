package query

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND COMPANIONS QUERY
// Подбирает собеседников по общим интересам и способу общения.
// Требует, чтобы у самого пользователя был профиль.
// ══════════════════════════════════════════════════════════════════════════════

// candidatePool - сколько доступных профилей оценивается за один запрос.
const candidatePool = 200

// FindCompanionsQuery - запрос подбора.
type FindCompanionsQuery struct {
	UserID string

	// Limit - количество результатов (по умолчанию 5, максимум 20).
	Limit int
}

// Validate нормализует лимит.
func (q *FindCompanionsQuery) Validate() error {
	if q.Limit < 0 {
		return shared.InvalidArgument("query", "FindCompanions", "limit cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = 5
	}
	if q.Limit > 20 {
		q.Limit = 20
	}
	return nil
}

// MatchingFeature сообщает, включён ли подбор для пользователя.
type MatchingFeature interface {
	CompanionMatchingEnabled(userID string) bool
}

// FindCompanionsHandler обрабатывает FindCompanionsQuery.
type FindCompanionsHandler struct {
	profiles companion.Repository
	feature  MatchingFeature
}

// NewFindCompanionsHandler создаёт обработчик. feature может быть nil.
func NewFindCompanionsHandler(profiles companion.Repository, feature MatchingFeature) *FindCompanionsHandler {
	return &FindCompanionsHandler{profiles: profiles, feature: feature}
}

// Handle возвращает кандидатов по убыванию оценки.
func (h *FindCompanionsHandler) Handle(ctx context.Context, q FindCompanionsQuery) ([]companion.Match, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}
	if h.feature != nil && !h.feature.CompanionMatchingEnabled(userID.String()) {
		return nil, shared.NewDomainError("query", "FindCompanions", shared.ErrForbidden, "companion matching is not enabled")
	}

	seeker, err := h.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates, err := h.profiles.ListAvailable(ctx, userID, candidatePool)
	if err != nil {
		return nil, err
	}
	return companion.Rank(*seeker, candidates, q.Limit), nil
}
