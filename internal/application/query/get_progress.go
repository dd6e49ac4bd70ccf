// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Возвращает текущий прогресс пользователя: суммарный XP, уровень,
// XP внутри уровня, порог и долю заполнения.
// Сначала читает кэш; при промахе - хранилище, затем наполняет кэш.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery содержит параметры запроса прогресса.
type GetProgressQuery struct {
	// UserID - UUID пользователя.
	UserID string
}

// GetProgressHandler обрабатывает GetProgressQuery.
type GetProgressHandler struct {
	repo  progression.Repository
	cache progression.Cache
	ttl   time.Duration
}

// NewGetProgressHandler создаёт обработчик. cache может быть nil.
func NewGetProgressHandler(repo progression.Repository, cache progression.Cache, ttl time.Duration) *GetProgressHandler {
	return &GetProgressHandler{repo: repo, cache: cache, ttl: ttl}
}

// Handle выполняет запрос. Пользователь без начислений получает нулевой прогресс.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (progression.Snapshot, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return progression.Snapshot{}, err
	}
	log := logger.FromContext(ctx)

	if h.cache != nil {
		snap, ok, err := h.cache.GetSnapshot(ctx, userID)
		if err != nil {
			// кэш не обязателен для чтения
			log.Warn("progress cache read failed", logger.UserID(userID.String()), logger.Err(err))
		} else if ok {
			return snap, nil
		}
	}

	state, err := h.repo.Get(ctx, userID)
	if err != nil {
		if !shared.IsNotFound(err) {
			return progression.Snapshot{}, err
		}
		state = progression.NewState(userID)
	}

	snap, err := state.Snapshot()
	if err != nil {
		return progression.Snapshot{}, err
	}

	if h.cache != nil && state.Version > 0 {
		if err := h.cache.SetSnapshot(ctx, snap, h.ttl); err != nil {
			log.Warn("progress cache write failed", logger.UserID(userID.String()), logger.Err(err))
		}
	}
	return snap, nil
}
