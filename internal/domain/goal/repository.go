package goal

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// Repository определяет операции хранения целей.
type Repository interface {
	// Create сохраняет новую цель.
	Create(ctx context.Context, g *Goal) error

	// GetByID возвращает цель по ID.
	// Возвращает shared.ErrGoalNotFound, если цель не найдена.
	GetByID(ctx context.Context, id string) (*Goal, error)

	// Update сохраняет изменения статуса и прогресса.
	// Возвращает shared.ErrGoalNotFound, если цель не найдена.
	Update(ctx context.Context, g *Goal) error

	// ListByUser возвращает цели пользователя в порядке создания.
	ListByUser(ctx context.Context, userID shared.UserID) ([]Goal, error)
}
