package assessment

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// Repository хранит результаты опросников.
type Repository interface {
	// Save сохраняет результат вместе с ответами.
	Save(ctx context.Context, r *Result) error

	// ListByUser возвращает результаты пользователя, новые первыми.
	ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]Result, error)
}
