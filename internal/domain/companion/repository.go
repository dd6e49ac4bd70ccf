package companion

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// Repository хранит профили для подбора.
type Repository interface {
	// Upsert создаёт или обновляет профиль.
	Upsert(ctx context.Context, p *Profile) error

	// Get возвращает профиль.
	// Возвращает shared.ErrCompanionProfileNotFound, если профиля нет.
	Get(ctx context.Context, userID shared.UserID) (*Profile, error)

	// ListAvailable возвращает доступные профили, кроме exclude.
	ListAvailable(ctx context.Context, exclude shared.UserID, limit int) ([]Profile, error)
}
