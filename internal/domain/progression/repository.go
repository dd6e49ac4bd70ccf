package progression

import (
	"context"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранения прогрессии.
type Repository interface {
	// Get возвращает состояние пользователя.
	// Возвращает shared.ErrProgressNotFound, если состояния ещё нет.
	Get(ctx context.Context, userID shared.UserID) (State, error)

	// Save атомарно записывает next и добавляет записи в журнал.
	// Запись выполняется, только если хранимая версия равна expectedVersion;
	// иначе возвращается shared.ErrVersionConflict и ничего не сохраняется.
	// expectedVersion == 0 означает, что состояния ещё нет.
	Save(ctx context.Context, next State, expectedVersion int64, entries ...LedgerEntry) error

	// History возвращает последние записи журнала, новые первыми.
	History(ctx context.Context, userID shared.UserID, limit int) ([]LedgerEntry, error)
}

// Cache - кэш снапшотов прогресса для чтения.
type Cache interface {
	// GetSnapshot возвращает снапшот; ok == false при промахе.
	GetSnapshot(ctx context.Context, userID shared.UserID) (Snapshot, bool, error)

	// SetSnapshot сохраняет снапшот с указанным TTL.
	SetSnapshot(ctx context.Context, snap Snapshot, ttl time.Duration) error

	// Invalidate удаляет снапшот после записи.
	Invalidate(ctx context.Context, userID shared.UserID) error
}
