package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ProgressionRepository implements progression.Repository on SQLite.
type ProgressionRepository struct {
	store *Store
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(store *Store) *ProgressionRepository {
	return &ProgressionRepository{store: store}
}

var _ progression.Repository = (*ProgressionRepository)(nil)

// Get returns the stored state or shared.ErrProgressNotFound.
func (r *ProgressionRepository) Get(ctx context.Context, userID shared.UserID) (progression.State, error) {
	var (
		s         progression.State
		updatedAt int64
	)
	err := r.store.db.QueryRowContext(ctx, `
SELECT total_xp, version, updated_at FROM progression_state WHERE user_id = ?
`, userID.String()).Scan(&s.TotalXP, &s.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progression.State{}, shared.ErrProgressNotFound
		}
		return progression.State{}, fmt.Errorf("get progression state: %w", err)
	}
	s.UserID = userID
	s.UpdatedAt = fromMillis(updatedAt)
	return s, nil
}

// Save compares expectedVersion and writes next plus the ledger entries atomically.
func (r *ProgressionRepository) Save(ctx context.Context, next progression.State, expectedVersion int64, entries ...progression.LedgerEntry) error {
	return r.store.withTx(ctx, func(tx *sql.Tx) error {
		var (
			res sql.Result
			err error
		)
		if expectedVersion == 0 {
			res, err = tx.ExecContext(ctx, `
INSERT INTO progression_state (user_id, total_xp, version, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id) DO NOTHING
`, next.UserID.String(), next.TotalXP, next.Version, toMillis(next.UpdatedAt))
		} else {
			res, err = tx.ExecContext(ctx, `
UPDATE progression_state
SET total_xp = ?, version = ?, updated_at = ?
WHERE user_id = ? AND version = ?
`, next.TotalXP, next.Version, toMillis(next.UpdatedAt), next.UserID.String(), expectedVersion)
		}
		if err != nil {
			return fmt.Errorf("write progression state: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("write progression state: %w", err)
		}
		if n == 0 {
			return shared.ErrVersionConflict
		}

		for _, entry := range entries {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO xp_ledger (id, user_id, amount, source, source_id, total_after, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
				entry.ID,
				entry.UserID.String(),
				entry.Amount,
				string(entry.Source),
				entry.SourceID,
				entry.TotalAfter,
				toMillis(entry.CreatedAt),
			); err != nil {
				return fmt.Errorf("append xp ledger entry: %w", err)
			}
		}
		return nil
	})
}

// History returns the newest ledger entries first.
func (r *ProgressionRepository) History(ctx context.Context, userID shared.UserID, limit int) ([]progression.LedgerEntry, error) {
	rows, err := r.store.db.QueryContext(ctx, `
SELECT id, amount, source, source_id, total_after, created_at
FROM xp_ledger
WHERE user_id = ?
ORDER BY created_at DESC, total_after DESC
LIMIT ?
`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query xp ledger: %w", err)
	}
	defer rows.Close()

	var entries []progression.LedgerEntry
	for rows.Next() {
		var (
			e         progression.LedgerEntry
			source    string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Amount, &source, &e.SourceID, &e.TotalAfter, &createdAt); err != nil {
			return nil, fmt.Errorf("scan xp ledger row: %w", err)
		}
		e.UserID = userID
		e.Source = progression.Source(source)
		e.CreatedAt = fromMillis(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
