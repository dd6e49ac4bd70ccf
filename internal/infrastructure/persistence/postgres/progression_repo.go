package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressionRepository implements progression.Repository for PostgreSQL.
type ProgressionRepository struct {
	conn *Connection
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(conn *Connection) *ProgressionRepository {
	return &ProgressionRepository{conn: conn}
}

var _ progression.Repository = (*ProgressionRepository)(nil)

// Get returns the stored progression state.
func (r *ProgressionRepository) Get(ctx context.Context, userID shared.UserID) (progression.State, error) {
	query := `
		SELECT user_id, total_xp, version, updated_at
		FROM progression_state
		WHERE user_id = $1
	`

	var s progression.State
	var id string
	err := r.conn.QueryRow(ctx, query, userID.String()).Scan(&id, &s.TotalXP, &s.Version, &s.UpdatedAt)
	if err != nil {
		if IsNoRows(err) {
			return progression.State{}, shared.ErrProgressNotFound
		}
		return progression.State{}, fmt.Errorf("failed to get progression state: %w", err)
	}
	s.UserID = shared.UserID(id)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

// Save writes next and appends entries in one transaction.
// The write only lands if the stored version equals expectedVersion.
func (r *ProgressionRepository) Save(ctx context.Context, next progression.State, expectedVersion int64, entries ...progression.LedgerEntry) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		var (
			tag pgconn.CommandTag
			err error
		)
		if expectedVersion == 0 {
			tag, err = tx.Exec(ctx, `
				INSERT INTO progression_state (user_id, total_xp, version, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (user_id) DO NOTHING
			`, next.UserID.String(), next.TotalXP, next.Version, next.UpdatedAt)
		} else {
			tag, err = tx.Exec(ctx, `
				UPDATE progression_state
				SET total_xp = $2, version = $3, updated_at = $4
				WHERE user_id = $1 AND version = $5
			`, next.UserID.String(), next.TotalXP, next.Version, next.UpdatedAt, expectedVersion)
		}
		if err != nil {
			return fmt.Errorf("failed to write progression state: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrVersionConflict
		}

		for _, entry := range entries {
			_, err = tx.Exec(ctx, `
				INSERT INTO xp_ledger (id, user_id, amount, source, source_id, total_after, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, entry.ID, entry.UserID.String(), entry.Amount, string(entry.Source), entry.SourceID, entry.TotalAfter, entry.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to append xp ledger entry: %w", err)
			}
		}
		return nil
	})
}

// History returns the newest ledger entries first.
func (r *ProgressionRepository) History(ctx context.Context, userID shared.UserID, limit int) ([]progression.LedgerEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, amount, source, source_id, total_after, created_at
		FROM xp_ledger
		WHERE user_id = $1
		ORDER BY created_at DESC, total_after DESC
		LIMIT $2
	`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query xp ledger: %w", err)
	}
	defer rows.Close()

	var entries []progression.LedgerEntry
	for rows.Next() {
		var e progression.LedgerEntry
		var uid, source string
		if err := rows.Scan(&e.ID, &uid, &e.Amount, &source, &e.SourceID, &e.TotalAfter, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan xp ledger row: %w", err)
		}
		e.UserID = shared.UserID(uid)
		e.Source = progression.Source(source)
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
