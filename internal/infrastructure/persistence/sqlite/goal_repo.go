package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// GoalRepository implements goal.Repository on SQLite.
type GoalRepository struct {
	store *Store
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(store *Store) *GoalRepository {
	return &GoalRepository{store: store}
}

var _ goal.Repository = (*GoalRepository)(nil)

const goalColumns = `id, user_id, title, description, status, progress, category, created_at, updated_at, completed_at`

// Create inserts a new goal.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	_, err := r.store.db.ExecContext(ctx, `
INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		g.ID,
		g.UserID.String(),
		g.Title,
		g.Description,
		string(g.Status),
		g.Progress,
		string(g.Category),
		toMillis(g.CreatedAt),
		toMillis(g.UpdatedAt),
		nullableMillis(g),
	)
	if err != nil {
		if isConstraintError(err) {
			return shared.NewDomainError("goal", "Create", shared.ErrAlreadyExists, "goal already exists")
		}
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// GetByID returns a goal or shared.ErrGoalNotFound.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

// Update persists status and progress.
func (r *GoalRepository) Update(ctx context.Context, g *goal.Goal) error {
	res, err := r.store.db.ExecContext(ctx, `
UPDATE goals SET status = ?, progress = ?, updated_at = ?, completed_at = ? WHERE id = ?
`, string(g.Status), g.Progress, toMillis(g.UpdatedAt), nullableMillis(g), g.ID)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n == 0 {
		return shared.ErrGoalNotFound
	}
	return nil
}

// ListByUser returns goals in creation order.
func (r *GoalRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]goal.Goal, error) {
	rows, err := r.store.db.QueryContext(ctx, `
SELECT `+goalColumns+` FROM goals WHERE user_id = ? ORDER BY created_at, rowid
`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func nullableMillis(g *goal.Goal) sql.NullInt64 {
	if g.CompletedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*g.CompletedAt), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (*goal.Goal, error) {
	var (
		g                        goal.Goal
		userID, status, category string
		createdAt, updatedAt     int64
		completedAt              sql.NullInt64
	)
	if err := row.Scan(
		&g.ID,
		&userID,
		&g.Title,
		&g.Description,
		&status,
		&g.Progress,
		&category,
		&createdAt,
		&updatedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}
	g.UserID = shared.UserID(userID)
	g.Status = goal.Status(status)
	g.Category = goal.Category(category)
	g.CreatedAt = fromMillis(createdAt)
	g.UpdatedAt = fromMillis(updatedAt)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		g.CompletedAt = &t
	}
	return &g, nil
}
