package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection) *GoalRepository {
	return &GoalRepository{conn: conn}
}

var _ goal.Repository = (*GoalRepository)(nil)

const goalColumns = `id, user_id, title, description, status, progress, category, created_at, updated_at, completed_at`

// Create inserts a new goal.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO goals (`+goalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		g.ID,
		g.UserID.String(),
		g.Title,
		g.Description,
		string(g.Status),
		g.Progress,
		string(g.Category),
		g.CreatedAt,
		g.UpdatedAt,
		g.CompletedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("goal", "Create", shared.ErrAlreadyExists, "goal already exists")
		}
		return fmt.Errorf("failed to create goal: %w", err)
	}
	return nil
}

// GetByID returns a goal by ID.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id)
	g, err := scanGoal(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrGoalNotFound
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return g, nil
}

// Update persists status and progress changes.
func (r *GoalRepository) Update(ctx context.Context, g *goal.Goal) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE goals SET
			status = $2,
			progress = $3,
			updated_at = $4,
			completed_at = $5
		WHERE id = $1
	`, g.ID, string(g.Status), g.Progress, g.UpdatedAt, g.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrGoalNotFound
	}
	return nil
}

// ListByUser returns the user's goals in creation order.
func (r *GoalRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]goal.Goal, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+goalColumns+`
		FROM goals
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, *g)
	}
	return goals, rows.Err()
}

func scanGoal(row pgx.Row) (*goal.Goal, error) {
	var (
		g                        goal.Goal
		userID, status, category string
		completedAt              *time.Time
	)
	err := row.Scan(
		&g.ID,
		&userID,
		&g.Title,
		&g.Description,
		&status,
		&g.Progress,
		&category,
		&g.CreatedAt,
		&g.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	g.UserID = shared.UserID(userID)
	g.Status = goal.Status(status)
	g.Category = goal.Category(category)
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	if completedAt != nil {
		t := completedAt.UTC()
		g.CompletedAt = &t
	}
	return &g, nil
}
