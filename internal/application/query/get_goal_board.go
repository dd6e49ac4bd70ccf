package query

import (
	"context"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET GOAL BOARD QUERY
// Раскладывает цели пользователя по категориям. Порядок корзин - порядок
// приоритета категорий; внутри корзины - порядок создания.
// ══════════════════════════════════════════════════════════════════════════════

// GetGoalBoardQuery - запрос доски целей.
type GetGoalBoardQuery struct {
	UserID string

	// IncludeEmpty - включать категории без целей.
	IncludeEmpty bool
}

// GoalBoardDTO - доска целей.
type GoalBoardDTO struct {
	Buckets   []goal.Bucket `json:"buckets"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
}

// GetGoalBoardHandler обрабатывает GetGoalBoardQuery.
type GetGoalBoardHandler struct {
	goals goal.Repository
}

// NewGetGoalBoardHandler создаёт обработчик.
func NewGetGoalBoardHandler(goals goal.Repository) *GetGoalBoardHandler {
	return &GetGoalBoardHandler{goals: goals}
}

// Handle выполняет запрос.
func (h *GetGoalBoardHandler) Handle(ctx context.Context, q GetGoalBoardQuery) (*GoalBoardDTO, error) {
	userID, err := shared.NewUserID(q.UserID)
	if err != nil {
		return nil, err
	}

	goals, err := h.goals.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	board := goal.CategorizeAll(goals)
	dto := &GoalBoardDTO{Buckets: make([]goal.Bucket, 0, len(goal.PriorityOrder))}
	for _, b := range board.Buckets() {
		if len(b.Goals) == 0 && !q.IncludeEmpty {
			continue
		}
		if b.Goals == nil {
			b.Goals = []goal.Goal{}
		}
		dto.Buckets = append(dto.Buckets, b)
	}

	for _, g := range goals {
		dto.Total++
		if g.IsCompleted() {
			dto.Completed++
		}
	}
	return dto, nil
}
