// Package goal содержит модель цели пользователя и категоризатор целей
// по ключевым словам.
package goal

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

const domainName = "goal"

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - статус цели.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPaused     Status = "paused"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusPaused:
		return true
	}
	return false
}

const (
	// MaxTitleLength - максимальная длина заголовка в символах.
	MaxTitleLength = 200

	// MaxDescriptionLength - максимальная длина описания в символах.
	MaxDescriptionLength = 2000
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: GOAL
// ══════════════════════════════════════════════════════════════════════════════

// Goal - цель пользователя.
type Goal struct {
	ID          string        `json:"id"`
	UserID      shared.UserID `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      Status        `json:"status"`

	// Progress - прогресс в процентах, 0..100.
	Progress int `json:"progress"`

	// Category вычисляется из Title и Description при создании.
	Category Category `json:"category"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewGoalParams содержит параметры для создания цели.
type NewGoalParams struct {
	UserID      shared.UserID
	Title       string
	Description string
}

// NewGoal создаёт новую цель с валидацией всех полей.
func NewGoal(params NewGoalParams, now time.Time) (*Goal, error) {
	if !params.UserID.IsValid() {
		return nil, shared.NewDomainError(domainName, "NewGoal", shared.ErrInvalidID, "user ID must be a UUID")
	}

	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, shared.NewDomainError(domainName, "NewGoal", shared.ErrEmptyValue, "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, shared.InvalidArgument(domainName, "NewGoal", "title must be at most %d characters", MaxTitleLength)
	}

	description := strings.TrimSpace(params.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, shared.InvalidArgument(domainName, "NewGoal", "description must be at most %d characters", MaxDescriptionLength)
	}

	return &Goal{
		ID:          shared.NewEntityID(),
		UserID:      params.UserID,
		Title:       title,
		Description: description,
		Status:      StatusInProgress,
		Progress:    0,
		Category:    Categorize(title, description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// IsCompleted возвращает true для завершённой цели.
func (g *Goal) IsCompleted() bool {
	return g.Status == StatusCompleted
}

// UpdateProgress устанавливает прогресс. Значение 100 завершает цель.
// Возвращает true, если цель была завершена этим вызовом.
func (g *Goal) UpdateProgress(progress int, now time.Time) (bool, error) {
	if progress < 0 || progress > 100 {
		return false, shared.NewDomainError(domainName, "UpdateProgress", shared.ErrValueOutOfRange, "progress must be between 0 and 100")
	}
	if g.IsCompleted() {
		return false, shared.ErrGoalAlreadyCompleted
	}
	if progress == 100 {
		return true, g.Complete(now)
	}
	g.Progress = progress
	g.UpdatedAt = now
	return false, nil
}

// Complete завершает цель. Повторное завершение - ошибка.
func (g *Goal) Complete(now time.Time) error {
	if g.IsCompleted() {
		return shared.ErrGoalAlreadyCompleted
	}
	g.Status = StatusCompleted
	g.Progress = 100
	g.CompletedAt = &now
	g.UpdatedAt = now
	return nil
}

// Pause ставит цель на паузу.
func (g *Goal) Pause(now time.Time) error {
	if g.Status != StatusInProgress {
		return shared.NewDomainError(domainName, "Pause", shared.ErrStateTransition, "only goals in progress can be paused")
	}
	g.Status = StatusPaused
	g.UpdatedAt = now
	return nil
}

// Resume возобновляет цель после паузы.
func (g *Goal) Resume(now time.Time) error {
	if g.Status != StatusPaused {
		return shared.NewDomainError(domainName, "Resume", shared.ErrStateTransition, "only paused goals can be resumed")
	}
	g.Status = StatusInProgress
	g.UpdatedAt = now
	return nil
}

// OwnedBy проверяет владельца цели.
func (g *Goal) OwnedBy(userID shared.UserID) bool {
	return g.UserID == userID
}
