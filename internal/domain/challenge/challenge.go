// Package challenge содержит каталог ежедневных челленджей и правило
// "не более одного выполнения в календарный день".
package challenge

import (
	"context"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOGUE
// ══════════════════════════════════════════════════════════════════════════════

// Challenge - ежедневный челлендж с фиксированной наградой.
type Challenge struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    goal.Category `json:"category"`
	RewardXP    int64         `json:"reward_xp"`
}

// DefaultRewardXP - награда челленджа, если она не задана явно.
const DefaultRewardXP int64 = 25

// Catalogue - фиксированный набор челленджей. ID стабильны: они хранятся
// в журнале выполнений.
var Catalogue = []Challenge{
	{ID: "breathe-5", Title: "Five mindful breaths", Description: "Pause and take five slow breaths", Category: goal.CategoryMindfulness, RewardXP: 20},
	{ID: "walk-15", Title: "Walk for 15 minutes", Description: "Get outside and move your body", Category: goal.CategoryPhysical, RewardXP: 30},
	{ID: "hydrate-8", Title: "Drink 8 glasses of water", Description: "Keep a glass nearby all day", Category: goal.CategoryHealth, RewardXP: 25},
	{ID: "gratitude-3", Title: "Three good things", Description: "Note three moments of gratitude from today", Category: goal.CategoryMindfulness, RewardXP: 25},
	{ID: "reach-out", Title: "Reach out to someone", Description: "Send a message to a friend or family member", Category: goal.CategorySocial, RewardXP: 30},
	{ID: "screen-break", Title: "One hour screen break", Description: "Put the phone away for an hour", Category: goal.CategoryDigital, RewardXP: 35},
	{ID: "read-10", Title: "Read 10 pages", Description: "Any book counts", Category: goal.CategoryLearning, RewardXP: 25},
}

var byID = func() map[string]Challenge {
	m := make(map[string]Challenge, len(Catalogue))
	for _, c := range Catalogue {
		m[c.ID] = c
	}
	return m
}()

// Find возвращает челлендж по ID.
func Find(id string) (Challenge, error) {
	c, ok := byID[id]
	if !ok {
		return Challenge{}, shared.ErrChallengeNotFound
	}
	if c.RewardXP <= 0 {
		c.RewardXP = DefaultRewardXP
	}
	return c, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION
// ══════════════════════════════════════════════════════════════════════════════

// Completion - факт выполнения челленджа в конкретный день.
type Completion struct {
	UserID      shared.UserID `json:"user_id"`
	ChallengeID string        `json:"challenge_id"`
	Day         string        `json:"day"`
	RewardXP    int64         `json:"reward_xp"`
	CompletedAt time.Time     `json:"completed_at"`
}

// NewCompletion фиксирует выполнение в календарный день loc.
func NewCompletion(userID shared.UserID, c Challenge, now time.Time, loc *time.Location) Completion {
	return Completion{
		UserID:      userID,
		ChallengeID: c.ID,
		Day:         timeutil.DayKey(now, loc),
		RewardXP:    c.RewardXP,
		CompletedAt: now,
	}
}

// Repository хранит выполнения. Уникальность (user, challenge, day)
// обеспечивается хранилищем.
type Repository interface {
	// Record сохраняет выполнение.
	// Возвращает shared.ErrChallengeAlreadyCompleted при повторе в тот же день.
	Record(ctx context.Context, c Completion) error

	// Remove откатывает выполнение, если награду начислить не удалось.
	Remove(ctx context.Context, c Completion) error

	// CompletedOn возвращает ID челленджей, выполненных в указанный день.
	CompletedOn(ctx context.Context, userID shared.UserID, day string) ([]string, error)
}
