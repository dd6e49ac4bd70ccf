package progression

import (
	"strings"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// XP SOURCES
// ══════════════════════════════════════════════════════════════════════════════

// Source - тег происхождения начисления XP.
type Source string

const (
	// SourceGoalCompletion - завершение цели.
	SourceGoalCompletion Source = "goal_completion"

	// SourceQuizCompletion - прохождение опросника (PHQ-9, GAD-7).
	SourceQuizCompletion Source = "quiz_completion"

	// SourceLevelUpBonus - бонус за повышение уровня.
	SourceLevelUpBonus Source = "level_up_bonus"

	// SourceDailyChallenge - ежедневный челлендж; размер задаёт сам челлендж.
	SourceDailyChallenge Source = "daily_challenge"

	// SourceManual - ручное начисление через сервисный ключ.
	SourceManual Source = "manual"
)

// Стандартные размеры начислений.
const (
	GoalCompletionXP int64 = 50
	QuizCompletionXP int64 = 75
	LevelUpBonusXP   int64 = 100
)

// IsValid проверяет, что источник известен.
func (s Source) IsValid() bool {
	switch s {
	case SourceGoalCompletion, SourceQuizCompletion, SourceLevelUpBonus,
		SourceDailyChallenge, SourceManual:
		return true
	}
	return false
}

// DefaultAmount возвращает стандартный размер начисления для источника.
// Для источников без фиксированного размера возвращает 0.
func (s Source) DefaultAmount() int64 {
	switch s {
	case SourceGoalCompletion:
		return GoalCompletionXP
	case SourceQuizCompletion:
		return QuizCompletionXP
	case SourceLevelUpBonus:
		return LevelUpBonusXP
	default:
		return 0
	}
}

// ParseSource разбирает строковый тег источника.
func ParseSource(raw string) (Source, error) {
	s := Source(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.InvalidArgument(domainName, "ParseSource", "unknown XP source %q", raw)
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANT
// ══════════════════════════════════════════════════════════════════════════════

// Grant - одно начисление XP. Amount всегда > 0.
type Grant struct {
	// ID - идентификатор записи в журнале начислений.
	ID string

	// Amount - количество XP.
	Amount int64

	// Source - откуда пришло начисление.
	Source Source

	// SourceID - идентификатор цели, опросника или челленджа (если есть).
	SourceID string
}

// NewGrant создаёт начисление с проверкой инвариантов.
func NewGrant(amount int64, source Source, sourceID string) (Grant, error) {
	if amount <= 0 {
		return Grant{}, shared.InvalidArgument(domainName, "NewGrant",
			"grant amount must be positive, got %d", amount)
	}
	if !source.IsValid() {
		return Grant{}, shared.InvalidArgument(domainName, "NewGrant", "unknown XP source %q", source)
	}
	return Grant{
		ID:       shared.NewEntityID(),
		Amount:   amount,
		Source:   source,
		SourceID: sourceID,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// State - хранимое состояние прогрессии пользователя.
// Хранится только TotalXP; уровень всегда вычисляется заново.
type State struct {
	// UserID - владелец состояния.
	UserID shared.UserID `json:"user_id"`

	// TotalXP - накопленный XP (>= 0).
	TotalXP int64 `json:"total_xp"`

	// Version - версия для compare-and-swap при записи.
	Version int64 `json:"version"`

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState возвращает начальное состояние нового пользователя.
func NewState(userID shared.UserID) State {
	return State{UserID: userID}
}

// Level вычисляет производное представление уровня.
func (s State) Level() (LevelInfo, error) {
	return LevelFromTotalXP(s.TotalXP)
}

// Apply применяет начисление и возвращает новое состояние с увеличенной версией.
func (s State) Apply(g Grant, now time.Time) (State, GrantResult, error) {
	res, err := ApplyXPGrant(s.TotalXP, g.Amount)
	if err != nil {
		return s, GrantResult{}, err
	}
	next := s
	next.TotalXP = res.NewTotalXP
	next.Version = s.Version + 1
	next.UpdatedAt = now
	return next, res, nil
}

// Snapshot - всё, что нужно для отображения прогресса.
type Snapshot struct {
	UserID     shared.UserID `json:"user_id"`
	TotalXP    int64         `json:"total_xp"`
	Level      int           `json:"level"`
	LevelTitle string        `json:"level_title"`
	XPInLevel  int64         `json:"xp_in_level"`
	XPToNext   int64         `json:"xp_to_next"`
	Fraction   float64       `json:"fraction"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Snapshot строит представление для отображения.
func (s State) Snapshot() (Snapshot, error) {
	info, err := s.Level()
	if err != nil {
		return Snapshot{}, err
	}
	frac, err := ProgressFraction(info.XPInLevel, info.XPToNext)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		UserID:     s.UserID,
		TotalXP:    s.TotalXP,
		Level:      info.Level,
		LevelTitle: LevelTitle(info.Level),
		XPInLevel:  info.XPInLevel,
		XPToNext:   info.XPToNext,
		Fraction:   frac,
		UpdatedAt:  s.UpdatedAt,
	}, nil
}

// LedgerEntry - запись журнала начислений.
type LedgerEntry struct {
	ID         string        `json:"id"`
	UserID     shared.UserID `json:"user_id"`
	Amount     int64         `json:"amount"`
	Source     Source        `json:"source"`
	SourceID   string        `json:"source_id,omitempty"`
	TotalAfter int64         `json:"total_after"`
	CreatedAt  time.Time     `json:"created_at"`
}
