package query

import (
	"context"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/timeutil"
)

// ChallengeDTO - челлендж с отметкой о выполнении сегодня.
type ChallengeDTO struct {
	challenge.Challenge
	CompletedToday bool `json:"completed_today"`
}

// ChallengesDTO - каталог челленджей на день.
type ChallengesDTO struct {
	Day        string         `json:"day"`
	Challenges []ChallengeDTO `json:"challenges"`
}

// ListChallengesQuery - запрос каталога. Без UserID отметки не заполняются.
type ListChallengesQuery struct {
	UserID string
}

// ListChallengesHandler обрабатывает ListChallengesQuery.
type ListChallengesHandler struct {
	completions challenge.Repository
	loc         *time.Location
	now         func() time.Time
}

// NewListChallengesHandler создаёт обработчик. loc задаёт календарный день.
func NewListChallengesHandler(completions challenge.Repository, loc *time.Location) *ListChallengesHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ListChallengesHandler{completions: completions, loc: loc, now: time.Now}
}

// Handle возвращает каталог.
func (h *ListChallengesHandler) Handle(ctx context.Context, q ListChallengesQuery) (*ChallengesDTO, error) {
	day := timeutil.DayKey(h.now(), h.loc)

	done := map[string]bool{}
	if q.UserID != "" {
		userID, err := shared.NewUserID(q.UserID)
		if err != nil {
			return nil, err
		}
		ids, err := h.completions.CompletedOn(ctx, userID, day)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			done[id] = true
		}
	}

	out := &ChallengesDTO{Day: day, Challenges: make([]ChallengeDTO, 0, len(challenge.Catalogue))}
	for _, c := range challenge.Catalogue {
		c, _ = challenge.Find(c.ID)
		out.Challenges = append(out.Challenges, ChallengeDTO{Challenge: c, CompletedToday: done[c.ID]})
	}
	return out, nil
}
