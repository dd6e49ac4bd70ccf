package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/application/apptest"
	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

const (
	alice = "7f1c9d4e-0a51-4c1b-9d6b-2f3f6a1e8b01"
	bob   = "0b8e3a52-6c4d-4f2a-8e17-5d9c0a3b7e44"
	carol = "c3a1f0e2-9b7d-4e5c-a6f8-1d2e3f4a5b6c"
)

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestGetProgress_NewUserIsZero(t *testing.T) {
	cache := apptest.NewCache()
	h := NewGetProgressHandler(apptest.NewProgressRepo(), cache, time.Minute)

	snap, err := h.Handle(context.Background(), GetProgressQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.TotalXP)
	assert.Equal(t, 1, snap.Level)
	assert.Equal(t, int64(1000), snap.XPToNext)
	assert.Equal(t, 0.0, snap.Fraction)

	// zero state is not cached
	_, ok, _ := cache.GetSnapshot(context.Background(), alice)
	assert.False(t, ok)
}

func TestGetProgress_FillsAndUsesCache(t *testing.T) {
	repo := apptest.NewProgressRepo()
	repo.Seed(progression.State{UserID: alice, TotalXP: 1600, Version: 4})
	cache := apptest.NewCache()
	h := NewGetProgressHandler(repo, cache, time.Minute)

	snap, err := h.Handle(context.Background(), GetProgressQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Level)
	assert.Equal(t, int64(600), snap.XPInLevel)
	assert.Equal(t, int64(1200), snap.XPToNext)
	assert.InDelta(t, 0.5, snap.Fraction, 1e-9)

	// the cached snapshot wins over the store until invalidated
	repo.Seed(progression.State{UserID: alice, TotalXP: 5000, Version: 5})
	again, err := h.Handle(context.Background(), GetProgressQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, int64(1600), again.TotalXP)

	require.NoError(t, cache.Invalidate(context.Background(), alice))
	fresh, err := h.Handle(context.Background(), GetProgressQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), fresh.TotalXP)
}

func TestGetProgress_InvalidUser(t *testing.T) {
	h := NewGetProgressHandler(apptest.NewProgressRepo(), nil, 0)
	_, err := h.Handle(context.Background(), GetProgressQuery{UserID: "nope"})
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestGetXPHistory_LimitNormalization(t *testing.T) {
	q := GetXPHistoryQuery{}
	require.NoError(t, q.Validate())
	assert.Equal(t, 20, q.Limit)

	q = GetXPHistoryQuery{Limit: 1000}
	require.NoError(t, q.Validate())
	assert.Equal(t, 100, q.Limit)

	q = GetXPHistoryQuery{Limit: -1}
	assert.Error(t, q.Validate())

	entries, err := NewGetXPHistoryHandler(apptest.NewProgressRepo()).Handle(context.Background(), GetXPHistoryQuery{UserID: alice})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestGetGoalBoard(t *testing.T) {
	repo := apptest.NewGoalRepo()
	ctx := context.Background()
	titles := []string{"Limit screen time", "Go for a morning walk", "Meditate daily", "Walk the dog", "Finish the novel draft"}
	for _, title := range titles {
		g, err := goal.NewGoal(goal.NewGoalParams{UserID: alice, Title: title}, now)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, g))
	}
	other, err := goal.NewGoal(goal.NewGoalParams{UserID: bob, Title: "Walk more"}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	board, err := NewGetGoalBoardHandler(repo).Handle(ctx, GetGoalBoardQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, 5, board.Total)
	assert.Zero(t, board.Completed)

	var order []goal.Category
	for _, b := range board.Buckets {
		order = append(order, b.Info.Category)
	}
	assert.Equal(t, []goal.Category{
		goal.CategoryDigital, goal.CategoryPhysical, goal.CategoryMindfulness, goal.CategoryGeneral,
	}, order)
	require.Len(t, board.Buckets[1].Goals, 2)
	assert.Equal(t, "Go for a morning walk", board.Buckets[1].Goals[0].Title)
	assert.Equal(t, "Walk the dog", board.Buckets[1].Goals[1].Title)

	full, err := NewGetGoalBoardHandler(repo).Handle(ctx, GetGoalBoardQuery{UserID: alice, IncludeEmpty: true})
	require.NoError(t, err)
	assert.Len(t, full.Buckets, len(goal.PriorityOrder))
}

type countingRecorder map[string]int

func (c countingRecorder) ObserveCategorized(cat string) { c[cat]++ }

func TestCategorizeText(t *testing.T) {
	rec := countingRecorder{}
	h := NewCategorizeTextHandler(rec)

	res := h.Handle(CategorizeTextQuery{Title: "Walk with friends"})
	assert.Equal(t, goal.CategoryPhysical, res.Category.Category)
	assert.Equal(t, []goal.Category{goal.CategoryPhysical, goal.CategorySocial}, res.Matches)
	assert.Equal(t, 1, rec["physical"])

	for _, q := range []CategorizeTextQuery{{}, {Title: "  "}, {Title: "", Description: ""}} {
		res = h.Handle(q)
		assert.Equal(t, goal.CategoryGeneral, res.Category.Category, "%+v", q)
		assert.Equal(t, []goal.Category{goal.CategoryGeneral}, res.Matches)
	}
	assert.Equal(t, 3, rec["general"])
}

func TestDescribeLevel(t *testing.T) {
	cases := []struct {
		total     int64
		level     int
		inLevel   int64
		toNext    int64
		nextStart int64
	}{
		{0, 1, 0, 1000, 1000},
		{999, 1, 999, 1000, 1000},
		{1000, 2, 0, 1200, 2200},
		{2200, 3, 0, 1440, 3640},
		{3640, 4, 0, 1727, 5367},
	}
	for _, tc := range cases {
		d, err := DescribeLevel(tc.total)
		require.NoError(t, err)
		assert.Equal(t, tc.level, d.Level, "total %d", tc.total)
		assert.Equal(t, tc.inLevel, d.XPInLevel, "total %d", tc.total)
		assert.Equal(t, tc.toNext, d.XPToNext, "total %d", tc.total)
		assert.Equal(t, tc.nextStart, d.NextLevelAtXP, "total %d", tc.total)
		assert.Equal(t, tc.total-tc.inLevel, d.LevelStartXP)
	}

	_, err := DescribeLevel(-1)
	assert.True(t, shared.IsInvalidArgument(err))
}

type matchingOff struct{}

func (matchingOff) CompanionMatchingEnabled(string) bool { return false }

func TestFindCompanions(t *testing.T) {
	repo := apptest.NewCompanionRepo()
	ctx := context.Background()
	add := func(id string, interests []string, comm companion.CommunicationPreference, available bool) {
		p, err := companion.NewProfile(shared.UserID(id), id[:4], interests, comm, available, now)
		require.NoError(t, err)
		require.NoError(t, repo.Upsert(ctx, p))
	}
	add(alice, []string{"yoga", "hiking"}, companion.CommText, true)
	add(bob, []string{"yoga"}, companion.CommVoice, true)
	add(carol, []string{"yoga", "hiking"}, companion.CommAny, true)

	h := NewFindCompanionsHandler(repo, nil)
	matches, err := h.Handle(ctx, FindCompanionsQuery{UserID: alice})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, shared.UserID(carol), matches[0].Candidate.UserID)
	assert.Equal(t, shared.UserID(bob), matches[1].Candidate.UserID)
	assert.Greater(t, matches[0].Score, matches[1].Score)

	_, err = NewFindCompanionsHandler(repo, nil).Handle(ctx, FindCompanionsQuery{UserID: "4d5e6f70-8192-4a3b-9c4d-5e6f708192a3"})
	assert.True(t, shared.IsNotFound(err))

	_, err = NewFindCompanionsHandler(repo, matchingOff{}).Handle(ctx, FindCompanionsQuery{UserID: alice})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestListChallenges(t *testing.T) {
	repo := apptest.NewChallengeRepo()
	ctx := context.Background()
	c, err := challenge.Find("read-10")
	require.NoError(t, err)
	require.NoError(t, repo.Record(ctx, challenge.NewCompletion(alice, c, now, time.UTC)))

	h := NewListChallengesHandler(repo, time.UTC)
	h.now = func() time.Time { return now }

	out, err := h.Handle(ctx, ListChallengesQuery{UserID: alice})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", out.Day)
	require.Len(t, out.Challenges, len(challenge.Catalogue))
	for _, ch := range out.Challenges {
		assert.Equal(t, ch.ID == "read-10", ch.CompletedToday, ch.ID)
		assert.Positive(t, ch.RewardXP)
	}

	anon, err := h.Handle(ctx, ListChallengesQuery{})
	require.NoError(t, err)
	for _, ch := range anon.Challenges {
		assert.False(t, ch.CompletedToday)
	}
}

func TestListAssessments_NewestFirst(t *testing.T) {
	repo := &apptest.AssessmentRepo{}
	ctx := context.Background()
	first, err := assessment.NewResult(alice, assessment.KindGAD7, []int{0, 0, 0, 0, 0, 0, 0}, now)
	require.NoError(t, err)
	second, err := assessment.NewResult(alice, assessment.KindGAD7, []int{3, 3, 3, 3, 3, 0, 0}, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	out, err := NewListAssessmentsHandler(repo).Handle(ctx, ListAssessmentsQuery{UserID: alice})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, second.ID, out[0].ID)
	assert.Equal(t, assessment.SeveritySevere, out[0].Severity)
}
