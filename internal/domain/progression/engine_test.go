package progression

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

func TestThreshold(t *testing.T) {
	cases := map[int]int64{
		0: 1000,
		1: 1000,
		2: 1200,
		3: 1440,
		4: 1727,
		5: 2073,
		6: 2488,
		7: 2985,
	}
	for level, want := range cases {
		assert.Equal(t, want, Threshold(level), "level %d", level)
	}

	// correctly rounded pow, where common libm results are one lower
	assert.Equal(t, int64(8063862349961183), Threshold(164))
}

func TestLevelFromTotalXP(t *testing.T) {
	tests := []struct {
		total int64
		want  LevelInfo
	}{
		{0, LevelInfo{Level: 1, XPInLevel: 0, XPToNext: 1000}},
		{999, LevelInfo{Level: 1, XPInLevel: 999, XPToNext: 1000}},
		{1000, LevelInfo{Level: 2, XPInLevel: 0, XPToNext: 1200}},
		{2199, LevelInfo{Level: 2, XPInLevel: 1199, XPToNext: 1200}},
		{2200, LevelInfo{Level: 3, XPInLevel: 0, XPToNext: 1440}},
		{3640, LevelInfo{Level: 4, XPInLevel: 0, XPToNext: 1727}},
		{5366, LevelInfo{Level: 4, XPInLevel: 1726, XPToNext: 1727}},
		{5367, LevelInfo{Level: 5, XPInLevel: 0, XPToNext: 2073}},
	}

	for _, tt := range tests {
		got, err := LevelFromTotalXP(tt.total)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "total %d", tt.total)
	}
}

func TestLevelFromTotalXP_Negative(t *testing.T) {
	_, err := LevelFromTotalXP(-1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.True(t, shared.IsInvalidArgument(err))
}

func TestLevelFromTotalXP_Invariants(t *testing.T) {
	for total := int64(0); total <= 20000; total += 37 {
		info, err := LevelFromTotalXP(total)
		require.NoError(t, err)

		assert.GreaterOrEqual(t, info.Level, 1)
		assert.GreaterOrEqual(t, info.XPInLevel, int64(0))
		assert.Less(t, info.XPInLevel, info.XPToNext)
		assert.Equal(t, Threshold(info.Level), info.XPToNext)

		base, err := TotalXPForLevel(info.Level)
		require.NoError(t, err)
		assert.Equal(t, total, base+info.XPInLevel, "round trip for %d", total)
	}
}

func TestLevelFromTotalXP_Monotonic(t *testing.T) {
	prev := 1
	for total := int64(0); total <= 50000; total += 250 {
		info, err := LevelFromTotalXP(total)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, info.Level, prev)
		prev = info.Level
	}
}

func TestThreshold_StrictlyIncreasing(t *testing.T) {
	prev := int64(0)
	for n := 1; n <= 200; n++ {
		cur := Threshold(n)
		assert.Greater(t, cur, prev, "level %d", n)
		prev = cur
	}
	assert.Equal(t, int64(math.MaxInt64), Threshold(10000))
}

func TestLevelFromTotalXP_Huge(t *testing.T) {
	info, err := LevelFromTotalXP(math.MaxInt64)
	require.NoError(t, err)
	assert.Greater(t, info.Level, 100)
	assert.Less(t, info.XPInLevel, info.XPToNext)
}

func TestTotalXPForLevel(t *testing.T) {
	total, err := TotalXPForLevel(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	total, err = TotalXPForLevel(4)
	require.NoError(t, err)
	assert.Equal(t, int64(3640), total)

	_, err = TotalXPForLevel(0)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestApplyXPGrant(t *testing.T) {
	t.Run("crosses first threshold", func(t *testing.T) {
		res, err := ApplyXPGrant(900, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), res.NewTotalXP)
		assert.True(t, res.LeveledUp)
		assert.Equal(t, 1, res.OldLevel)
		assert.Equal(t, 2, res.NewLevel)
		assert.Equal(t, int64(0), res.NewXPInLevel)
		assert.Equal(t, int64(1200), res.XPToNext)
	})

	t.Run("stays within level", func(t *testing.T) {
		res, err := ApplyXPGrant(100, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(150), res.NewTotalXP)
		assert.False(t, res.LeveledUp)
		assert.Equal(t, 1, res.NewLevel)
		assert.Equal(t, int64(150), res.NewXPInLevel)
	})

	t.Run("skips several levels", func(t *testing.T) {
		res, err := ApplyXPGrant(0, 5367)
		require.NoError(t, err)
		assert.True(t, res.LeveledUp)
		assert.Equal(t, 5, res.NewLevel)
		assert.Equal(t, 4, res.LevelsGained())
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		for _, amount := range []int64{0, -5} {
			_, err := ApplyXPGrant(100, amount)
			assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		}
	})

	t.Run("rejects negative prior", func(t *testing.T) {
		_, err := ApplyXPGrant(-1, 10)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})

	t.Run("rejects overflow", func(t *testing.T) {
		_, err := ApplyXPGrant(math.MaxInt64-5, 10)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	})
}

func TestApplyXPGrant_MatchesLevelFromTotal(t *testing.T) {
	for prior := int64(0); prior < 6000; prior += 173 {
		for _, amount := range []int64{1, 50, 75, 100, 999, 2500} {
			res, err := ApplyXPGrant(prior, amount)
			require.NoError(t, err)

			before, _ := LevelFromTotalXP(prior)
			after, _ := LevelFromTotalXP(prior + amount)
			assert.Equal(t, after.Level > before.Level, res.LeveledUp)
			assert.Equal(t, after.Level, res.NewLevel)
			assert.Equal(t, after.XPInLevel, res.NewXPInLevel)
		}
	}
}

func TestProgressFraction(t *testing.T) {
	f, err := ProgressFraction(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f)

	f, err = ProgressFraction(600, 1200)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-9)

	f, err = ProgressFraction(1500, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = ProgressFraction(10, 0)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = ProgressFraction(-1, 100)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

func TestLevelTitle(t *testing.T) {
	assert.Equal(t, "Seedling", LevelTitle(1))
	assert.Equal(t, "Bloom", LevelTitle(7))
	assert.Equal(t, "Evergreen", LevelTitle(40))
}

func TestState_Apply(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := State{UserID: "u", TotalXP: 950, Version: 3}

	g, err := NewGrant(GoalCompletionXP, SourceGoalCompletion, "goal-1")
	require.NoError(t, err)

	next, res, err := s.Apply(g, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), next.TotalXP)
	assert.Equal(t, int64(4), next.Version)
	assert.Equal(t, now, next.UpdatedAt)
	assert.True(t, res.LeveledUp)

	// исходное значение не меняется
	assert.Equal(t, int64(950), s.TotalXP)
}

func TestState_Snapshot(t *testing.T) {
	snap, err := State{UserID: "u", TotalXP: 1600}.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Level)
	assert.Equal(t, int64(600), snap.XPInLevel)
	assert.Equal(t, int64(1200), snap.XPToNext)
	assert.InDelta(t, 0.5, snap.Fraction, 1e-9)
	assert.Equal(t, "Seedling", snap.LevelTitle)
}

func TestSource(t *testing.T) {
	assert.Equal(t, int64(50), SourceGoalCompletion.DefaultAmount())
	assert.Equal(t, int64(75), SourceQuizCompletion.DefaultAmount())
	assert.Equal(t, int64(100), SourceLevelUpBonus.DefaultAmount())
	assert.Equal(t, int64(0), SourceDailyChallenge.DefaultAmount())

	s, err := ParseSource(" Goal_Completion ")
	require.NoError(t, err)
	assert.Equal(t, SourceGoalCompletion, s)

	_, err = ParseSource("lottery")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewGrant(0, SourceManual, "")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
