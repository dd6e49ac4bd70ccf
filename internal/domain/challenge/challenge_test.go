package challenge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

func TestCatalogue(t *testing.T) {
	seen := make(map[string]bool)
	for _, c := range Catalogue {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
		assert.Positive(t, c.RewardXP)
		assert.True(t, c.Category.IsValid())
	}
}

func TestCatalogue_CategoryMatchesTitle(t *testing.T) {
	for _, c := range Catalogue {
		assert.Equal(t, c.Category, goal.Categorize(c.Title, c.Description), c.ID)
	}
}

func TestFind(t *testing.T) {
	c, err := Find("walk-15")
	require.NoError(t, err)
	assert.Equal(t, int64(30), c.RewardXP)

	_, err = Find("juggle")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestNewCompletion_UsesLocalDay(t *testing.T) {
	c, err := Find("read-10")
	require.NoError(t, err)

	now := time.Date(2026, 6, 30, 22, 0, 0, 0, time.UTC)
	tokyo := time.FixedZone("UTC+9", 9*60*60)

	got := NewCompletion("u", c, now, tokyo)
	assert.Equal(t, "2026-07-01", got.Day)
	assert.Equal(t, c.RewardXP, got.RewardXP)

	got = NewCompletion("u", c, now, time.UTC)
	assert.Equal(t, "2026-06-30", got.Day)
}
