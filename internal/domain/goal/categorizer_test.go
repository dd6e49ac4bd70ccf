package goal

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		title       string
		description string
		want        Category
	}{
		{"Walk 10,000 steps daily", "", CategoryPhysical},
		{"Meditate for 10 minutes", "", CategoryMindfulness},
		{"Read a new book", "", CategoryLearning},
		{"Buy a house", "", CategoryFinancial},
		{"Say hi to the cat", "", CategoryGeneral},
		{"Limit screen time", "", CategoryDigital},
		{"Drink more water", "", CategoryHealth},
		{"Plan my week", "", CategoryProductivity},
		{"Call my friend", "", CategorySocial},
		{"Paint a landscape", "", CategoryCreative},
		{"Morning ritual", "go for a jog before breakfast", CategoryPhysical},
		{"", "", CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.title, tt.description))
		})
	}
}

func TestCategorize_PriorityOrder(t *testing.T) {
	// physical проверяется раньше mindfulness
	assert.Equal(t, CategoryPhysical, Categorize("Yoga walk in the park", ""))

	// digital раньше всех остальных
	assert.Equal(t, CategoryDigital, Categorize("Read on my phone less", ""))

	assert.Equal(t,
		[]Category{CategoryPhysical, CategoryMindfulness},
		Matches("Yoga walk in the park", ""))
}

func TestCategorize_CaseInsensitive(t *testing.T) {
	assert.Equal(t, CategoryPhysical, Categorize("GO TO THE GYM", ""))
	assert.Equal(t, CategoryMindfulness, Categorize("Practice GRATITUDE", ""))
}

func TestCategorize_JoinsWithSpace(t *testing.T) {
	// "tv" не должен склеиться из конца заголовка и начала описания
	assert.Equal(t, CategoryGeneral, Categorize("Get", "vinyl"))
	assert.Equal(t, CategoryGeneral, Categorize("Say hi to the cat", ""))
}

func TestMatches_NoMatch(t *testing.T) {
	assert.Equal(t, []Category{CategoryGeneral}, Matches("Say hi to the cat", ""))
}

func TestRules_CoverSpecificCategories(t *testing.T) {
	require.Len(t, Rules, len(PriorityOrder)-1)
	for i, r := range Rules {
		assert.Equal(t, PriorityOrder[i], r.Category)
		assert.NotEmpty(t, r.Keywords)
	}
	assert.Equal(t, CategoryGeneral, PriorityOrder[len(PriorityOrder)-1])
}

func TestCategoryInfo(t *testing.T) {
	for _, info := range AllInfo() {
		assert.NotEmpty(t, info.Title, info.Category)
		assert.NotEmpty(t, info.Icon, info.Category)
		assert.NotEmpty(t, info.Description, info.Category)
	}
	assert.Equal(t, CategoryGeneral, Category("unknown").Info().Category)

	c, err := ParseCategory(" Physical ")
	require.NoError(t, err)
	assert.Equal(t, CategoryPhysical, c)

	_, err = ParseCategory("spiritual")
	assert.Error(t, err)
}

func TestCategorizeAll_StableTotalPartition(t *testing.T) {
	now := time.Now()
	titles := []string{
		"Walk 10,000 steps daily",
		"Say hi to the cat",
		"Meditate for 10 minutes",
		"Go for a run",
		"Read a new book",
		"Buy a house",
		"Another cat greeting",
		"Swim twice a week",
	}
	goals := make([]Goal, 0, len(titles))
	for i, title := range titles {
		goals = append(goals, Goal{ID: fmt.Sprintf("g%d", i), Title: title, CreatedAt: now})
	}

	board := CategorizeAll(goals)

	physical := board[CategoryPhysical]
	require.Len(t, physical, 3)
	assert.Equal(t, []string{"g0", "g3", "g7"}, ids(physical))
	assert.Equal(t, []string{"g1", "g6"}, ids(board[CategoryGeneral]))

	flat := board.Flatten()
	assert.ElementsMatch(t, ids(goals), ids(flat))
	assert.Len(t, flat, len(goals))

	total := 0
	for _, n := range board.Counts() {
		total += n
	}
	assert.Equal(t, len(goals), total)

	buckets := board.Buckets()
	require.Len(t, buckets, len(PriorityOrder))
	assert.Equal(t, CategoryDigital, buckets[0].Info.Category)
	assert.Empty(t, buckets[0].Goals)
	assert.Equal(t, CategoryGeneral, buckets[len(buckets)-1].Info.Category)
}

func TestCategorizeAll_Empty(t *testing.T) {
	board := CategorizeAll(nil)
	assert.Empty(t, board.Flatten())
	assert.Len(t, board.Buckets(), len(PriorityOrder))
}

func ids(goals []Goal) []string {
	out := make([]string, 0, len(goals))
	for _, g := range goals {
		out = append(out, g.ID)
	}
	return out
}
