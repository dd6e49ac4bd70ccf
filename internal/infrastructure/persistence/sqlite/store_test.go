package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/persistence/sqlite/migrations"
)

const (
	alice shared.UserID = "7f1c9d4e-0a51-4c1b-9d6b-2f3f6a1e8b01"
	bob   shared.UserID = "a3e2b7c8-5d44-4f0e-8a9b-6c1d2e3f4a02"
	carol shared.UserID = "c0ffee00-1234-4abc-8def-0123456789ab"
)

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, applyMigrations(context.Background(), s.db, migrations.FS))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+migrationTable).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestUpSection(t *testing.T) {
	sql := "-- +migrate Up\nCREATE TABLE x (id INT);\n-- +migrate Down\nDROP TABLE x;\n"
	assert.Equal(t, "\nCREATE TABLE x (id INT);\n", upSection(sql))
	assert.Equal(t, "SELECT 1", upSection("SELECT 1"))
}

func grantEntry(t *testing.T, prior progression.State, amount int64, source progression.Source, at time.Time) (progression.State, progression.LedgerEntry) {
	t.Helper()
	g, err := progression.NewGrant(amount, source, "")
	require.NoError(t, err)
	next, _, err := prior.Apply(g, at)
	require.NoError(t, err)
	return next, progression.LedgerEntry{
		ID:         g.ID,
		UserID:     prior.UserID,
		Amount:     amount,
		Source:     source,
		TotalAfter: next.TotalXP,
		CreatedAt:  at,
	}
}

func TestProgressionRepository_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressionRepository(newStore(t))

	_, err := repo.Get(ctx, alice)
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)

	first, entry := grantEntry(t, progression.NewState(alice), 900, progression.SourceManual, now)
	require.NoError(t, repo.Save(ctx, first, 0, entry))

	stored, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(900), stored.TotalXP)
	assert.Equal(t, int64(1), stored.Version)
	assert.True(t, stored.UpdatedAt.Equal(now))

	// a second create for the same user loses the race
	dup, dupEntry := grantEntry(t, progression.NewState(alice), 10, progression.SourceManual, now)
	assert.ErrorIs(t, repo.Save(ctx, dup, 0, dupEntry), shared.ErrVersionConflict)

	second, entry2 := grantEntry(t, stored, 100, progression.SourceGoalCompletion, now.Add(time.Minute))
	require.NoError(t, repo.Save(ctx, second, stored.Version, entry2))

	// stale writer
	stale, staleEntry := grantEntry(t, stored, 50, progression.SourceManual, now.Add(2*time.Minute))
	assert.ErrorIs(t, repo.Save(ctx, stale, stored.Version, staleEntry), shared.ErrVersionConflict)

	final, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), final.TotalXP)
	assert.Equal(t, int64(2), final.Version)

	history, err := repo.History(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(100), history[0].Amount)
	assert.Equal(t, progression.SourceGoalCompletion, history[0].Source)
	assert.Equal(t, int64(1000), history[0].TotalAfter)
	assert.Equal(t, int64(900), history[1].TotalAfter)

	limited, err := repo.History(ctx, alice, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestProgressionRepository_SaveWritesAllEntries(t *testing.T) {
	ctx := context.Background()
	repo := NewProgressionRepository(newStore(t))

	base, baseEntry := grantEntry(t, progression.NewState(alice), 1050, progression.SourceManual, now)
	withBonus, bonusEntry := grantEntry(t, base, 100, progression.SourceLevelUpBonus, now)
	require.NoError(t, repo.Save(ctx, withBonus, 0, baseEntry, bonusEntry))

	stored, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1150), stored.TotalXP)
	assert.Equal(t, int64(2), stored.Version)

	history, err := repo.History(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, progression.SourceLevelUpBonus, history[0].Source)
	assert.Equal(t, progression.SourceManual, history[1].Source)

	// a conflicting write leaves neither entry behind
	stale, staleEntry := grantEntry(t, base, 5, progression.SourceManual, now.Add(time.Minute))
	_, staleBonus := grantEntry(t, stale, 100, progression.SourceLevelUpBonus, now.Add(time.Minute))
	assert.ErrorIs(t, repo.Save(ctx, stale, base.Version, staleEntry, staleBonus), shared.ErrVersionConflict)

	history, err = repo.History(ctx, alice, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestGoalRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewGoalRepository(newStore(t))

	g1, err := goal.NewGoal(goal.NewGoalParams{UserID: alice, Title: "Walk 10k steps"}, now)
	require.NoError(t, err)
	g2, err := goal.NewGoal(goal.NewGoalParams{UserID: alice, Title: "Read a book", Description: "fiction"}, now.Add(time.Second))
	require.NoError(t, err)
	other, err := goal.NewGoal(goal.NewGoalParams{UserID: bob, Title: "Budget"}, now)
	require.NoError(t, err)

	for _, g := range []*goal.Goal{g1, g2, other} {
		require.NoError(t, repo.Create(ctx, g))
	}
	assert.True(t, shared.IsAlreadyExists(repo.Create(ctx, g1)))

	got, err := repo.GetByID(ctx, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.CategoryLearning, got.Category)
	assert.Equal(t, "fiction", got.Description)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, got.Complete(now.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, got))

	reloaded, err := repo.GetByID(ctx, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.StatusCompleted, reloaded.Status)
	assert.Equal(t, 100, reloaded.Progress)
	require.NotNil(t, reloaded.CompletedAt)
	assert.True(t, reloaded.CompletedAt.Equal(now.Add(time.Hour)))

	list, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, g1.ID, list[0].ID)
	assert.Equal(t, g2.ID, list[1].ID)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrGoalNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &goal.Goal{ID: "missing"}), shared.ErrGoalNotFound)
}

func TestAssessmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAssessmentRepository(newStore(t))

	older, err := assessment.NewResult(alice, assessment.KindGAD7, []int{1, 1, 1, 1, 1, 0, 0}, now)
	require.NoError(t, err)
	newer, err := assessment.NewResult(alice, assessment.KindPHQ9, []int{0, 0, 0, 0, 0, 0, 0, 0, 1}, now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, older))
	require.NoError(t, repo.Save(ctx, newer))

	results, err := repo.ListByUser(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newer.ID, results[0].ID)
	assert.True(t, results[0].NeedsFollowUp)
	assert.Equal(t, newer.Responses, results[0].Responses)
	assert.Equal(t, older.Score, results[1].Score)
	assert.False(t, results[1].NeedsFollowUp)
}

func TestChallengeRepository_OncePerDay(t *testing.T) {
	ctx := context.Background()
	repo := NewChallengeRepository(newStore(t))

	walk, err := challenge.Find("walk-15")
	require.NoError(t, err)

	first := challenge.NewCompletion(alice, walk, now, time.UTC)
	require.NoError(t, repo.Record(ctx, first))
	assert.ErrorIs(t, repo.Record(ctx, challenge.NewCompletion(alice, walk, now.Add(time.Hour), time.UTC)), shared.ErrChallengeAlreadyCompleted)

	// next day and other users are independent
	require.NoError(t, repo.Record(ctx, challenge.NewCompletion(alice, walk, now.Add(24*time.Hour), time.UTC)))
	require.NoError(t, repo.Record(ctx, challenge.NewCompletion(bob, walk, now, time.UTC)))

	ids, err := repo.CompletedOn(ctx, alice, first.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"walk-15"}, ids)

	// a removed completion frees the day again
	require.NoError(t, repo.Remove(ctx, first))
	require.NoError(t, repo.Remove(ctx, first))
	ids, err = repo.CompletedOn(ctx, alice, first.Day)
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, repo.Record(ctx, first))
}

func TestCompanionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCompanionRepository(newStore(t))

	_, err := repo.Get(ctx, alice)
	assert.ErrorIs(t, err, shared.ErrCompanionProfileNotFound)

	mk := func(id shared.UserID, name string, available bool, at time.Time) *companion.Profile {
		p, err := companion.NewProfile(id, name, []string{"Hiking", "music"}, companion.CommText, available, at)
		require.NoError(t, err)
		return p
	}
	require.NoError(t, repo.Upsert(ctx, mk(alice, "Alice", true, now)))
	require.NoError(t, repo.Upsert(ctx, mk(bob, "Bob", true, now.Add(time.Minute))))
	require.NoError(t, repo.Upsert(ctx, mk(carol, "Carol", false, now)))

	p, err := repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"hiking", "music"}, p.Interests)
	assert.Equal(t, companion.CommText, p.Communication)

	// update replaces the row
	require.NoError(t, repo.Upsert(ctx, mk(alice, "Alice B", true, now.Add(time.Hour))))
	p, err = repo.Get(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Alice B", p.DisplayName)

	available, err := repo.ListAvailable(ctx, alice, 10)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, bob, available[0].UserID)
}
