package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// testDatabaseEnv names a disposable database. Tests are skipped without it.
const testDatabaseEnv = "SOULSPACE_TEST_DATABASE_URL"

var now = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newConn(t *testing.T) *Connection {
	t.Helper()
	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.URL = url
	conn, err := NewConnection(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	_, err = NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	return conn
}

// newUser returns a fresh ID so runs against a shared database never collide.
func newUser() shared.UserID {
	return shared.UserID(uuid.NewString())
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

func TestMigrator_IsIdempotent(t *testing.T) {
	conn := newConn(t)
	ctx := context.Background()

	applied, err := NewMigrator(conn).Migrate(ctx)
	require.NoError(t, err)
	assert.Zero(t, applied)

	status, err := NewMigrator(conn).Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(GetMigrations()))
	for _, m := range status {
		assert.True(t, m.IsApplied, "migration %d", m.Version)
	}
}

func TestProgressionRepository_CompareAndSwap(t *testing.T) {
	repo := NewProgressionRepository(newConn(t))
	ctx := context.Background()
	user := newUser()

	_, err := repo.Get(ctx, user)
	assert.ErrorIs(t, err, shared.ErrProgressNotFound)

	first, entry := grantEntry(t, progression.NewState(user), 900, progression.SourceManual, now)
	require.NoError(t, repo.Save(ctx, first, 0, entry))

	// a second create for the same user loses the race
	dup, dupEntry := grantEntry(t, progression.NewState(user), 10, progression.SourceManual, now)
	assert.ErrorIs(t, repo.Save(ctx, dup, 0, dupEntry), shared.ErrVersionConflict)

	stored, err := repo.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(900), stored.TotalXP)
	assert.Equal(t, int64(1), stored.Version)

	// grant plus bonus land together
	base, baseEntry := grantEntry(t, stored, 150, progression.SourceGoalCompletion, now.Add(time.Minute))
	withBonus, bonusEntry := grantEntry(t, base, 100, progression.SourceLevelUpBonus, now.Add(time.Minute))
	require.NoError(t, repo.Save(ctx, withBonus, stored.Version, baseEntry, bonusEntry))

	// stale writer changes nothing
	stale, staleEntry := grantEntry(t, stored, 50, progression.SourceManual, now.Add(2*time.Minute))
	assert.ErrorIs(t, repo.Save(ctx, stale, stored.Version, staleEntry), shared.ErrVersionConflict)

	final, err := repo.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1150), final.TotalXP)
	assert.Equal(t, int64(3), final.Version)

	history, err := repo.History(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, progression.SourceLevelUpBonus, history[0].Source)
	assert.Equal(t, int64(1150), history[0].TotalAfter)
	assert.Equal(t, progression.SourceGoalCompletion, history[1].Source)
	assert.Equal(t, int64(900), history[2].TotalAfter)
}

func TestGoalRepository_Lifecycle(t *testing.T) {
	repo := NewGoalRepository(newConn(t))
	ctx := context.Background()
	user := newUser()

	g, err := goal.NewGoal(goal.NewGoalParams{UserID: user, Title: "Read a book", Description: "fiction"}, now)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, g))
	assert.True(t, shared.IsAlreadyExists(repo.Create(ctx, g)))

	got, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.CategoryLearning, got.Category)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, got.Complete(now.Add(time.Hour)))
	require.NoError(t, repo.Update(ctx, got))

	reloaded, err := repo.GetByID(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.StatusCompleted, reloaded.Status)
	require.NotNil(t, reloaded.CompletedAt)
	assert.True(t, reloaded.CompletedAt.Equal(now.Add(time.Hour)))

	list, err := repo.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, g.ID, list[0].ID)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, shared.ErrGoalNotFound)
}

func TestChallengeRepository_RecordAndRemove(t *testing.T) {
	repo := NewChallengeRepository(newConn(t))
	ctx := context.Background()
	user := newUser()

	walk, err := challenge.Find("walk-15")
	require.NoError(t, err)

	first := challenge.NewCompletion(user, walk, now, time.UTC)
	require.NoError(t, repo.Record(ctx, first))
	assert.ErrorIs(t, repo.Record(ctx, first), shared.ErrChallengeAlreadyCompleted)

	ids, err := repo.CompletedOn(ctx, user, first.Day)
	require.NoError(t, err)
	assert.Equal(t, []string{"walk-15"}, ids)

	require.NoError(t, repo.Remove(ctx, first))
	ids, err = repo.CompletedOn(ctx, user, first.Day)
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, repo.Record(ctx, first))
}
