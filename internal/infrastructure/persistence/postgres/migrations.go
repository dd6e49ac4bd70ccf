package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// appliedMigrations returns applied versions with their timestamps.
func (m *Migrator) appliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// Migrate applies all pending migrations and returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return 0, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insert := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insert, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return count, fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		count++
	}

	return count, nil
}

// Rollback rolls back the last applied migration.
// Returns false if nothing was applied.
func (m *Migrator) Rollback(ctx context.Context) (bool, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return false, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return false, err
	}

	last := 0
	for v := range applied {
		if v > last {
			last = v
		}
	}
	if last == 0 {
		return false, nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == last {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return false, fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, last)
	}

	err = m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", last, err)
		}
		_, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName), last)
		return err
	})
	return err == nil, err
}

// Status returns the migration status.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return nil, err
	}

	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]Migration, len(m.migrations))
	copy(result, m.migrations)
	for i := range result {
		if at, ok := applied[result[i].Version]; ok {
			result[i].IsApplied = true
			result[i].AppliedAt = at
		}
	}

	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_progression", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_goals", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_wellbeing", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// 001: progression state and XP ledger
// ─────────────────────────────────────────────────────────────────────────────

const migration001Up = `
CREATE TABLE IF NOT EXISTS progression_state (
    user_id UUID PRIMARY KEY,
    total_xp BIGINT NOT NULL DEFAULT 0,
    version BIGINT NOT NULL DEFAULT 1,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_version CHECK (version >= 1)
);

CREATE TABLE IF NOT EXISTS xp_ledger (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES progression_state(user_id) ON DELETE CASCADE,
    amount BIGINT NOT NULL,
    source VARCHAR(32) NOT NULL,
    source_id VARCHAR(64) NOT NULL DEFAULT '',
    total_after BIGINT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_amount CHECK (amount > 0),
    CONSTRAINT valid_source CHECK (source IN (
        'goal_completion', 'quiz_completion', 'level_up_bonus', 'daily_challenge', 'manual'
    ))
);

CREATE INDEX IF NOT EXISTS idx_xp_ledger_user_created ON xp_ledger(user_id, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS xp_ledger;
DROP TABLE IF EXISTS progression_state;
`

// ─────────────────────────────────────────────────────────────────────────────
// 002: goals
// ─────────────────────────────────────────────────────────────────────────────

const migration002Up = `
CREATE TABLE IF NOT EXISTS goals (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'in_progress',
    progress SMALLINT NOT NULL DEFAULT 0,
    category VARCHAR(20) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE,

    CONSTRAINT valid_goal_status CHECK (status IN ('in_progress', 'completed', 'paused')),
    CONSTRAINT valid_goal_progress CHECK (progress BETWEEN 0 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_goals_user_created ON goals(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_goals_category ON goals(category);
`

const migration002Down = `
DROP TABLE IF EXISTS goals;
`

// ─────────────────────────────────────────────────────────────────────────────
// 003: assessments, daily challenges, companion profiles
// ─────────────────────────────────────────────────────────────────────────────

const migration003Up = `
CREATE TABLE IF NOT EXISTS assessment_results (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    kind VARCHAR(16) NOT NULL,
    score SMALLINT NOT NULL,
    max_score SMALLINT NOT NULL,
    severity VARCHAR(32) NOT NULL,
    needs_follow_up BOOLEAN NOT NULL DEFAULT FALSE,
    responses JSONB NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessment_results_user ON assessment_results(user_id, completed_at DESC);

CREATE TABLE IF NOT EXISTS challenge_completions (
    user_id UUID NOT NULL,
    challenge_id VARCHAR(64) NOT NULL,
    day DATE NOT NULL,
    reward_xp BIGINT NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,

    PRIMARY KEY (user_id, challenge_id, day)
);

CREATE TABLE IF NOT EXISTS companion_profiles (
    user_id UUID PRIMARY KEY,
    display_name VARCHAR(100) NOT NULL DEFAULT '',
    interests TEXT[] NOT NULL DEFAULT '{}',
    communication VARCHAR(16) NOT NULL DEFAULT 'any',
    available BOOLEAN NOT NULL DEFAULT TRUE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companion_profiles_available ON companion_profiles(updated_at DESC) WHERE available;
`

const migration003Down = `
DROP TABLE IF EXISTS companion_profiles;
DROP TABLE IF EXISTS challenge_completions;
DROP TABLE IF EXISTS assessment_results;
`
