package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepository implements assessment.Repository for PostgreSQL.
type AssessmentRepository struct {
	conn *Connection
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(conn *Connection) *AssessmentRepository {
	return &AssessmentRepository{conn: conn}
}

var _ assessment.Repository = (*AssessmentRepository)(nil)

// Save stores the result together with the raw responses.
func (r *AssessmentRepository) Save(ctx context.Context, res *assessment.Result) error {
	responses, err := json.Marshal(res.Responses)
	if err != nil {
		return fmt.Errorf("failed to marshal responses: %w", err)
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO assessment_results (
			id, user_id, kind, score, max_score, severity, needs_follow_up, responses, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		res.ID,
		res.UserID.String(),
		string(res.Kind),
		res.Score,
		res.MaxScore,
		string(res.Severity),
		res.NeedsFollowUp,
		responses,
		res.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save assessment result: %w", err)
	}
	return nil
}

// ListByUser returns the user's results, newest first.
func (r *AssessmentRepository) ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]assessment.Result, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, kind, score, max_score, severity, needs_follow_up, responses, completed_at
		FROM assessment_results
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessment results: %w", err)
	}
	defer rows.Close()

	var results []assessment.Result
	for rows.Next() {
		var (
			res                 assessment.Result
			uid, kind, severity string
			responses           []byte
		)
		if err := rows.Scan(&res.ID, &uid, &kind, &res.Score, &res.MaxScore, &severity, &res.NeedsFollowUp, &responses, &res.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment result: %w", err)
		}
		if err := json.Unmarshal(responses, &res.Responses); err != nil {
			return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
		}
		res.UserID = shared.UserID(uid)
		res.Kind = assessment.Kind(kind)
		res.Severity = assessment.Severity(severity)
		res.CompletedAt = res.CompletedAt.UTC()
		results = append(results, res)
	}
	return results, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

var _ challenge.Repository = (*ChallengeRepository)(nil)

// Record stores a completion. The primary key rejects a second completion on the same day.
func (r *ChallengeRepository) Record(ctx context.Context, c challenge.Completion) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO challenge_completions (user_id, challenge_id, day, reward_xp, completed_at)
		VALUES ($1, $2, $3::date, $4, $5)
	`, c.UserID.String(), c.ChallengeID, c.Day, c.RewardXP, c.CompletedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrChallengeAlreadyCompleted
		}
		return fmt.Errorf("failed to record challenge completion: %w", err)
	}
	return nil
}

// Remove deletes a recorded completion. Removing a missing one is not an error.
func (r *ChallengeRepository) Remove(ctx context.Context, c challenge.Completion) error {
	_, err := r.conn.Exec(ctx, `
		DELETE FROM challenge_completions
		WHERE user_id = $1 AND challenge_id = $2 AND day = $3::date
	`, c.UserID.String(), c.ChallengeID, c.Day)
	if err != nil {
		return fmt.Errorf("failed to remove challenge completion: %w", err)
	}
	return nil
}

// CompletedOn returns challenge IDs completed on day.
func (r *ChallengeRepository) CompletedOn(ctx context.Context, userID shared.UserID, day string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT challenge_id
		FROM challenge_completions
		WHERE user_id = $1 AND day = $2::date
		ORDER BY completed_at
	`, userID.String(), day)
	if err != nil {
		return nil, fmt.Errorf("failed to query challenge completions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan challenge completion: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPANION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CompanionRepository implements companion.Repository for PostgreSQL.
type CompanionRepository struct {
	conn *Connection
}

// NewCompanionRepository creates a new CompanionRepository.
func NewCompanionRepository(conn *Connection) *CompanionRepository {
	return &CompanionRepository{conn: conn}
}

var _ companion.Repository = (*CompanionRepository)(nil)

// Upsert creates or replaces a profile.
func (r *CompanionRepository) Upsert(ctx context.Context, p *companion.Profile) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO companion_profiles (user_id, display_name, interests, communication, available, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			interests = EXCLUDED.interests,
			communication = EXCLUDED.communication,
			available = EXCLUDED.available,
			updated_at = EXCLUDED.updated_at
	`, p.UserID.String(), p.DisplayName, p.Interests, string(p.Communication), p.Available, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert companion profile: %w", err)
	}
	return nil
}

const companionColumns = `user_id, display_name, interests, communication, available, updated_at`

// Get returns a profile by user.
func (r *CompanionRepository) Get(ctx context.Context, userID shared.UserID) (*companion.Profile, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+companionColumns+` FROM companion_profiles WHERE user_id = $1`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get companion profile: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, shared.ErrCompanionProfileNotFound
	}
	return &profiles[0], nil
}

// ListAvailable returns available profiles other than exclude, most recently updated first.
func (r *CompanionRepository) ListAvailable(ctx context.Context, exclude shared.UserID, limit int) ([]companion.Profile, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+companionColumns+`
		FROM companion_profiles
		WHERE available AND user_id <> $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, exclude.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list companion profiles: %w", err)
	}
	return scanProfiles(rows)
}

func scanProfiles(rows pgx.Rows) ([]companion.Profile, error) {
	defer rows.Close()

	var profiles []companion.Profile
	for rows.Next() {
		var (
			p        companion.Profile
			uid, com string
		)
		if err := rows.Scan(&uid, &p.DisplayName, &p.Interests, &com, &p.Available, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan companion profile: %w", err)
		}
		p.UserID = shared.UserID(uid)
		p.Communication = companion.CommunicationPreference(com)
		p.UpdatedAt = p.UpdatedAt.UTC()
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
