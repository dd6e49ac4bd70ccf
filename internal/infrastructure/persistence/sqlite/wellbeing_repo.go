package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Assessments
// ─────────────────────────────────────────────────────────────────────────────

// AssessmentRepository implements assessment.Repository on SQLite.
type AssessmentRepository struct {
	store *Store
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(store *Store) *AssessmentRepository {
	return &AssessmentRepository{store: store}
}

var _ assessment.Repository = (*AssessmentRepository)(nil)

// Save stores a result with its responses.
func (r *AssessmentRepository) Save(ctx context.Context, res *assessment.Result) error {
	responses, err := json.Marshal(res.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
INSERT INTO assessment_results (
	id, user_id, kind, score, max_score, severity, needs_follow_up, responses, completed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		res.ID,
		res.UserID.String(),
		string(res.Kind),
		res.Score,
		res.MaxScore,
		string(res.Severity),
		res.NeedsFollowUp,
		string(responses),
		toMillis(res.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("save assessment result: %w", err)
	}
	return nil
}

// ListByUser returns results newest first.
func (r *AssessmentRepository) ListByUser(ctx context.Context, userID shared.UserID, limit int) ([]assessment.Result, error) {
	rows, err := r.store.db.QueryContext(ctx, `
SELECT id, kind, score, max_score, severity, needs_follow_up, responses, completed_at
FROM assessment_results
WHERE user_id = ?
ORDER BY completed_at DESC
LIMIT ?
`, userID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list assessment results: %w", err)
	}
	defer rows.Close()

	var results []assessment.Result
	for rows.Next() {
		var (
			res                       assessment.Result
			kind, severity, responses string
			completedAt               int64
		)
		if err := rows.Scan(&res.ID, &kind, &res.Score, &res.MaxScore, &severity, &res.NeedsFollowUp, &responses, &completedAt); err != nil {
			return nil, fmt.Errorf("scan assessment result: %w", err)
		}
		if err := json.Unmarshal([]byte(responses), &res.Responses); err != nil {
			return nil, fmt.Errorf("unmarshal responses: %w", err)
		}
		res.UserID = userID
		res.Kind = assessment.Kind(kind)
		res.Severity = assessment.Severity(severity)
		res.CompletedAt = fromMillis(completedAt)
		results = append(results, res)
	}
	return results, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Daily challenges
// ─────────────────────────────────────────────────────────────────────────────

// ChallengeRepository implements challenge.Repository on SQLite.
type ChallengeRepository struct {
	store *Store
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(store *Store) *ChallengeRepository {
	return &ChallengeRepository{store: store}
}

var _ challenge.Repository = (*ChallengeRepository)(nil)

// Record stores a completion; a repeat on the same day is rejected by the primary key.
func (r *ChallengeRepository) Record(ctx context.Context, c challenge.Completion) error {
	_, err := r.store.db.ExecContext(ctx, `
INSERT INTO challenge_completions (user_id, challenge_id, day, reward_xp, completed_at)
VALUES (?, ?, ?, ?, ?)
`, c.UserID.String(), c.ChallengeID, c.Day, c.RewardXP, toMillis(c.CompletedAt))
	if err != nil {
		if isConstraintError(err) {
			return shared.ErrChallengeAlreadyCompleted
		}
		return fmt.Errorf("record challenge completion: %w", err)
	}
	return nil
}

// Remove deletes a recorded completion. Removing a missing one is not an error.
func (r *ChallengeRepository) Remove(ctx context.Context, c challenge.Completion) error {
	if _, err := r.store.db.ExecContext(ctx, `
DELETE FROM challenge_completions
WHERE user_id = ? AND challenge_id = ? AND day = ?
`, c.UserID.String(), c.ChallengeID, c.Day); err != nil {
		return fmt.Errorf("remove challenge completion: %w", err)
	}
	return nil
}

// CompletedOn returns challenge IDs completed on day.
func (r *ChallengeRepository) CompletedOn(ctx context.Context, userID shared.UserID, day string) ([]string, error) {
	rows, err := r.store.db.QueryContext(ctx, `
SELECT challenge_id FROM challenge_completions
WHERE user_id = ? AND day = ?
ORDER BY completed_at
`, userID.String(), day)
	if err != nil {
		return nil, fmt.Errorf("query challenge completions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan challenge completion: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Companion profiles
// ─────────────────────────────────────────────────────────────────────────────

// CompanionRepository implements companion.Repository on SQLite.
type CompanionRepository struct {
	store *Store
}

// NewCompanionRepository creates a new CompanionRepository.
func NewCompanionRepository(store *Store) *CompanionRepository {
	return &CompanionRepository{store: store}
}

var _ companion.Repository = (*CompanionRepository)(nil)

// Upsert creates or replaces a profile.
func (r *CompanionRepository) Upsert(ctx context.Context, p *companion.Profile) error {
	interests, err := json.Marshal(p.Interests)
	if err != nil {
		return fmt.Errorf("marshal interests: %w", err)
	}
	_, err = r.store.db.ExecContext(ctx, `
INSERT INTO companion_profiles (user_id, display_name, interests, communication, available, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	display_name = excluded.display_name,
	interests = excluded.interests,
	communication = excluded.communication,
	available = excluded.available,
	updated_at = excluded.updated_at
`, p.UserID.String(), p.DisplayName, string(interests), string(p.Communication), p.Available, toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert companion profile: %w", err)
	}
	return nil
}

const companionColumns = `user_id, display_name, interests, communication, available, updated_at`

// Get returns a profile or shared.ErrCompanionProfileNotFound.
func (r *CompanionRepository) Get(ctx context.Context, userID shared.UserID) (*companion.Profile, error) {
	profiles, err := r.query(ctx, `SELECT `+companionColumns+` FROM companion_profiles WHERE user_id = ?`, userID.String())
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, shared.ErrCompanionProfileNotFound
	}
	return &profiles[0], nil
}

// ListAvailable returns available profiles except exclude, most recently updated first.
func (r *CompanionRepository) ListAvailable(ctx context.Context, exclude shared.UserID, limit int) ([]companion.Profile, error) {
	return r.query(ctx, `
SELECT `+companionColumns+`
FROM companion_profiles
WHERE available = 1 AND user_id <> ?
ORDER BY updated_at DESC, user_id
LIMIT ?
`, exclude.String(), limit)
}

func (r *CompanionRepository) query(ctx context.Context, query string, args ...any) ([]companion.Profile, error) {
	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query companion profiles: %w", err)
	}
	defer rows.Close()

	var profiles []companion.Profile
	for rows.Next() {
		var (
			p                   companion.Profile
			uid, interests, com string
			updatedAt           int64
		)
		if err := rows.Scan(&uid, &p.DisplayName, &interests, &com, &p.Available, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan companion profile: %w", err)
		}
		if err := json.Unmarshal([]byte(interests), &p.Interests); err != nil {
			return nil, fmt.Errorf("unmarshal interests: %w", err)
		}
		p.UserID = shared.UserID(uid)
		p.Communication = companion.CommunicationPreference(com)
		p.UpdatedAt = fromMillis(updatedAt)
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
