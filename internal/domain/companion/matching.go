// Package companion содержит подбор собеседников (Student Companion):
// профиль пользователя и оценку совместимости двух профилей.
package companion

import (
	"sort"
	"strings"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING PHILOSOPHY
//
// Подбираем по общим интересам и совместимому способу общения.
// Уровень и XP в подборе не участвуют: прогресс не должен превращаться
// в иерархию между людьми, которым нужна поддержка.
// ══════════════════════════════════════════════════════════════════════════════

const domainName = "companion"

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// ══════════════════════════════════════════════════════════════════════════════

// CommunicationPreference - предпочитаемый способ общения.
type CommunicationPreference string

const (
	CommText  CommunicationPreference = "text"
	CommVoice CommunicationPreference = "voice"
	CommVideo CommunicationPreference = "video"
	CommAny   CommunicationPreference = "any"
)

// IsValid проверяет корректность значения.
func (c CommunicationPreference) IsValid() bool {
	switch c {
	case CommText, CommVoice, CommVideo, CommAny:
		return true
	}
	return false
}

// CompatibleWith - равные предпочтения или одно из них "any".
func (c CommunicationPreference) CompatibleWith(other CommunicationPreference) bool {
	return c == other || c == CommAny || other == CommAny
}

// MaxInterests - максимальное число интересов в профиле.
const MaxInterests = 10

// Profile - профиль пользователя для подбора.
type Profile struct {
	UserID        shared.UserID           `json:"user_id"`
	DisplayName   string                  `json:"display_name"`
	Interests     []string                `json:"interests"`
	Communication CommunicationPreference `json:"communication"`
	Available     bool                    `json:"available"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewProfile нормализует интересы (нижний регистр, без дублей) и проверяет поля.
func NewProfile(userID shared.UserID, displayName string, interests []string, comm CommunicationPreference, available bool, now time.Time) (*Profile, error) {
	if !userID.IsValid() {
		return nil, shared.NewDomainError(domainName, "NewProfile", shared.ErrInvalidID, "user ID must be a UUID")
	}
	if comm == "" {
		comm = CommAny
	}
	if !comm.IsValid() {
		return nil, shared.InvalidArgument(domainName, "NewProfile", "unknown communication preference %q", comm)
	}

	normalized := normalizeInterests(interests)
	if len(normalized) > MaxInterests {
		return nil, shared.InvalidArgument(domainName, "NewProfile", "at most %d interests allowed", MaxInterests)
	}

	return &Profile{
		UserID:        userID,
		DisplayName:   strings.TrimSpace(displayName),
		Interests:     normalized,
		Communication: comm,
		Available:     available,
		UpdatedAt:     now,
	}, nil
}

func normalizeInterests(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		s := strings.ToLower(strings.TrimSpace(raw))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS FOR MATCHING
// ══════════════════════════════════════════════════════════════════════════════

// Веса факторов.
const (
	baseScore            = 40
	sharedInterestWeight = 15
	maxSharedInterests   = 3
	communicationWeight  = 15
)

// MatchScore представляет оценку совместимости (0-100).
type MatchScore int

// Quality возвращает качественную оценку совместимости.
func (m MatchScore) Quality() MatchQuality {
	switch {
	case m >= 80:
		return MatchQualityExcellent
	case m >= 60:
		return MatchQualityGood
	case m >= 40:
		return MatchQualityFair
	default:
		return MatchQualityPoor
	}
}

// MatchQuality определяет качество подбора.
type MatchQuality string

const (
	MatchQualityExcellent MatchQuality = "excellent"
	MatchQualityGood      MatchQuality = "good"
	MatchQualityFair      MatchQuality = "fair"
	MatchQualityPoor      MatchQuality = "poor"
)

// MatchReason представляет причину совместимости.
type MatchReason struct {
	Factor      string `json:"factor"`
	Score       int    `json:"score"`
	Description string `json:"description"`
}

// Match - кандидат с оценкой.
type Match struct {
	Candidate       Profile       `json:"candidate"`
	Score           MatchScore    `json:"score"`
	Quality         MatchQuality  `json:"quality"`
	SharedInterests []string      `json:"shared_interests"`
	Reasons         []MatchReason `json:"reasons"`
}

// Score оценивает совместимость seeker и candidate.
func Score(seeker, candidate Profile) Match {
	common := sharedInterests(seeker.Interests, candidate.Interests)

	score := baseScore
	reasons := []MatchReason{{Factor: "base", Score: baseScore, Description: "Open to companionship"}}

	if n := len(common); n > 0 {
		if n > maxSharedInterests {
			n = maxSharedInterests
		}
		pts := n * sharedInterestWeight
		score += pts
		reasons = append(reasons, MatchReason{
			Factor:      "interests",
			Score:       pts,
			Description: "Shared interests: " + strings.Join(common, ", "),
		})
	}

	if seeker.Communication.CompatibleWith(candidate.Communication) {
		score += communicationWeight
		reasons = append(reasons, MatchReason{
			Factor:      "communication",
			Score:       communicationWeight,
			Description: "Compatible communication style",
		})
	}

	if score > 100 {
		score = 100
	}

	ms := MatchScore(score)
	return Match{
		Candidate:       candidate,
		Score:           ms,
		Quality:         ms.Quality(),
		SharedInterests: common,
		Reasons:         reasons,
	}
}

// sharedInterests возвращает пересечение в порядке интересов a.
func sharedInterests(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[strings.ToLower(s)] = struct{}{}
	}
	out := make([]string, 0)
	for _, s := range a {
		if _, ok := set[strings.ToLower(s)]; ok {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}

// Rank оценивает кандидатов и возвращает не более limit лучших.
// Сам seeker и недоступные кандидаты исключаются. Порядок детерминирован:
// по убыванию оценки, затем по UserID.
func Rank(seeker Profile, candidates []Profile, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if c.UserID == seeker.UserID || !c.Available {
			continue
		}
		matches = append(matches, Score(seeker, c))
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Candidate.UserID < matches[j].Candidate.UserID
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
