package config

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Predefined feature flag names.
const (
	FeatureLevelUpBonus      = "progression.level_up_bonus" // 100 XP bonus on level-up
	FeatureAssessmentXP      = "wellbeing.assessment_xp"    // XP for submitted assessments
	FeatureCompanionMatching = "social.companion_matching"  // companion suggestions
)

// FeaturesConfig holds the raw flag values.
// Each value is "true", "false" or a rollout percentage 0-100.
type FeaturesConfig struct {
	LevelUpBonus      string `yaml:"level_up_bonus" env:"LEVEL_UP_BONUS"`
	AssessmentXP      string `yaml:"assessment_xp" env:"ASSESSMENT_XP"`
	CompanionMatching string `yaml:"companion_matching" env:"COMPANION_MATCHING"`
}

func (fc FeaturesConfig) values() map[string]string {
	return map[string]string{
		FeatureLevelUpBonus:      fc.LevelUpBonus,
		FeatureAssessmentXP:      fc.AssessmentXP,
		FeatureCompanionMatching: fc.CompanionMatching,
	}
}

func (fc FeaturesConfig) validate() error {
	var bad []string
	for name, raw := range fc.values() {
		if _, err := ParseRollout(raw); err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", name, err))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("feature flags: %s", strings.Join(bad, "; "))
}

// ParseRollout converts a flag value into a rollout percentage.
func ParseRollout(raw string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "yes", "":
		return 100, nil
	case "false", "off", "no":
		return 0, nil
	}
	percent, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", raw)
	}
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("rollout percent %d must be 0-100", percent)
	}
	return percent, nil
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string

	// RolloutPercent (0-100). Users are bucketed by a hash of their ID.
	RolloutPercent int
}

// FeatureFlags evaluates per-user feature toggles.
// It satisfies the feature interfaces of the command and query packages.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// userOverrides win over rollout: userID -> feature -> enabled.
	userOverrides map[string]map[string]bool
}

// NewFeatureFlags builds flags from configuration. Invalid values disable
// the feature; Validate reports them before this is reached.
func NewFeatureFlags(fc FeaturesConfig) *FeatureFlags {
	ff := &FeatureFlags{
		features: map[string]*Feature{
			FeatureLevelUpBonus: {
				Name:        FeatureLevelUpBonus,
				Description: "Grant a bonus after every level-up",
			},
			FeatureAssessmentXP: {
				Name:        FeatureAssessmentXP,
				Description: "Grant XP for completed self-assessments",
			},
			FeatureCompanionMatching: {
				Name:        FeatureCompanionMatching,
				Description: "Suggest companions with shared interests",
			},
		},
		userOverrides: make(map[string]map[string]bool),
	}
	for name, raw := range fc.values() {
		percent, err := ParseRollout(raw)
		if err != nil {
			percent = 0
		}
		ff.features[name].RolloutPercent = percent
	}
	return ff
}

// IsEnabled checks whether a feature is on for userID.
func (ff *FeatureFlags) IsEnabled(featureName, userID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.userOverrides[userID]; ok {
		if enabled, ok := overrides[featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}
	switch {
	case feature.RolloutPercent >= 100:
		return true
	case feature.RolloutPercent <= 0:
		return false
	default:
		return isInRollout(userID, featureName, feature.RolloutPercent)
	}
}

// isInRollout buckets users by a stable hash so they keep their assignment.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// LevelUpBonusEnabled implements command.Features.
func (ff *FeatureFlags) LevelUpBonusEnabled(userID string) bool {
	return ff.IsEnabled(FeatureLevelUpBonus, userID)
}

// AssessmentXPEnabled implements command.Features.
func (ff *FeatureFlags) AssessmentXPEnabled(userID string) bool {
	return ff.IsEnabled(FeatureAssessmentXP, userID)
}

// CompanionMatchingEnabled implements query.MatchingFeature.
func (ff *FeatureFlags) CompanionMatchingEnabled(userID string) bool {
	return ff.IsEnabled(FeatureCompanionMatching, userID)
}

// SetUserOverride forces a feature on or off for one user.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[userID] == nil {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	if percent < 0 || percent > 100 {
		return &FeatureFlagError{Feature: featureName, Message: "rollout percent must be 0-100"}
	}

	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return &FeatureFlagError{Feature: featureName, Message: "feature not found"}
	}
	feature.RolloutPercent = percent
	return nil
}

// Snapshot returns a copy of all features keyed by name.
func (ff *FeatureFlags) Snapshot() map[string]Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make(map[string]Feature, len(ff.features))
	for name, f := range ff.features {
		out[name] = *f
	}
	return out
}

// FeatureFlagError represents an error related to feature flags.
type FeatureFlagError struct {
	Feature string
	Message string
}

func (e *FeatureFlagError) Error() string {
	return "feature flag " + e.Feature + ": " + e.Message
}
