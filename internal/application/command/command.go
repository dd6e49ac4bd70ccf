// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLLABORATORS
// Narrow interfaces the handlers depend on. Implementations live in config,
// pkg/metrics and this package.
// ══════════════════════════════════════════════════════════════════════════════

// Features reports per-user feature flags for write paths.
type Features interface {
	LevelUpBonusEnabled(userID string) bool
	AssessmentXPEnabled(userID string) bool
}

// Recorder receives progression and categorization metrics.
type Recorder interface {
	ObserveGrant(source string, amount int64)
	ObserveLevelUp(oldLevel, newLevel int)
	ObserveCategorized(category string)
}

// Granter applies an XP grant with all of its side effects.
// GrantXPHandler is the production implementation.
type Granter interface {
	Handle(ctx context.Context, cmd GrantXPCommand) (*GrantXPResult, error)
}

// AllFeatures enables every feature. Useful for tests and the CLI.
type AllFeatures struct{}

func (AllFeatures) LevelUpBonusEnabled(string) bool { return true }
func (AllFeatures) AssessmentXPEnabled(string) bool { return true }

type noopRecorder struct{}

func (noopRecorder) ObserveGrant(string, int64) {}
func (noopRecorder) ObserveLevelUp(int, int)    {}
func (noopRecorder) ObserveCategorized(string)  {}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// publishAll publishes events in order. Failures are logged, not returned:
// the state change they describe is already committed.
func publishAll(ctx context.Context, publisher shared.EventPublisher, events []shared.Event) {
	if publisher == nil {
		return
	}
	log := logger.FromContext(ctx)
	for _, e := range events {
		if err := publisher.Publish(e); err != nil {
			log.Warn("failed to publish event",
				logger.String("event_type", string(e.EventType())),
				logger.String("aggregate_id", e.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// grantFor issues a fixed-size grant on behalf of another command.
func grantFor(ctx context.Context, g Granter, userID shared.UserID, amount int64, source progression.Source, sourceID string) (*GrantXPResult, error) {
	return g.Handle(ctx, GrantXPCommand{
		UserID:   userID.String(),
		Amount:   amount,
		Source:   source,
		SourceID: sourceID,
	})
}

func utcNow() time.Time {
	return time.Now().UTC()
}
