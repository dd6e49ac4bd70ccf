package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
	"github.com/soulspace/soulspace-hub/pkg/retry"
	"github.com/soulspace/soulspace-hub/pkg/tracing"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT XP COMMAND
// Applies one XP grant to a user's progression. Every other command that
// rewards the user goes through here.
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPCommand contains the data for one grant.
type GrantXPCommand struct {
	// UserID is the UUID of the user receiving XP.
	UserID string

	// Amount is the XP to add. Must be positive.
	Amount int64

	// Source tags where the XP came from.
	Source progression.Source

	// SourceID references the goal, assessment or challenge, if any.
	SourceID string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c GrantXPCommand) Validate() error {
	if _, err := shared.NewUserID(c.UserID); err != nil {
		return err
	}
	if c.Amount <= 0 {
		return shared.InvalidArgument("command", "GrantXP", "amount must be positive, got %d", c.Amount)
	}
	if !c.Source.IsValid() {
		return shared.InvalidArgument("command", "GrantXP", "unknown XP source %q", c.Source)
	}
	return nil
}

// GrantXPResult contains the outcome of a grant.
type GrantXPResult struct {
	// Grant is the result of the requested grant.
	Grant progression.GrantResult `json:"grant"`

	// Bonus is set when the grant leveled the user up and a bonus was issued.
	Bonus *progression.GrantResult `json:"bonus,omitempty"`

	// Progress is the user's progress after all grants.
	Progress progression.Snapshot `json:"progress"`

	// Events contains domain events generated.
	Events []shared.Event `json:"-"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPHandler handles the GrantXPCommand.
type GrantXPHandler struct {
	repo      progression.Repository
	cache     progression.Cache
	publisher shared.EventPublisher
	features  Features
	recorder  Recorder
	retrier   *retry.Retrier
	now       func() time.Time
}

// NewGrantXPHandler creates a new GrantXPHandler. cache, publisher,
// features and recorder may be nil.
func NewGrantXPHandler(
	repo progression.Repository,
	cache progression.Cache,
	publisher shared.EventPublisher,
	features Features,
	recorder Recorder,
) *GrantXPHandler {
	if features == nil {
		features = AllFeatures{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &GrantXPHandler{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		features:  features,
		recorder:  recorder,
		retrier:   retry.OptimisticRetrier(isVersionConflict),
		now:       utcNow,
	}
}

func isVersionConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrentModification)
}

// Handle executes the grant. When the grant crosses a level boundary and the
// feature is enabled, exactly one level_up_bonus grant follows and is committed
// together with it. A bonus grant never earns another bonus, even if it
// crosses a boundary itself.
func (h *GrantXPHandler) Handle(ctx context.Context, cmd GrantXPCommand) (result *GrantXPResult, err error) {
	ctx, span := tracing.Start(ctx, "command.GrantXP",
		attribute.String("xp.source", string(cmd.Source)),
		attribute.Int64("xp.amount", cmd.Amount),
	)
	defer func() { tracing.End(span, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID, _ := shared.NewUserID(cmd.UserID)

	log := logger.FromContext(ctx).With(logger.UserID(userID.String()), logger.Operation("grant_xp"))

	grant, err := progression.NewGrant(cmd.Amount, cmd.Source, cmd.SourceID)
	if err != nil {
		return nil, err
	}

	var bonus *progression.Grant
	if cmd.Source != progression.SourceLevelUpBonus && h.features.LevelUpBonusEnabled(userID.String()) {
		b, err := progression.NewGrant(progression.LevelUpBonusXP, progression.SourceLevelUpBonus, grant.ID)
		if err != nil {
			return nil, err
		}
		bonus = &b
	}

	out, err := h.apply(ctx, userID, grant, bonus)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: %w", err)
	}

	result = &GrantXPResult{Grant: out.grant, Bonus: out.bonus}
	result.Events = append(result.Events, h.grantEvents(userID, grant, out.grant, cmd.CorrelationID)...)
	if out.bonus != nil {
		result.Events = append(result.Events, h.grantEvents(userID, *bonus, *out.bonus, cmd.CorrelationID)...)
	}

	snap, err := out.state.Snapshot()
	if err != nil {
		return nil, err
	}
	result.Progress = snap

	h.finish(ctx, userID, result.Events)

	log.Info("xp granted",
		logger.Source(string(cmd.Source)),
		logger.XPAmount(cmd.Amount),
		logger.TotalXP(snap.TotalXP),
		logger.LevelNo(snap.Level),
	)
	span.SetAttributes(attribute.Int("progress.level", snap.Level))

	return result, nil
}

type applied struct {
	state progression.State
	grant progression.GrantResult
	bonus *progression.GrantResult
}

// apply persists grant with compare-and-swap, re-reading on conflict. When
// the grant levels the user up and bonus is set, the bonus lands in the same
// write, so either both ledger entries commit or neither does.
func (h *GrantXPHandler) apply(ctx context.Context, userID shared.UserID, grant progression.Grant, bonus *progression.Grant) (applied, error) {
	var out applied
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		out = applied{}

		current, err := h.repo.Get(ctx, userID)
		if err != nil {
			if !shared.IsNotFound(err) {
				return err
			}
			current = progression.NewState(userID)
		}

		now := h.now()
		next, res, err := current.Apply(grant, now)
		if err != nil {
			return err
		}
		out.grant = res
		entries := []progression.LedgerEntry{ledgerEntry(userID, grant, next, now)}

		if res.LeveledUp && bonus != nil {
			// a bonus that cannot be applied (XP overflow) is skipped, never fatal
			if withBonus, bonusRes, err := next.Apply(*bonus, now); err == nil {
				next = withBonus
				out.bonus = &bonusRes
				entries = append(entries, ledgerEntry(userID, *bonus, next, now))
			}
		}

		out.state = next
		return h.repo.Save(ctx, next, current.Version, entries...)
	})
	if err != nil {
		return applied{}, err
	}

	h.recorder.ObserveGrant(string(grant.Source), grant.Amount)
	h.recorder.ObserveLevelUp(out.grant.OldLevel, out.grant.NewLevel)
	if out.bonus != nil {
		h.recorder.ObserveGrant(string(bonus.Source), bonus.Amount)
		h.recorder.ObserveLevelUp(out.bonus.OldLevel, out.bonus.NewLevel)
	}
	return out, nil
}

func ledgerEntry(userID shared.UserID, g progression.Grant, after progression.State, at time.Time) progression.LedgerEntry {
	return progression.LedgerEntry{
		ID:         g.ID,
		UserID:     userID,
		Amount:     g.Amount,
		Source:     g.Source,
		SourceID:   g.SourceID,
		TotalAfter: after.TotalXP,
		CreatedAt:  at,
	}
}

func (h *GrantXPHandler) grantEvents(userID shared.UserID, grant progression.Grant, res progression.GrantResult, correlationID string) []shared.Event {
	granted := shared.NewXPGrantedEvent(userID.String(), grant.Amount, res.NewTotalXP, string(grant.Source), grant.SourceID)
	granted.BaseEvent = granted.WithCorrelationID(correlationID)
	events := []shared.Event{granted}

	if res.LeveledUp {
		up := shared.NewLevelUpEvent(userID.String(), res.OldLevel, res.NewLevel)
		up.BaseEvent = up.WithCorrelationID(correlationID)
		events = append(events, up)
	}
	return events
}

// finish drops the cached snapshot and publishes events.
func (h *GrantXPHandler) finish(ctx context.Context, userID shared.UserID, events []shared.Event) {
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, userID); err != nil {
			logger.FromContext(ctx).Warn("failed to invalidate progress cache",
				logger.UserID(userID.String()),
				logger.Err(err),
			)
		}
	}
	publishAll(ctx, h.publisher, events)
}
