// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// Отмечает переход на новый уровень. Когда меняется название уровня
// (Seedling → Sprout и т.д.), пишет отдельную запись о вехе.
// ═══════════════════════════════════════════════════════════════════════════

// MilestoneSink получает вехи прогресса.
type MilestoneSink interface {
	Milestone(userID string, level int, title string)
}

// OnLevelUpHandler обрабатывает progress.level_up.
type OnLevelUpHandler struct {
	sink   MilestoneSink
	logger *logger.Logger
}

// NewOnLevelUpHandler создаёт обработчик. sink может быть nil.
func NewOnLevelUpHandler(sink MilestoneSink, log *logger.Logger) *OnLevelUpHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnLevelUpHandler{sink: sink, logger: log.With(logger.String("handler", "on_level_up"))}
}

// Handle реализует shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.LevelUpEvent)
	if !ok {
		h.logger.Warn("unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	h.logger.Info("level up",
		logger.UserID(e.AggregateID()),
		logger.Int("old_level", e.OldLevel),
		logger.LevelNo(e.NewLevel),
	)

	oldTitle := progression.LevelTitle(e.OldLevel)
	newTitle := progression.LevelTitle(e.NewLevel)
	if oldTitle != newTitle && h.sink != nil {
		h.sink.Milestone(e.AggregateID(), e.NewLevel, newTitle)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// ON ASSESSMENT COMPLETED HANDLER
// Результаты, требующие внимания, передаются в канал поддержки.
// В событии нет ответов, только уровень и флаг.
// ═══════════════════════════════════════════════════════════════════════════

// FollowUpNotifier уведомляет службу поддержки.
type FollowUpNotifier interface {
	NotifyFollowUp(userID, kind, severity string) error
}

// OnAssessmentCompletedHandler обрабатывает assessment.completed.
type OnAssessmentCompletedHandler struct {
	notifier FollowUpNotifier
	logger   *logger.Logger
}

// NewOnAssessmentCompletedHandler создаёт обработчик. notifier может быть nil:
// тогда флаг только логируется.
func NewOnAssessmentCompletedHandler(notifier FollowUpNotifier, log *logger.Logger) *OnAssessmentCompletedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnAssessmentCompletedHandler{
		notifier: notifier,
		logger:   log.With(logger.String("handler", "on_assessment_completed")),
	}
}

// Handle реализует shared.EventHandler.
func (h *OnAssessmentCompletedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.AssessmentCompletedEvent)
	if !ok || !e.NeedsFollowUp {
		return nil
	}

	h.logger.Warn("assessment needs follow-up",
		logger.UserID(e.AggregateID()),
		logger.String("kind", e.Kind),
	)
	if h.notifier == nil {
		return nil
	}
	return h.notifier.NotifyFollowUp(e.AggregateID(), e.Kind, e.Severity)
}

// ═══════════════════════════════════════════════════════════════════════════
// REGISTRATION
// ═══════════════════════════════════════════════════════════════════════════

// Register подписывает обработчики на шину.
func Register(bus shared.EventSubscriber, levelUp *OnLevelUpHandler, assessment *OnAssessmentCompletedHandler) error {
	if err := bus.Subscribe(shared.EventLevelUp, levelUp.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventAssessmentCompleted, assessment.Handle)
}
