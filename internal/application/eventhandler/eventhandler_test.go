package eventhandler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soulspace/soulspace-hub/internal/domain/shared"
	"github.com/soulspace/soulspace-hub/internal/infrastructure/messaging"
	"github.com/soulspace/soulspace-hub/pkg/logger"
)

const alice = "7f1c9d4e-0a51-4c1b-9d6b-2f3f6a1e8b01"

type milestones []string

func (m *milestones) Milestone(_ string, _ int, title string) { *m = append(*m, title) }

type notifier struct {
	calls []string
	err   error
}

func (n *notifier) NotifyFollowUp(_, kind, severity string) error {
	n.calls = append(n.calls, kind+":"+severity)
	return n.err
}

func TestOnLevelUp_MilestoneOnTitleChange(t *testing.T) {
	var got milestones
	h := NewOnLevelUpHandler(&got, logger.Discard())

	require.NoError(t, h.Handle(shared.NewLevelUpEvent(alice, 1, 2)))
	require.NoError(t, h.Handle(shared.NewLevelUpEvent(alice, 2, 3)))
	require.NoError(t, h.Handle(shared.NewLevelUpEvent(alice, 4, 6)))
	require.NoError(t, h.Handle(shared.NewXPGrantedEvent(alice, 10, 10, "manual", "")))

	assert.Equal(t, milestones{"Sprout", "Bloom"}, got)
}

func TestOnAssessmentCompleted_NotifiesOnlyFollowUps(t *testing.T) {
	n := &notifier{}
	h := NewOnAssessmentCompletedHandler(n, logger.Discard())

	require.NoError(t, h.Handle(shared.NewAssessmentCompletedEvent(alice, "gad7", "mild", false)))
	require.NoError(t, h.Handle(shared.NewAssessmentCompletedEvent(alice, "phq9", "moderate", true)))
	assert.Equal(t, []string{"phq9:moderate"}, n.calls)

	n.err = errors.New("pager down")
	assert.Error(t, h.Handle(shared.NewAssessmentCompletedEvent(alice, "phq9", "severe", true)))
}

func TestRegister_WiresBus(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Discard()})
	var got milestones
	n := &notifier{}
	require.NoError(t, Register(bus,
		NewOnLevelUpHandler(&got, logger.Discard()),
		NewOnAssessmentCompletedHandler(n, logger.Discard()),
	))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent(alice, 2, 3)))
	require.NoError(t, bus.Publish(shared.NewAssessmentCompletedEvent(alice, "phq9", "severe", true)))

	assert.Equal(t, milestones{"Sprout"}, got)
	assert.Len(t, n.calls, 1)
}
