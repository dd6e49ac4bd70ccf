// Package apptest provides in-memory repositories and collaborators for
// application and interface tests.
package apptest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/soulspace/soulspace-hub/internal/domain/assessment"
	"github.com/soulspace/soulspace-hub/internal/domain/challenge"
	"github.com/soulspace/soulspace-hub/internal/domain/companion"
	"github.com/soulspace/soulspace-hub/internal/domain/goal"
	"github.com/soulspace/soulspace-hub/internal/domain/progression"
	"github.com/soulspace/soulspace-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepo is a progression.Repository with compare-and-swap semantics.
type ProgressRepo struct {
	mu     sync.Mutex
	states map[shared.UserID]progression.State
	ledger map[shared.UserID][]progression.LedgerEntry
	saves  int

	// conflicts makes the next N saves fail as if another writer won.
	conflicts int
}

var _ progression.Repository = (*ProgressRepo)(nil)

// NewProgressRepo creates an empty repository.
func NewProgressRepo() *ProgressRepo {
	return &ProgressRepo{
		states: make(map[shared.UserID]progression.State),
		ledger: make(map[shared.UserID][]progression.LedgerEntry),
	}
}

// InjectConflicts makes the next n saves return shared.ErrVersionConflict.
func (r *ProgressRepo) InjectConflicts(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = n
}

// Seed stores a state directly.
func (r *ProgressRepo) Seed(s progression.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s.UserID] = s
}

// Saves returns the number of successful saves.
func (r *ProgressRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *ProgressRepo) Get(_ context.Context, userID shared.UserID) (progression.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[userID]
	if !ok {
		return progression.State{}, shared.ErrProgressNotFound
	}
	return s, nil
}

func (r *ProgressRepo) Save(_ context.Context, next progression.State, expectedVersion int64, entries ...progression.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts > 0 {
		r.conflicts--
		return shared.ErrVersionConflict
	}

	current, ok := r.states[next.UserID]
	switch {
	case !ok && expectedVersion != 0:
		return shared.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return shared.ErrVersionConflict
	}

	r.states[next.UserID] = next
	r.ledger[next.UserID] = append(r.ledger[next.UserID], entries...)
	r.saves++
	return nil
}

func (r *ProgressRepo) History(_ context.Context, userID shared.UserID, limit int) ([]progression.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.ledger[userID]
	out := make([]progression.LedgerEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Cache is a progression.Cache backed by a map.
type Cache struct {
	mu          sync.Mutex
	snaps       map[shared.UserID]progression.Snapshot
	Invalidated int
}

var _ progression.Cache = (*Cache)(nil)

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{snaps: make(map[shared.UserID]progression.Snapshot)}
}

func (c *Cache) GetSnapshot(_ context.Context, userID shared.UserID) (progression.Snapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.snaps[userID]
	return s, ok, nil
}

func (c *Cache) SetSnapshot(_ context.Context, snap progression.Snapshot, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.UserID] = snap
	return nil
}

func (c *Cache) Invalidate(_ context.Context, userID shared.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, userID)
	c.Invalidated++
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GOALS
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepo is an in-memory goal.Repository.
type GoalRepo struct {
	mu    sync.Mutex
	goals map[string]goal.Goal
	order []string
}

var _ goal.Repository = (*GoalRepo)(nil)

// NewGoalRepo creates an empty repository.
func NewGoalRepo() *GoalRepo {
	return &GoalRepo{goals: make(map[string]goal.Goal)}
}

func (r *GoalRepo) Create(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.goals[g.ID]; ok {
		return shared.NewDomainError("goal", "Create", shared.ErrAlreadyExists, "goal already exists")
	}
	r.goals[g.ID] = *g
	r.order = append(r.order, g.ID)
	return nil
}

func (r *GoalRepo) GetByID(_ context.Context, id string) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok {
		return nil, shared.ErrGoalNotFound
	}
	return &g, nil
}

func (r *GoalRepo) Update(_ context.Context, g *goal.Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.goals[g.ID]; !ok {
		return shared.ErrGoalNotFound
	}
	r.goals[g.ID] = *g
	return nil
}

func (r *GoalRepo) ListByUser(_ context.Context, userID shared.UserID) ([]goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []goal.Goal
	for _, id := range r.order {
		if g := r.goals[id]; g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WELLBEING
// ══════════════════════════════════════════════════════════════════════════════

// AssessmentRepo is an in-memory assessment.Repository.
type AssessmentRepo struct {
	mu      sync.Mutex
	results []assessment.Result
}

var _ assessment.Repository = (*AssessmentRepo)(nil)

func (r *AssessmentRepo) Save(_ context.Context, res *assessment.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, *res)
	return nil
}

func (r *AssessmentRepo) ListByUser(_ context.Context, userID shared.UserID, limit int) ([]assessment.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []assessment.Result
	for i := len(r.results) - 1; i >= 0; i-- {
		if r.results[i].UserID == userID {
			out = append(out, r.results[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ChallengeRepo is an in-memory challenge.Repository.
type ChallengeRepo struct {
	mu   sync.Mutex
	done map[string]challenge.Completion
}

var _ challenge.Repository = (*ChallengeRepo)(nil)

// NewChallengeRepo creates an empty repository.
func NewChallengeRepo() *ChallengeRepo {
	return &ChallengeRepo{done: make(map[string]challenge.Completion)}
}

func completionKey(userID shared.UserID, challengeID, day string) string {
	return userID.String() + "|" + challengeID + "|" + day
}

func (r *ChallengeRepo) Record(_ context.Context, c challenge.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := completionKey(c.UserID, c.ChallengeID, c.Day)
	if _, ok := r.done[key]; ok {
		return shared.ErrChallengeAlreadyCompleted
	}
	r.done[key] = c
	return nil
}

func (r *ChallengeRepo) Remove(_ context.Context, c challenge.Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.done, completionKey(c.UserID, c.ChallengeID, c.Day))
	return nil
}

func (r *ChallengeRepo) CompletedOn(_ context.Context, userID shared.UserID, day string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.done {
		if c.UserID == userID && c.Day == day {
			out = append(out, c.ChallengeID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// CompanionRepo is an in-memory companion.Repository.
type CompanionRepo struct {
	mu       sync.Mutex
	profiles map[shared.UserID]companion.Profile
}

var _ companion.Repository = (*CompanionRepo)(nil)

// NewCompanionRepo creates an empty repository.
func NewCompanionRepo() *CompanionRepo {
	return &CompanionRepo{profiles: make(map[shared.UserID]companion.Profile)}
}

func (r *CompanionRepo) Upsert(_ context.Context, p *companion.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = *p
	return nil
}

func (r *CompanionRepo) Get(_ context.Context, userID shared.UserID) (*companion.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, shared.ErrCompanionProfileNotFound
	}
	return &p, nil
}

func (r *CompanionRepo) ListAvailable(_ context.Context, exclude shared.UserID, limit int) ([]companion.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []companion.Profile
	for id, p := range r.profiles {
		if id != exclude && p.Available {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events []shared.Event
}

var _ shared.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// Types returns the types of published events in order.
func (p *Publisher) Types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

// Events returns a copy of published events.
func (p *Publisher) Events() []shared.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]shared.Event(nil), p.events...)
}
