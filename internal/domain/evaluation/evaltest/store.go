// Package evaltest provides an in-memory store for the evaluation and
// notification domains. Transactions are serialized and applied to a copy
// of the state that replaces the original only when fn succeeds.
package evaltest

import (
	"context"
	"slices"
	"sync"
	"time"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/domain/notifications"
)

type user struct {
	ID         int64
	EmployeeID int64
	Active     bool
}

type recipient struct {
	ID             int64
	NotificationID int64
	UserID         int64
	ActionStatus   string
	ReadAt         *time.Time
	CreatedAt      time.Time
}

type scoreRow struct {
	AssignmentID int64
	Score        evaluation.Score
}

type state struct {
	seq           int64
	employees     map[int64]bool
	users         map[int64]user
	cycles        map[int64]evaluation.Cycle
	activities    []evaluation.CycleActivity
	assignments   map[int64]evaluation.Assignment
	plans         map[int64]evaluation.Plan
	items         []evaluation.KpiItem
	scores        []scoreRow
	events        []evaluation.ConfirmEvent
	notifications []notifications.Notification
	recipients    []recipient
}

func newState() *state {
	return &state{
		employees:   map[int64]bool{},
		users:       map[int64]user{},
		cycles:      map[int64]evaluation.Cycle{},
		assignments: map[int64]evaluation.Assignment{},
		plans:       map[int64]evaluation.Plan{},
	}
}

func (st *state) clone() *state {
	c := &state{
		seq:           st.seq,
		employees:     make(map[int64]bool, len(st.employees)),
		users:         make(map[int64]user, len(st.users)),
		cycles:        make(map[int64]evaluation.Cycle, len(st.cycles)),
		activities:    slices.Clone(st.activities),
		assignments:   make(map[int64]evaluation.Assignment, len(st.assignments)),
		plans:         make(map[int64]evaluation.Plan, len(st.plans)),
		items:         slices.Clone(st.items),
		scores:        slices.Clone(st.scores),
		events:        slices.Clone(st.events),
		notifications: slices.Clone(st.notifications),
		recipients:    slices.Clone(st.recipients),
	}
	for k, v := range st.employees {
		c.employees[k] = v
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.cycles {
		c.cycles[k] = v
	}
	for k, v := range st.assignments {
		c.assignments[k] = v
	}
	for k, v := range st.plans {
		c.plans[k] = v
	}
	return c
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

// Store implements evaluation.StoreAPI and notifications.StoreAPI.
type Store struct {
	mu      sync.Mutex
	st      *state
	failOp  string
	failErr error
	txCount int
}

func New() *Store {
	return &Store{st: newState()}
}

// AddEmployee registers an employee and, when userID is non-zero, an active
// user account linked to it.
func (s *Store) AddEmployee(employeeID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.employees[employeeID] = true
	if userID != 0 {
		s.st.users[userID] = user{ID: userID, EmployeeID: employeeID, Active: true}
	}
}

// FailOn makes the next call of the named tx operation return err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOp, s.failErr = op, err
}

// Commits reports how many transactions committed.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *Store) InTx(ctx context.Context, fn func(evaluation.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &txView{store: s, st: s.st.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	s.txCount++
	return nil
}

func (s *Store) CycleByPublicID(_ context.Context, publicID string) (evaluation.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.cycleByPublicID(publicID)
}

func (s *Store) Cycle(_ context.Context, id int64) (evaluation.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.cycle(id)
}

func (s *Store) CycleActivities(_ context.Context, cycleID int64) ([]evaluation.CycleActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.cycleActivities(cycleID), nil
}

func (s *Store) Assignment(_ context.Context, id int64) (evaluation.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.assignment(id)
}

func (s *Store) Plan(_ context.Context, id int64) (evaluation.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.plan(id)
}

func (s *Store) PlanItems(_ context.Context, planID int64) ([]evaluation.KpiItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.planItems(planID), nil
}

func (s *Store) PlanEvents(_ context.Context, planID int64) ([]evaluation.ConfirmEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.planEvents(planID), nil
}

func (s *Store) Scores(_ context.Context, assignmentID int64) ([]evaluation.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.assignmentScores(assignmentID), nil
}

func (st *state) cycleByPublicID(publicID string) (evaluation.Cycle, error) {
	for _, c := range st.cycles {
		if c.PublicID == publicID {
			return c, nil
		}
	}
	return evaluation.Cycle{}, apperr.NotFound("cycle")
}

func (st *state) cycle(id int64) (evaluation.Cycle, error) {
	c, ok := st.cycles[id]
	if !ok {
		return evaluation.Cycle{}, apperr.NotFound("cycle")
	}
	return c, nil
}

func (st *state) cycleActivities(cycleID int64) []evaluation.CycleActivity {
	var out []evaluation.CycleActivity
	for _, a := range st.activities {
		if a.CycleID == cycleID {
			out = append(out, a)
		}
	}
	return out
}

func (st *state) assignment(id int64) (evaluation.Assignment, error) {
	a, ok := st.assignments[id]
	if !ok {
		return evaluation.Assignment{}, apperr.NotFound("assignment")
	}
	return a, nil
}

func (st *state) plan(id int64) (evaluation.Plan, error) {
	p, ok := st.plans[id]
	if !ok {
		return evaluation.Plan{}, apperr.NotFound("plan")
	}
	return p, nil
}

func (st *state) planItems(planID int64) []evaluation.KpiItem {
	var out []evaluation.KpiItem
	for _, item := range st.items {
		if item.PlanID == planID {
			out = append(out, item)
		}
	}
	slices.SortStableFunc(out, func(a, b evaluation.KpiItem) int {
		return a.SortOrder - b.SortOrder
	})
	return out
}

func (st *state) planEvents(planID int64) []evaluation.ConfirmEvent {
	var out []evaluation.ConfirmEvent
	for _, e := range st.events {
		if e.PlanID == planID {
			out = append(out, e)
		}
	}
	return out
}

func (st *state) assignmentScores(assignmentID int64) []evaluation.Score {
	var out []evaluation.Score
	for _, sc := range st.scores {
		if sc.AssignmentID == assignmentID {
			out = append(out, sc.Score)
		}
	}
	return out
}

// Events returns every confirm event in insertion order.
func (s *Store) Events() []evaluation.ConfirmEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.events)
}

// NotificationRows returns every notification row in insertion order.
func (s *Store) NotificationRows() []notifications.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.notifications)
}

// ActionStatuses maps user id to the action status of their recipient rows
// for the given plan.
func (s *Store) ActionStatuses(planID int64) map[int64][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[int64][]string{}
	for _, r := range s.st.recipients {
		for _, n := range s.st.notifications {
			if n.ID == r.NotificationID && n.PlanID == planID {
				out[r.UserID] = append(out[r.UserID], r.ActionStatus)
			}
		}
	}
	return out
}
