package evaltest

import (
	"context"
	"time"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/domain/notifications"
)

// txView implements evaluation.TxStore and notifications.TxStore over a
// private copy of the state. Locks are no-ops since the whole transaction
// holds the store mutex.
type txView struct {
	store *Store
	st    *state
}

func (t *txView) fail(op string) error {
	if t.store.failOp != op {
		return nil
	}
	err := t.store.failErr
	t.store.failOp, t.store.failErr = "", nil
	return err
}

func (t *txView) CycleByPublicID(_ context.Context, publicID string) (evaluation.Cycle, error) {
	return t.st.cycleByPublicID(publicID)
}

func (t *txView) Cycle(_ context.Context, id int64) (evaluation.Cycle, error) {
	return t.st.cycle(id)
}

func (t *txView) CycleActivities(_ context.Context, cycleID int64) ([]evaluation.CycleActivity, error) {
	return t.st.cycleActivities(cycleID), nil
}

func (t *txView) Assignment(_ context.Context, id int64) (evaluation.Assignment, error) {
	return t.st.assignment(id)
}

func (t *txView) Plan(_ context.Context, id int64) (evaluation.Plan, error) {
	return t.st.plan(id)
}

func (t *txView) PlanItems(_ context.Context, planID int64) ([]evaluation.KpiItem, error) {
	return t.st.planItems(planID), nil
}

func (t *txView) PlanEvents(_ context.Context, planID int64) ([]evaluation.ConfirmEvent, error) {
	return t.st.planEvents(planID), nil
}

func (t *txView) Scores(_ context.Context, assignmentID int64) ([]evaluation.Score, error) {
	return t.st.assignmentScores(assignmentID), nil
}

func (t *txView) LockCycle(_ context.Context, id int64, _ bool) (evaluation.Cycle, error) {
	return t.st.cycle(id)
}

func (t *txView) LockAssignment(_ context.Context, id int64) (evaluation.Assignment, error) {
	return t.st.assignment(id)
}

func (t *txView) LockPlan(_ context.Context, id int64) (evaluation.Plan, error) {
	return t.st.plan(id)
}

func (t *txView) CreateCycle(_ context.Context, c evaluation.Cycle) (evaluation.Cycle, error) {
	if err := t.fail("CreateCycle"); err != nil {
		return evaluation.Cycle{}, err
	}
	c.ID = t.st.nextID()
	c.CreatedAt = time.Now().UTC()
	t.st.cycles[c.ID] = c
	return c, nil
}

func (t *txView) InsertActivity(_ context.Context, a evaluation.CycleActivity) (evaluation.CycleActivity, error) {
	a.ID = t.st.nextID()
	t.st.activities = append(t.st.activities, a)
	return a, nil
}

func (t *txView) UpdateActivity(_ context.Context, a evaluation.CycleActivity) error {
	for i := range t.st.activities {
		if t.st.activities[i].ID == a.ID {
			t.st.activities[i] = a
			return nil
		}
	}
	return apperr.NotFound("activity")
}

func (t *txView) CloseCycle(ctx context.Context, cycleID int64, at time.Time) error {
	hasSummary := false
	for i := range t.st.activities {
		a := &t.st.activities[i]
		if a.CycleID != cycleID {
			continue
		}
		switch a.Type {
		case evaluation.GateDefine, evaluation.GateEvaluate:
			a.Enabled = false
		case evaluation.GateSummary:
			a.Enabled, a.StartAt, a.EndAt = true, nil, nil
			hasSummary = true
		}
	}
	if !hasSummary {
		if _, err := t.InsertActivity(ctx, evaluation.CycleActivity{CycleID: cycleID, Type: evaluation.GateSummary, Enabled: true}); err != nil {
			return err
		}
	}
	c, err := t.st.cycle(cycleID)
	if err != nil {
		return err
	}
	c.ClosedAt = &at
	t.st.cycles[cycleID] = c
	return nil
}

func (t *txView) CreateAssignment(_ context.Context, a evaluation.Assignment) (evaluation.Assignment, error) {
	if !t.st.employees[a.EvaluatorID] || !t.st.employees[a.EvaluateeID] {
		return evaluation.Assignment{}, apperr.Validation("invalid_payload", "unknown employee")
	}
	for _, existing := range t.st.assignments {
		if existing.CycleID == a.CycleID && existing.EvaluatorID == a.EvaluatorID && existing.EvaluateeID == a.EvaluateeID {
			return evaluation.Assignment{}, apperr.Conflict("duplicate_assignment", "assignment already exists for this pair")
		}
	}
	a.ID = t.st.nextID()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	t.st.assignments[a.ID] = a
	return a, nil
}

func (t *txView) UpdateAssignment(_ context.Context, a evaluation.Assignment) error {
	if err := t.fail("UpdateAssignment"); err != nil {
		return err
	}
	if _, ok := t.st.assignments[a.ID]; !ok {
		return apperr.NotFound("assignment")
	}
	t.st.assignments[a.ID] = a
	return nil
}

func (t *txView) CountPlans(_ context.Context, assignmentID int64) (int, error) {
	n := 0
	for _, p := range t.st.plans {
		if p.AssignmentID == assignmentID {
			n++
		}
	}
	return n, nil
}

func (t *txView) DeleteAssignment(_ context.Context, id int64) error {
	if _, ok := t.st.assignments[id]; !ok {
		return apperr.NotFound("assignment")
	}
	delete(t.st.assignments, id)
	return nil
}

func (t *txView) MaxPlanVersion(_ context.Context, assignmentID int64) (int, error) {
	version := 0
	for _, p := range t.st.plans {
		if p.AssignmentID == assignmentID && p.Version > version {
			version = p.Version
		}
	}
	return version, nil
}

func (t *txView) CreatePlan(_ context.Context, p evaluation.Plan) (evaluation.Plan, error) {
	for _, existing := range t.st.plans {
		if existing.AssignmentID == p.AssignmentID && existing.Version == p.Version {
			return evaluation.Plan{}, apperr.Conflict("duplicate_version", "plan version already exists")
		}
	}
	p.ID = t.st.nextID()
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	t.st.plans[p.ID] = p
	return p, nil
}

// UpdatePlan enforces at most one ACTIVE plan per assignment.
func (t *txView) UpdatePlan(_ context.Context, p evaluation.Plan) error {
	if err := t.fail("UpdatePlan"); err != nil {
		return err
	}
	if _, ok := t.st.plans[p.ID]; !ok {
		return apperr.NotFound("plan")
	}
	if p.Status == evaluation.PlanActive {
		for id, other := range t.st.plans {
			if id != p.ID && other.AssignmentID == p.AssignmentID && other.Status == evaluation.PlanActive {
				return apperr.Integrity("active_plan_exists", "another plan is already active")
			}
		}
	}
	t.st.plans[p.ID] = p
	return nil
}

func (t *txView) ArchiveActivePlans(_ context.Context, assignmentID, exceptPlanID int64, at time.Time) (int64, error) {
	var n int64
	for id, p := range t.st.plans {
		if id != exceptPlanID && p.AssignmentID == assignmentID && p.Status == evaluation.PlanActive {
			p.Status = evaluation.PlanArchived
			p.UpdatedAt = at
			t.st.plans[id] = p
			n++
		}
	}
	return n, nil
}

func (t *txView) InsertItem(_ context.Context, item evaluation.KpiItem) (evaluation.KpiItem, error) {
	item.ID = t.st.nextID()
	t.st.items = append(t.st.items, item)
	return item, nil
}

func (t *txView) UpsertScore(_ context.Context, assignmentID int64, sc evaluation.Score, _ int64, _ time.Time) error {
	for i := range t.st.scores {
		if t.st.scores[i].AssignmentID == assignmentID && t.st.scores[i].Score.ItemID == sc.ItemID {
			t.st.scores[i].Score = sc
			return nil
		}
	}
	t.st.scores = append(t.st.scores, scoreRow{AssignmentID: assignmentID, Score: sc})
	return nil
}

func (t *txView) InsertEvent(_ context.Context, e evaluation.ConfirmEvent) (evaluation.ConfirmEvent, error) {
	if err := t.fail("InsertEvent"); err != nil {
		return evaluation.ConfirmEvent{}, err
	}
	e.ID = t.st.nextID()
	t.st.events = append(t.st.events, e)
	return e, nil
}

func (t *txView) Notifications() notifications.TxStore {
	return t
}

func (t *txView) UserIDsByEmployeeIDs(_ context.Context, employeeIDs []int64) (map[int64]int64, error) {
	out := map[int64]int64{}
	for _, u := range t.st.users {
		if !u.Active {
			continue
		}
		for _, id := range employeeIDs {
			if u.EmployeeID == id {
				out[id] = u.ID
			}
		}
	}
	return out, nil
}

func (t *txView) InsertNotification(_ context.Context, n notifications.Notification) (int64, bool, error) {
	if err := t.fail("InsertNotification"); err != nil {
		return 0, false, err
	}
	if n.DedupeKey != "" {
		for _, existing := range t.st.notifications {
			if existing.DedupeKey == n.DedupeKey {
				return existing.ID, false, nil
			}
		}
	}
	n.ID = t.st.nextID()
	n.CreatedAt = time.Now().UTC()
	t.st.notifications = append(t.st.notifications, n)
	return n.ID, true, nil
}

func (t *txView) InsertRecipient(_ context.Context, notificationID, userID int64, actionStatus string) (bool, error) {
	for _, r := range t.st.recipients {
		if r.NotificationID == notificationID && r.UserID == userID {
			return false, nil
		}
	}
	t.st.recipients = append(t.st.recipients, recipient{
		ID:             t.st.nextID(),
		NotificationID: notificationID,
		UserID:         userID,
		ActionStatus:   actionStatus,
		CreatedAt:      time.Now().UTC(),
	})
	return true, nil
}

func (t *txView) CompleteActions(_ context.Context, planID int64) (int64, error) {
	planOf := map[int64]int64{}
	for _, n := range t.st.notifications {
		planOf[n.ID] = n.PlanID
	}
	var count int64
	for i := range t.st.recipients {
		r := &t.st.recipients[i]
		if planOf[r.NotificationID] == planID && r.ActionStatus == notifications.ActionOpen {
			r.ActionStatus = notifications.ActionDone
			count++
		}
	}
	return count, nil
}
