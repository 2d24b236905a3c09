package evaluation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/domain/evaluation/evaltest"
	"kpieval/internal/domain/notifications"
)

type fixture struct {
	t          *testing.T
	ctx        context.Context
	store      *evaltest.Store
	svc        *evaluation.Service
	now        time.Time
	cycle      evaluation.Cycle
	assignment evaluation.Assignment
	owner      auth.UserContext
	confirmer  auth.UserContext
	recorded   map[string]int
}

func (f *fixture) RecordTransition(event string, err error) {
	if err == nil {
		f.recorded[event]++
	}
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	f := &fixture{t: t, ctx: context.Background(), store: evaltest.New(), now: t0, recorded: map[string]int{}}
	f.store.AddEmployee(10, 100)
	f.store.AddEmployee(20, 200)
	f.store.AddEmployee(30, 300)
	f.svc = evaluation.NewService(f.store, notifications.NewDispatcher(nil),
		evaluation.WithClock(func() time.Time { return f.now }),
		evaluation.WithRecorder(f))

	view, err := f.svc.CreateCycle(f.ctx, admin, evaluation.NewCycle{
		Name:          "FY2026",
		Year:          2026,
		StartDate:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		KpiDefineMode: mode,
	})
	if err != nil {
		t.Fatalf("create cycle: %v", err)
	}
	f.cycle = view.Cycle
	f.setGate(evaluation.GateDefine, true)

	f.assignment, err = f.svc.CreateAssignment(f.ctx, admin, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 20})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	f.owner, f.confirmer = evaluator, evaluatee
	if mode == evaluation.ModeEvaluateeDefines {
		f.owner, f.confirmer = evaluatee, evaluator
	}
	return f
}

func (f *fixture) setGate(gate string, enabled bool) {
	f.t.Helper()
	if _, err := f.svc.UpsertActivity(f.ctx, admin, f.cycle.PublicID, evaluation.ActivityInput{Type: gate, Enabled: enabled}); err != nil {
		f.t.Fatalf("set %s gate: %v", gate, err)
	}
}

func (f *fixture) draftPlan(items ...evaluation.NewItem) evaluation.PlanView {
	f.t.Helper()
	if len(items) == 0 {
		items = []evaluation.NewItem{
			{Title: "Revenue", Weight: 60, MaxScore: 5},
			{Title: "Quality", Weight: 40, MaxScore: 5},
		}
	}
	view, err := f.svc.CreatePlan(f.ctx, f.owner, f.assignment.ID, items)
	if err != nil {
		f.t.Fatalf("create plan: %v", err)
	}
	return view
}

func (f *fixture) confirmedPlan() evaluation.PlanView {
	f.t.Helper()
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, f.owner, view.Plan.ID); err != nil {
		f.t.Fatalf("request: %v", err)
	}
	if _, err := f.svc.ConfirmPlan(f.ctx, f.confirmer, view.Plan.ID); err != nil {
		f.t.Fatalf("confirm: %v", err)
	}
	return view
}

func (f *fixture) plan(id int64) evaluation.Plan {
	f.t.Helper()
	view, err := f.svc.GetPlan(f.ctx, admin, id)
	if err != nil {
		f.t.Fatalf("get plan: %v", err)
	}
	return view.Plan
}

func (f *fixture) currentAssignment() evaluation.Assignment {
	f.t.Helper()
	a, err := f.svc.GetAssignment(f.ctx, admin, f.assignment.ID)
	if err != nil {
		f.t.Fatalf("get assignment: %v", err)
	}
	return a
}

func (f *fixture) scoreAll(view evaluation.PlanView, scores ...float64) {
	f.t.Helper()
	var in []evaluation.ScoreInput
	for i, item := range view.Items {
		in = append(in, evaluation.ScoreInput{ItemID: item.ID, Score: scores[i]})
	}
	if _, err := f.svc.SaveScores(f.ctx, evaluator, f.assignment.ID, in); err != nil {
		f.t.Fatalf("save scores: %v", err)
	}
}

func TestRequestAndConfirm(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()

	res, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmStatus != evaluation.ConfirmRequested || res.PlanID != view.Plan.ID || res.EventID == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	p := f.plan(view.Plan.ID)
	if p.ConfirmTarget != evaluation.RoleEvaluatee || *p.ConfirmRequestedByID != evaluator.UserID {
		t.Fatalf("unexpected plan after request %+v", p)
	}
	if a := f.currentAssignment(); a.CurrentPlanID == nil || *a.CurrentPlanID != view.Plan.ID {
		t.Fatalf("request should make the plan current: %+v", a)
	}
	if got := f.store.ActionStatuses(view.Plan.ID)[evaluatee.UserID]; len(got) != 1 || got[0] != notifications.ActionOpen {
		t.Fatalf("expected an open action for the evaluatee, got %v", got)
	}

	res, err = f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmStatus != evaluation.ConfirmConfirmed {
		t.Fatalf("unexpected result %+v", res)
	}
	p = f.plan(view.Plan.ID)
	if p.Status != evaluation.PlanActive || p.ConfirmedByID == nil || *p.ConfirmedByID != evaluatee.UserID {
		t.Fatalf("unexpected plan after confirm %+v", p)
	}

	statuses := f.store.ActionStatuses(view.Plan.ID)
	if got := statuses[evaluatee.UserID]; len(got) != 1 || got[0] != notifications.ActionDone {
		t.Fatalf("expected the evaluatee action to be done, got %v", got)
	}
	if got := statuses[evaluator.UserID]; len(got) != 1 || got[0] != notifications.ActionNone {
		t.Fatalf("expected an informational notice for the evaluator, got %v", got)
	}

	events, err := f.svc.ListPlanEvents(f.ctx, evaluatee, view.Plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Type != evaluation.EventRequest || events[1].Type != evaluation.EventConfirm {
		t.Fatalf("unexpected history %+v", events)
	}
	if f.recorded[evaluation.EventRequest] != 1 || f.recorded[evaluation.EventConfirm] != 1 {
		t.Fatalf("unexpected recorder counts %v", f.recorded)
	}
}

func TestEvaluateeDefinesMode(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluateeDefines)
	view := f.draftPlan()

	_, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")

	if _, err := f.svc.RequestConfirm(f.ctx, evaluatee, view.Plan.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := f.plan(view.Plan.ID); p.ConfirmTarget != evaluation.RoleEvaluator {
		t.Fatalf("expected evaluator target, got %q", p.ConfirmTarget)
	}

	_, err = f.svc.CancelRequest(f.ctx, evaluator, view.Plan.ID)
	expectCode(t, err, apperr.ErrConflict, "cancel_not_allowed")

	_, err = f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")

	if _, err := f.svc.ConfirmPlan(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTransitionsRequireDefineGate(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()
	f.setGate(evaluation.GateDefine, false)

	_, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID)
	expectCode(t, err, apperr.ErrConflict, "gate_closed")
	if err.Error() != "DEFINE gate is not open" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(f.store.Events()) != 0 {
		t.Fatal("no event should be written when the gate is closed")
	}
}

func TestNonParticipantsAreForbidden(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()

	_, err := f.svc.RequestConfirm(f.ctx, outsider, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")
	_, err = f.svc.RequestConfirm(f.ctx, evaluatee, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")
	_, err = f.svc.GetPlan(f.ctx, outsider, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")
	_, err = f.svc.RequestConfirm(f.ctx, auth.UserContext{}, view.Plan.ID)
	expectCode(t, err, apperr.ErrUnauthenticated, "")

	if _, err := f.svc.RequestConfirm(f.ctx, admin, view.Plan.ID); err != nil {
		t.Fatalf("admin should be allowed: %v", err)
	}
	_, err = f.svc.ConfirmPlan(f.ctx, f.owner, 9999)
	expectCode(t, err, apperr.ErrNotFound, "")
}

func TestRejectRequiresReasonAndAllowsResubmission(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	_, err := f.svc.RejectPlan(f.ctx, evaluatee, view.Plan.ID, "   ")
	expectCode(t, err, apperr.ErrValidation, "reason_required")
	if len(f.store.Events()) != 1 {
		t.Fatal("a rejected reject must not write an event")
	}

	reason := " ไม่ตรงตามหน้าที่ "
	res, err := f.svc.RejectPlan(f.ctx, evaluatee, view.Plan.ID, reason)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmStatus != evaluation.ConfirmRejected {
		t.Fatalf("unexpected result %+v", res)
	}
	if p := f.plan(view.Plan.ID); p.RejectReason != reason {
		t.Fatalf("reason not stored verbatim: %q", p.RejectReason)
	}
	rows := f.store.NotificationRows()
	last := rows[len(rows)-1]
	if last.Type != notifications.TypePlanRejected || last.Meta["reason"] != reason {
		t.Fatalf("unexpected notification %+v", last)
	}

	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("re-request after reject: %v", err)
	}
	if p := f.plan(view.Plan.ID); p.RejectReason != "" {
		t.Fatalf("re-request should clear the reason, got %q", p.RejectReason)
	}
}

func TestCancelRequest(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	_, err := f.svc.CancelRequest(f.ctx, evaluatee, view.Plan.ID)
	expectCode(t, err, apperr.ErrForbidden, "")

	res, err := f.svc.CancelRequest(f.ctx, evaluator, view.Plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ConfirmStatus != evaluation.ConfirmCancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	p := f.plan(view.Plan.ID)
	if p.ConfirmTarget != "" || p.ConfirmRequestedAt != nil || p.ConfirmRequestedByID != nil {
		t.Fatalf("cancel should clear request fields: %+v", p)
	}
	if got := f.store.ActionStatuses(view.Plan.ID)[evaluatee.UserID]; len(got) != 2 || got[0] != notifications.ActionDone || got[1] != notifications.ActionNone {
		t.Fatalf("unexpected evaluatee actions %v", got)
	}

	_, err = f.svc.CancelRequest(f.ctx, evaluator, view.Plan.ID)
	expectCode(t, err, apperr.ErrConflict, "invalid_state")
}

func TestConcurrentConfirmHasOneWinner(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	const callers = 8
	errs := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID)
			return nil
		})
	}
	_ = g.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		expectCode(t, err, apperr.ErrConflict, "invalid_state")
		expectMessage(t, err, "plan is not REQUESTED")
	}
	if wins != 1 {
		t.Fatalf("expected exactly one successful confirm, got %d", wins)
	}
	confirms := 0
	for _, ev := range f.store.Events() {
		if ev.Type == evaluation.EventConfirm {
			confirms++
		}
	}
	if confirms != 1 {
		t.Fatalf("expected one CONFIRM event, got %d", confirms)
	}
}

func TestConfirmArchivesPreviousPlanAndFlagsReEvaluation(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	f.setGate(evaluation.GateEvaluate, true)
	v1 := f.confirmedPlan()
	f.scoreAll(v1, 4, 5)

	a := f.currentAssignment()
	if a.EvalStatus != evaluation.EvalInProgress || *a.EvaluatedPlanID != v1.Plan.ID {
		t.Fatalf("unexpected assignment after scoring %+v", a)
	}

	v2, err := f.svc.CreatePlan(f.ctx, evaluator, f.assignment.ID, nil)
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if v2.Plan.Version != 2 || len(v2.Items) != 2 || v2.Items[0].Title != "Revenue" {
		t.Fatalf("v2 should copy the current plan's items: %+v", v2)
	}
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, v2.Plan.ID); err != nil {
		t.Fatalf("request v2: %v", err)
	}
	if _, err := f.svc.ConfirmPlan(f.ctx, evaluatee, v2.Plan.ID); err != nil {
		t.Fatalf("confirm v2: %v", err)
	}

	if p := f.plan(v1.Plan.ID); p.Status != evaluation.PlanArchived {
		t.Fatalf("v1 should be archived, got %s", p.Status)
	}
	a = f.currentAssignment()
	if !a.NeedsReEval || *a.CurrentPlanID != v2.Plan.ID {
		t.Fatalf("expected re-evaluation against v2: %+v", a)
	}

	_, err = f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "needs_re_eval")

	_, err = f.svc.RequestConfirm(f.ctx, evaluator, v1.Plan.ID)
	expectCode(t, err, apperr.ErrConflict, "plan_archived")

	f.scoreAll(v2, 4, 5)
	if a := f.currentAssignment(); a.NeedsReEval {
		t.Fatal("scoring the current plan should clear the flag")
	}
	submitted, err := f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.EvalStatus != evaluation.EvalSubmitted || submitted.SubmittedByID == nil || *submitted.SubmittedByID != evaluator.UserID {
		t.Fatalf("unexpected assignment after submit %+v", submitted)
	}
}

func TestSubmitEvaluationGuards(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)

	_, err := f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "gate_closed")

	f.setGate(evaluation.GateEvaluate, true)
	_, err = f.svc.SubmitEvaluation(f.ctx, evaluatee, f.assignment.ID)
	expectCode(t, err, apperr.ErrForbidden, "")
	_, err = f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "no_current_plan")

	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "plan_not_confirmed")

	if _, err := f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = f.svc.SubmitEvaluation(f.ctx, evaluator, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "already_submitted")

	_, err = f.svc.CreatePlan(f.ctx, evaluator, f.assignment.ID, nil)
	expectCode(t, err, apperr.ErrConflict, "already_submitted")

	rows := f.store.NotificationRows()
	last := rows[len(rows)-1]
	if last.Type != notifications.TypeEvaluationSubmitted || last.DedupeKey == "" {
		t.Fatalf("unexpected submission notice %+v", last)
	}
}

func TestCloseCycle(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	f.setGate(evaluation.GateEvaluate, true)
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	_, err := f.svc.CloseCycle(f.ctx, evaluator, f.cycle.PublicID)
	expectCode(t, err, apperr.ErrForbidden, "")

	closed, err := f.svc.CloseCycle(f.ctx, admin, f.cycle.PublicID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Gates.Define || closed.Gates.Evaluate || !closed.Gates.Summary || closed.Cycle.ClosedAt == nil {
		t.Fatalf("unexpected state after close %+v", closed)
	}

	_, err = f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID)
	expectCode(t, err, apperr.ErrConflict, "gate_closed")
	expectMessage(t, err, "DEFINE gate is not open")
	if p := f.plan(view.Plan.ID); p.ConfirmStatus != evaluation.ConfirmRequested {
		t.Fatalf("pending request should stay REQUESTED after close, got %s", p.ConfirmStatus)
	}

	_, err = f.svc.CloseCycle(f.ctx, admin, f.cycle.PublicID)
	expectCode(t, err, apperr.ErrConflict, "cycle_closed")

	_, err = f.svc.UpsertActivity(f.ctx, admin, f.cycle.PublicID, evaluation.ActivityInput{Type: evaluation.GateDefine, Enabled: true})
	expectCode(t, err, apperr.ErrConflict, "cycle_closed")
}

func TestRequestWithoutConfirmerAccountRollsBack(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	f.store.AddEmployee(40, 0)
	a, err := f.svc.CreateAssignment(f.ctx, admin, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 40})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	view, err := f.svc.CreatePlan(f.ctx, evaluator, a.ID, []evaluation.NewItem{{Title: "Delivery", Weight: 100}})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	_, err = f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID)
	expectCode(t, err, apperr.ErrIntegrity, "recipient_missing")

	if p := f.plan(view.Plan.ID); p.ConfirmStatus != evaluation.ConfirmDraft {
		t.Fatalf("plan should stay DRAFT, got %s", p.ConfirmStatus)
	}
	if len(f.store.Events()) != 0 {
		t.Fatal("no event should survive the rollback")
	}
}

func TestNotificationFailureRollsBackTransition(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	view := f.draftPlan()
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, view.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	boom := errors.New("boom")
	f.store.FailOn("InsertNotification", boom)
	_, err := f.svc.ConfirmPlan(f.ctx, evaluatee, view.Plan.ID)
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if p := f.plan(view.Plan.ID); p.ConfirmStatus != evaluation.ConfirmRequested || p.Status != evaluation.PlanDraft {
		t.Fatalf("plan should be unchanged, got %+v", p)
	}
	if len(f.store.Events()) != 1 {
		t.Fatalf("expected only the request event, got %d", len(f.store.Events()))
	}
	if got := f.store.ActionStatuses(view.Plan.ID)[evaluatee.UserID]; got[0] != notifications.ActionOpen {
		t.Fatalf("action should remain open, got %v", got)
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)

	_, err := f.svc.CreateAssignment(f.ctx, admin, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 20})
	expectCode(t, err, apperr.ErrConflict, "duplicate_assignment")
	_, err = f.svc.CreateAssignment(f.ctx, admin, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 10})
	expectCode(t, err, apperr.ErrValidation, "")
	_, err = f.svc.CreateAssignment(f.ctx, evaluator, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 30})
	expectCode(t, err, apperr.ErrForbidden, "")

	f.draftPlan()
	err = f.svc.DeleteAssignment(f.ctx, admin, f.assignment.ID)
	expectCode(t, err, apperr.ErrConflict, "assignment_has_plans")

	other, err := f.svc.CreateAssignment(f.ctx, admin, f.cycle.PublicID, evaluation.NewAssignment{EvaluatorID: 10, EvaluateeID: 30})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.DeleteAssignment(f.ctx, admin, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = f.svc.GetAssignment(f.ctx, admin, other.ID)
	expectCode(t, err, apperr.ErrNotFound, "")
}

func TestCreatePlanCopiesNestedItems(t *testing.T) {
	f := newFixture(t, evaluation.ModeEvaluatorDefines)
	parent := 0
	v1 := f.draftPlan(
		evaluation.NewItem{Title: "Customers", Weight: 0},
		evaluation.NewItem{Title: "NPS", Weight: 50, ParentIndex: &parent},
		evaluation.NewItem{Title: "Churn", Weight: 50, ParentIndex: &parent},
	)
	if v1.Items[1].ParentID == nil || *v1.Items[1].ParentID != v1.Items[0].ID {
		t.Fatalf("child should point at parent: %+v", v1.Items)
	}
	if v1.Items[1].MaxScore != 5 {
		t.Fatalf("expected default max score 5, got %v", v1.Items[1].MaxScore)
	}
	if _, err := f.svc.RequestConfirm(f.ctx, evaluator, v1.Plan.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	v2, err := f.svc.CreatePlan(f.ctx, evaluator, f.assignment.ID, nil)
	if err != nil {
		t.Fatalf("create v2: %v", err)
	}
	if len(v2.Items) != 3 {
		t.Fatalf("expected 3 copied items, got %d", len(v2.Items))
	}
	if v2.Items[0].ID == v1.Items[0].ID || v2.Items[1].ParentID == nil || *v2.Items[1].ParentID != v2.Items[0].ID {
		t.Fatalf("copied items should be remapped: %+v", v2.Items)
	}

	bad := 5
	_, err = f.svc.CreatePlan(f.ctx, evaluator, f.assignment.ID, []evaluation.NewItem{{Title: "x", ParentIndex: &bad}})
	expectCode(t, err, apperr.ErrValidation, "invalid_payload")
}
