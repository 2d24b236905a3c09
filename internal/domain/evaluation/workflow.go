package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/notifications"
)

// planStep is one confirmation transition. authorize and apply run twice:
// once as a pre-check against unlocked rows, and again under locks inside
// the transaction, where before and after also run.
type planStep struct {
	event     string
	authorize func(u auth.UserContext, sc assignmentScope) error
	apply     func(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error)
	before    func(ctx context.Context, tx TxStore, sc assignmentScope, now time.Time) error
	after     func(ctx context.Context, tx TxStore, sc assignmentScope, plan Plan, ev ConfirmEvent, now time.Time) error
}

func (st planStep) check(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error) {
	if err := RequireGate(sc.Gates, GateDefine); err != nil {
		return Plan{}, ConfirmEvent{}, err
	}
	if sc.Cycle.IsClosed() {
		return Plan{}, ConfirmEvent{}, errCycleClosed
	}
	if err := st.authorize(u, sc); err != nil {
		return Plan{}, ConfirmEvent{}, err
	}
	if sc.Assignment.EvalStatus == EvalSubmitted {
		return Plan{}, ConfirmEvent{}, errAlreadySubmitted
	}
	return st.apply(u, sc, now)
}

func (s *Service) loadPlan(ctx context.Context, planID int64) (assignmentScope, error) {
	p, err := s.store.Plan(ctx, planID)
	if err != nil {
		return assignmentScope{}, err
	}
	sc, err := s.loadAssignment(ctx, s.store, p.AssignmentID)
	if err != nil {
		return assignmentScope{}, err
	}
	sc.Plan = &p
	return sc, nil
}

func (s *Service) runPlanStep(ctx context.Context, u auth.UserContext, planID int64, st planStep) (TransitionResult, error) {
	res, err := s.execPlanStep(ctx, u, planID, st)
	s.record(st.event, err)
	return res, err
}

func (s *Service) execPlanStep(ctx context.Context, u auth.UserContext, planID int64, st planStep) (TransitionResult, error) {
	if err := requireUser(u); err != nil {
		return TransitionResult{}, err
	}
	sc, err := s.loadPlan(ctx, planID)
	if err != nil {
		return TransitionResult{}, err
	}
	if _, _, err := st.check(u, sc, s.clock()); err != nil {
		return TransitionResult{}, err
	}

	var result TransitionResult
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := s.lockAssignment(ctx, tx, sc.Cycle.ID, sc.Assignment.ID, planID)
		if err != nil {
			return err
		}
		now := s.clock()
		plan, ev, err := st.check(u, locked, now)
		if err != nil {
			return err
		}
		if st.before != nil {
			if err := st.before(ctx, tx, locked, now); err != nil {
				return err
			}
		}
		if err := tx.UpdatePlan(ctx, plan); err != nil {
			return err
		}
		ev, err = tx.InsertEvent(ctx, ev)
		if err != nil {
			return err
		}
		if err := st.after(ctx, tx, locked, plan, ev, now); err != nil {
			return err
		}
		result = TransitionResult{EventID: ev.ID, PlanID: plan.ID, ConfirmStatus: plan.ConfirmStatus}
		return nil
	})
	return result, err
}

func planDispatch(ntype string, sc assignmentScope, plan Plan, ev ConfirmEvent, recipient int64) notifications.Dispatch {
	meta := map[string]any{
		"planVersion": plan.Version,
		"fromStatus":  ev.FromStatus,
		"toStatus":    ev.ToStatus,
	}
	if ev.Target != "" {
		meta["target"] = ev.Target
	}
	if ev.Note != "" {
		meta["reason"] = ev.Note
	}
	return notifications.Dispatch{
		Type:                 ntype,
		ActorID:              ev.ActorID,
		CycleID:              sc.Cycle.ID,
		PlanID:               plan.ID,
		AssignmentID:         sc.Assignment.ID,
		EventID:              ev.ID,
		DedupeKey:            "plan-event:" + strconv.FormatInt(ev.ID, 10),
		RecipientEmployeeIDs: []int64{recipient},
		Meta:                 meta,
	}
}

// RequestConfirm sends the plan to the confirming role.
func (s *Service) RequestConfirm(ctx context.Context, u auth.UserContext, planID int64) (TransitionResult, error) {
	return s.runPlanStep(ctx, u, planID, planStep{
		event: EventRequest,
		authorize: func(u auth.UserContext, sc assignmentScope) error {
			if !IsDefineOwner(u, sc.Cycle, sc.Assignment) {
				return apperr.Forbidden("only the plan owner can request confirmation")
			}
			return nil
		},
		apply: func(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error) {
			return RequestConfirm(*sc.Plan, sc.Cycle, u, now)
		},
		after: func(ctx context.Context, tx TxStore, sc assignmentScope, plan Plan, ev ConfirmEvent, now time.Time) error {
			if err := tx.UpdateAssignment(ctx, AfterRequest(sc.Assignment, plan.ID, now)); err != nil {
				return err
			}
			d := planDispatch(notifications.TypePlanConfirmRequested, sc, plan, ev, RoleEmployee(sc.Assignment, plan.ConfirmTarget))
			d.Required = true
			d.ActionRequired = true
			d.Body = fmt.Sprintf("KPI plan version %d is waiting for your confirmation.", plan.Version)
			_, err := s.notify.Dispatch(ctx, tx.Notifications(), d)
			return err
		},
	})
}

// ConfirmPlan activates the plan, archiving any other active plan of the
// assignment first.
func (s *Service) ConfirmPlan(ctx context.Context, u auth.UserContext, planID int64) (TransitionResult, error) {
	return s.runPlanStep(ctx, u, planID, planStep{
		event: EventConfirm,
		authorize: func(u auth.UserContext, sc assignmentScope) error {
			if !IsConfirmer(u, sc.Cycle, sc.Assignment, *sc.Plan) {
				return apperr.Forbidden("only the confirming party can confirm")
			}
			return nil
		},
		apply: func(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error) {
			return Confirm(*sc.Plan, u, now)
		},
		before: func(ctx context.Context, tx TxStore, sc assignmentScope, now time.Time) error {
			_, err := tx.ArchiveActivePlans(ctx, sc.Assignment.ID, sc.Plan.ID, now)
			return err
		},
		after: func(ctx context.Context, tx TxStore, sc assignmentScope, plan Plan, ev ConfirmEvent, now time.Time) error {
			if err := tx.UpdateAssignment(ctx, AfterConfirm(sc.Assignment, plan.ID, now)); err != nil {
				return err
			}
			if err := s.notify.CompleteActions(ctx, tx.Notifications(), plan.ID); err != nil {
				return err
			}
			confirmer := ev.Target
			if confirmer == "" {
				confirmer = ConfirmRole(sc.Cycle.KpiDefineMode)
			}
			d := planDispatch(notifications.TypePlanConfirmed, sc, plan, ev, RoleEmployee(sc.Assignment, OtherRole(confirmer)))
			d.Body = fmt.Sprintf("KPI plan version %d was confirmed.", plan.Version)
			_, err := s.notify.Dispatch(ctx, tx.Notifications(), d)
			return err
		},
	})
}

// RejectPlan returns the plan to its owner with a reason.
func (s *Service) RejectPlan(ctx context.Context, u auth.UserContext, planID int64, reason string) (TransitionResult, error) {
	if strings.TrimSpace(reason) == "" {
		s.record(EventReject, errReasonRequired)
		return TransitionResult{}, errReasonRequired
	}
	return s.runPlanStep(ctx, u, planID, planStep{
		event: EventReject,
		authorize: func(u auth.UserContext, sc assignmentScope) error {
			if !IsConfirmer(u, sc.Cycle, sc.Assignment, *sc.Plan) {
				return apperr.Forbidden("only the confirming party can reject")
			}
			return nil
		},
		apply: func(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error) {
			return Reject(*sc.Plan, u, reason, now)
		},
		after: func(ctx context.Context, tx TxStore, sc assignmentScope, plan Plan, ev ConfirmEvent, now time.Time) error {
			if err := s.notify.CompleteActions(ctx, tx.Notifications(), plan.ID); err != nil {
				return err
			}
			owner := RoleEmployee(sc.Assignment, DefineRole(sc.Cycle.KpiDefineMode))
			d := planDispatch(notifications.TypePlanRejected, sc, plan, ev, owner)
			d.Body = fmt.Sprintf("KPI plan version %d was rejected: %s", plan.Version, reason)
			_, err := s.notify.Dispatch(ctx, tx.Notifications(), d)
			return err
		},
	})
}

// CancelRequest withdraws a pending request addressed to the evaluatee.
func (s *Service) CancelRequest(ctx context.Context, u auth.UserContext, planID int64) (TransitionResult, error) {
	return s.runPlanStep(ctx, u, planID, planStep{
		event: EventCancel,
		authorize: func(u auth.UserContext, sc assignmentScope) error {
			if !CanCancel(u, sc.Assignment, *sc.Plan) {
				return apperr.Forbidden("only the evaluator or the requester can cancel")
			}
			return nil
		},
		apply: func(u auth.UserContext, sc assignmentScope, now time.Time) (Plan, ConfirmEvent, error) {
			return CancelRequest(*sc.Plan, u, now)
		},
		after: func(ctx context.Context, tx TxStore, sc assignmentScope, plan Plan, ev ConfirmEvent, now time.Time) error {
			if err := s.notify.CompleteActions(ctx, tx.Notifications(), plan.ID); err != nil {
				return err
			}
			d := planDispatch(notifications.TypePlanConfirmCancelled, sc, plan, ev, sc.Assignment.EvaluateeID)
			d.Body = fmt.Sprintf("The confirmation request for KPI plan version %d was cancelled.", plan.Version)
			_, err := s.notify.Dispatch(ctx, tx.Notifications(), d)
			return err
		},
	})
}

func checkSubmission(u auth.UserContext, sc assignmentScope) error {
	if err := RequireGate(sc.Gates, GateEvaluate); err != nil {
		return err
	}
	if sc.Cycle.IsClosed() {
		return errCycleClosed
	}
	if !IsEvaluator(u, sc.Assignment) {
		return apperr.Forbidden("only the evaluator can submit")
	}
	return CheckSubmission(sc.Assignment, sc.Plan)
}

// SubmitEvaluation finalizes the evaluation. It notifies the evaluatee
// without requiring an action.
func (s *Service) SubmitEvaluation(ctx context.Context, u auth.UserContext, assignmentID int64) (Assignment, error) {
	out, err := s.submitEvaluation(ctx, u, assignmentID)
	s.record("SUBMIT", err)
	return out, err
}

func (s *Service) submitEvaluation(ctx context.Context, u auth.UserContext, assignmentID int64) (Assignment, error) {
	if err := requireUser(u); err != nil {
		return Assignment{}, err
	}
	sc, err := s.loadAssignment(ctx, s.store, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if sc.Assignment.CurrentPlanID != nil {
		p, err := s.store.Plan(ctx, *sc.Assignment.CurrentPlanID)
		if err != nil {
			return Assignment{}, err
		}
		sc.Plan = &p
	}
	if err := checkSubmission(u, sc); err != nil {
		return Assignment{}, err
	}

	var out Assignment
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := s.lockAssignment(ctx, tx, sc.Cycle.ID, assignmentID, *sc.Assignment.CurrentPlanID)
		if err != nil {
			return err
		}
		if locked.Assignment.CurrentPlanID == nil || *locked.Assignment.CurrentPlanID != locked.Plan.ID {
			return errPlanMismatch
		}
		if err := checkSubmission(u, locked); err != nil {
			return err
		}
		out = Submit(locked.Assignment, u, s.clock())
		if err := tx.UpdateAssignment(ctx, out); err != nil {
			return err
		}
		_, err = s.notify.Dispatch(ctx, tx.Notifications(), notifications.Dispatch{
			Type:                 notifications.TypeEvaluationSubmitted,
			ActorID:              u.UserID,
			CycleID:              locked.Cycle.ID,
			PlanID:               locked.Plan.ID,
			AssignmentID:         assignmentID,
			DedupeKey:            "assignment-submitted:" + strconv.FormatInt(assignmentID, 10),
			RecipientEmployeeIDs: []int64{locked.Assignment.EvaluateeID},
			Body:                 fmt.Sprintf("Your evaluation for %s was submitted.", locked.Cycle.Name),
		})
		return err
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}
