package evaluation

import (
	"time"

	"kpieval/internal/domain/auth"
)

// AfterRequest points the assignment at the plan that was just sent for
// confirmation.
func AfterRequest(a Assignment, planID int64, now time.Time) Assignment {
	a.CurrentPlanID = int64Ptr(planID)
	a.UpdatedAt = now
	return a
}

// AfterConfirm makes planID current. Scores recorded against a different
// plan are flagged for re-evaluation.
func AfterConfirm(a Assignment, planID int64, now time.Time) Assignment {
	a.CurrentPlanID = int64Ptr(planID)
	if a.EvalStatus == EvalInProgress && a.EvaluatedPlanID != nil && *a.EvaluatedPlanID != planID {
		a.NeedsReEval = true
	}
	a.UpdatedAt = now
	return a
}

// CheckScoring validates that scores may be recorded against current.
func CheckScoring(a Assignment, current *Plan) error {
	if a.EvalStatus == EvalSubmitted {
		return errAlreadySubmitted
	}
	if a.CurrentPlanID == nil || current == nil {
		return errNoCurrentPlan
	}
	if current.Status != PlanActive || current.ConfirmStatus != ConfirmConfirmed {
		return errPlanNotConfirmed
	}
	return nil
}

func AfterScoring(a Assignment, planID int64, now time.Time) Assignment {
	if a.EvalStatus == EvalNotStarted {
		a.EvalStatus = EvalInProgress
	}
	a.EvaluatedPlanID = int64Ptr(planID)
	a.NeedsReEval = false
	a.UpdatedAt = now
	return a
}

// CheckSubmission runs the submission preconditions after the gate and actor
// checks, in order. current is the plan referenced by CurrentPlanID.
func CheckSubmission(a Assignment, current *Plan) error {
	if a.EvalStatus == EvalSubmitted {
		return errAlreadySubmitted
	}
	if a.CurrentPlanID == nil || current == nil {
		return errNoCurrentPlan
	}
	if a.NeedsReEval {
		return errNeedsReEval
	}
	if a.EvaluatedPlanID != nil && *a.EvaluatedPlanID != *a.CurrentPlanID {
		return errPlanMismatch
	}
	if current.Status != PlanActive || current.ConfirmStatus != ConfirmConfirmed {
		return errPlanNotConfirmed
	}
	return nil
}

func Submit(a Assignment, actor auth.UserContext, now time.Time) Assignment {
	a.EvalStatus = EvalSubmitted
	a.SubmittedAt = timePtr(now)
	a.SubmittedByID = int64Ptr(actor.UserID)
	a.UpdatedAt = now
	return a
}
