package evaluation

import (
	"fmt"

	"kpieval/internal/domain/apperr"
)

var (
	errCycleClosed       = apperr.Conflict("cycle_closed", "cycle is closed")
	errPlanArchived      = apperr.Conflict("plan_archived", "plan is archived")
	errNotRequested      = apperr.Conflict("invalid_state", "plan is not REQUESTED")
	errCancelNotAllowed  = apperr.Conflict("cancel_not_allowed", "only requests awaiting the evaluatee can be cancelled")
	errAlreadySubmitted  = apperr.Conflict("already_submitted", "evaluation already submitted")
	errNoCurrentPlan     = apperr.Conflict("no_current_plan", "assignment has no current plan")
	errNeedsReEval       = apperr.Conflict("needs_re_eval", "evaluation must be redone against the current plan")
	errPlanMismatch      = apperr.Conflict("plan_mismatch", "evaluated plan is not the current plan")
	errPlanNotConfirmed  = apperr.Conflict("plan_not_confirmed", "current plan is not active and confirmed")
	errReasonRequired    = apperr.Validation("reason_required", "reason is required")
	errAssignmentInUse   = apperr.Conflict("assignment_has_plans", "assignment already has plans")
	errDuplicateAssign   = apperr.Conflict("duplicate_assignment", "assignment already exists for this pair")
	errAdminOnly         = apperr.Forbidden("admin access required")
	errNotParticipant    = apperr.Forbidden("not a participant of this assignment")
	errSelfAssignment    = apperr.Validation("invalid_payload", "evaluator and evaluatee must differ")
	errUnknownScoredItem = apperr.Validation("invalid_payload", "score refers to an item outside the current plan")
)

func errGateClosed(gate string) error {
	return apperr.Conflict("gate_closed", fmt.Sprintf("%s gate is not open", gate))
}

func errCannotRequest(from string) error {
	return apperr.Conflict("invalid_state", fmt.Sprintf("plan in %s cannot be requested", from))
}

func invalid(message string) error {
	return apperr.Validation("invalid_payload", message)
}
