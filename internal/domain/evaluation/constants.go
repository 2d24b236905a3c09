package evaluation

const (
	GateDefine   = "DEFINE"
	GateEvaluate = "EVALUATE"
	GateSummary  = "SUMMARY"

	ModeEvaluatorDefines = "EVALUATOR_DEFINES_EVALUATEE_CONFIRMS"
	ModeEvaluateeDefines = "EVALUATEE_DEFINES_EVALUATOR_APPROVES"

	EvalNotStarted = "NOT_STARTED"
	EvalInProgress = "IN_PROGRESS"
	EvalSubmitted  = "SUBMITTED"

	PlanDraft    = "DRAFT"
	PlanActive   = "ACTIVE"
	PlanArchived = "ARCHIVED"

	ConfirmDraft     = "DRAFT"
	ConfirmRequested = "REQUESTED"
	ConfirmConfirmed = "CONFIRMED"
	ConfirmRejected  = "REJECTED"
	ConfirmCancelled = "CANCELLED"

	RoleEvaluator = "EVALUATOR"
	RoleEvaluatee = "EVALUATEE"

	EventRequest = "REQUEST"
	EventConfirm = "CONFIRM"
	EventReject  = "REJECT"
	EventCancel  = "CANCEL"
)

var GateTypes = []string{GateDefine, GateEvaluate, GateSummary}

func ValidGateType(t string) bool {
	switch t {
	case GateDefine, GateEvaluate, GateSummary:
		return true
	}
	return false
}

func ValidDefineMode(mode string) bool {
	return mode == ModeEvaluatorDefines || mode == ModeEvaluateeDefines
}
