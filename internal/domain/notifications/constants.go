package notifications

const (
	TypePlanConfirmRequested = "PLAN_CONFIRM_REQUESTED"
	TypePlanConfirmed        = "PLAN_CONFIRMED"
	TypePlanRejected         = "PLAN_REJECTED"
	TypePlanConfirmCancelled = "PLAN_CONFIRM_CANCELLED"
	TypeEvaluationSubmitted  = "EVALUATION_SUBMITTED"

	ActionNone = "NONE"
	ActionOpen = "OPEN"
	ActionDone = "DONE"

	DefaultPageSize = 20
	MaxPageSize     = 100
)

var defaultTitles = map[string]string{
	TypePlanConfirmRequested: "KPI plan awaiting your confirmation",
	TypePlanConfirmed:        "KPI plan confirmed",
	TypePlanRejected:         "KPI plan rejected",
	TypePlanConfirmCancelled: "KPI plan confirmation request cancelled",
	TypeEvaluationSubmitted:  "Evaluation submitted",
}
