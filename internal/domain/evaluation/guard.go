package evaluation

import "kpieval/internal/domain/auth"

// Admins satisfy every predicate in this file.

func IsEvaluator(u auth.UserContext, a Assignment) bool {
	return u.IsAdmin || (u.HasEmployee() && u.EmployeeID == a.EvaluatorID)
}

func IsEvaluatee(u auth.UserContext, a Assignment) bool {
	return u.IsAdmin || (u.HasEmployee() && u.EmployeeID == a.EvaluateeID)
}

func IsParticipant(u auth.UserContext, a Assignment) bool {
	return IsEvaluator(u, a) || IsEvaluatee(u, a)
}

// DefineRole is the role that authors and submits plans for confirmation.
func DefineRole(mode string) string {
	if mode == ModeEvaluatorDefines {
		return RoleEvaluator
	}
	return RoleEvaluatee
}

// ConfirmRole is the counterpart of DefineRole.
func ConfirmRole(mode string) string {
	return OtherRole(DefineRole(mode))
}

func OtherRole(role string) string {
	if role == RoleEvaluator {
		return RoleEvaluatee
	}
	return RoleEvaluator
}

func HasRole(u auth.UserContext, a Assignment, role string) bool {
	if role == RoleEvaluator {
		return IsEvaluator(u, a)
	}
	return IsEvaluatee(u, a)
}

// RoleEmployee returns the employee holding role on the assignment.
func RoleEmployee(a Assignment, role string) int64 {
	if role == RoleEvaluator {
		return a.EvaluatorID
	}
	return a.EvaluateeID
}

func IsDefineOwner(u auth.UserContext, c Cycle, a Assignment) bool {
	return HasRole(u, a, DefineRole(c.KpiDefineMode))
}

// IsConfirmer checks the actor against the plan's pending target, falling
// back to the cycle's confirm role when the plan has none.
func IsConfirmer(u auth.UserContext, c Cycle, a Assignment, p Plan) bool {
	target := p.ConfirmTarget
	if target == "" {
		target = ConfirmRole(c.KpiDefineMode)
	}
	return HasRole(u, a, target)
}

// CanCancel admits the evaluator and whoever raised the request.
func CanCancel(u auth.UserContext, a Assignment, p Plan) bool {
	if IsEvaluator(u, a) {
		return true
	}
	return p.ConfirmRequestedByID != nil && *p.ConfirmRequestedByID == u.UserID
}
