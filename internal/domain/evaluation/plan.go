package evaluation

import (
	"strings"
	"time"

	"kpieval/internal/domain/auth"
)

// The functions below are the pure plan state machine. Callers persist the
// returned plan and append the returned event in the same transaction.

func RequestConfirm(p Plan, c Cycle, actor auth.UserContext, now time.Time) (Plan, ConfirmEvent, error) {
	if p.Status == PlanArchived {
		return Plan{}, ConfirmEvent{}, errPlanArchived
	}
	switch p.ConfirmStatus {
	case ConfirmDraft, ConfirmRejected, ConfirmCancelled:
	default:
		return Plan{}, ConfirmEvent{}, errCannotRequest(p.ConfirmStatus)
	}

	from := p.ConfirmStatus
	target := ConfirmRole(c.KpiDefineMode)
	p.ConfirmStatus = ConfirmRequested
	p.ConfirmTarget = target
	p.ConfirmRequestedAt = timePtr(now)
	p.ConfirmRequestedByID = int64Ptr(actor.UserID)
	p.RejectReason = ""
	p.UpdatedAt = now
	return p, newEvent(p.ID, EventRequest, from, ConfirmRequested, target, actor.UserID, "", now), nil
}

func Confirm(p Plan, actor auth.UserContext, now time.Time) (Plan, ConfirmEvent, error) {
	if p.Status == PlanArchived {
		return Plan{}, ConfirmEvent{}, errPlanArchived
	}
	if p.ConfirmStatus != ConfirmRequested {
		return Plan{}, ConfirmEvent{}, errNotRequested
	}

	target := p.ConfirmTarget
	p.Status = PlanActive
	p.ConfirmStatus = ConfirmConfirmed
	p.ConfirmedAt = timePtr(now)
	p.ConfirmedByID = int64Ptr(actor.UserID)
	p.UpdatedAt = now
	return p, newEvent(p.ID, EventConfirm, ConfirmRequested, ConfirmConfirmed, target, actor.UserID, "", now), nil
}

// Reject requires a reason with visible text and stores it as given.
func Reject(p Plan, actor auth.UserContext, reason string, now time.Time) (Plan, ConfirmEvent, error) {
	if strings.TrimSpace(reason) == "" {
		return Plan{}, ConfirmEvent{}, errReasonRequired
	}
	if p.Status == PlanArchived {
		return Plan{}, ConfirmEvent{}, errPlanArchived
	}
	if p.ConfirmStatus != ConfirmRequested {
		return Plan{}, ConfirmEvent{}, errNotRequested
	}

	target := p.ConfirmTarget
	p.ConfirmStatus = ConfirmRejected
	p.RejectedAt = timePtr(now)
	p.RejectedByID = int64Ptr(actor.UserID)
	p.RejectReason = reason
	p.UpdatedAt = now
	return p, newEvent(p.ID, EventReject, ConfirmRequested, ConfirmRejected, target, actor.UserID, reason, now), nil
}

// CancelRequest withdraws a request. Only requests waiting on the evaluatee
// can be withdrawn.
func CancelRequest(p Plan, actor auth.UserContext, now time.Time) (Plan, ConfirmEvent, error) {
	if p.ConfirmStatus != ConfirmRequested {
		return Plan{}, ConfirmEvent{}, errNotRequested
	}
	if p.ConfirmTarget != RoleEvaluatee {
		return Plan{}, ConfirmEvent{}, errCancelNotAllowed
	}

	target := p.ConfirmTarget
	p.ConfirmStatus = ConfirmCancelled
	p.ConfirmTarget = ""
	p.ConfirmRequestedAt = nil
	p.ConfirmRequestedByID = nil
	p.UpdatedAt = now
	return p, newEvent(p.ID, EventCancel, ConfirmRequested, ConfirmCancelled, target, actor.UserID, "", now), nil
}

func newEvent(planID int64, eventType, from, to, target string, actorID int64, note string, now time.Time) ConfirmEvent {
	return ConfirmEvent{
		PlanID:     planID,
		Type:       eventType,
		FromStatus: from,
		ToStatus:   to,
		Target:     target,
		ActorID:    actorID,
		Note:       note,
		CreatedAt:  now,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func int64Ptr(v int64) *int64 {
	return &v
}
