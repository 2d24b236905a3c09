package notifications

import (
	"context"
	"fmt"
	"log/slog"

	"kpieval/internal/domain/apperr"
)

// Recorder receives a count per delivered notification. It is optional.
type Recorder interface {
	NotificationDispatched(ntype string, recipients int)
}

// Dispatcher writes notifications through the transaction of the state
// change that caused them, so both commit or roll back together.
type Dispatcher struct {
	recorder Recorder
}

func NewDispatcher(recorder Recorder) *Dispatcher {
	return &Dispatcher{recorder: recorder}
}

func (d *Dispatcher) Dispatch(ctx context.Context, tx TxStore, in Dispatch) (DispatchResult, error) {
	employees := uniqueNonZero(in.RecipientEmployeeIDs)
	users, err := tx.UserIDsByEmployeeIDs(ctx, employees)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("resolve recipients: %w", err)
	}

	var recipients, missing []int64
	for _, employeeID := range employees {
		if userID, ok := users[employeeID]; ok {
			recipients = append(recipients, userID)
			continue
		}
		missing = append(missing, employeeID)
	}
	if len(missing) > 0 || len(employees) == 0 {
		if in.Required {
			return DispatchResult{}, apperr.Integrity("recipient_missing", fmt.Sprintf("no user account for required recipient of %s", in.Type))
		}
		slog.Warn("notification recipient has no user account", "type", in.Type, "employee_ids", missing, "plan_id", in.PlanID)
	}
	if len(recipients) == 0 {
		return DispatchResult{Skipped: true}, nil
	}

	title := in.Title
	if title == "" {
		title = defaultTitles[in.Type]
	}
	id, created, err := tx.InsertNotification(ctx, Notification{
		Type:         in.Type,
		ActorID:      in.ActorID,
		CycleID:      in.CycleID,
		PlanID:       in.PlanID,
		AssignmentID: in.AssignmentID,
		EventID:      in.EventID,
		DedupeKey:    in.DedupeKey,
		Title:        title,
		Body:         in.Body,
		Meta:         in.Meta,
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("insert notification: %w", err)
	}
	if !created {
		return DispatchResult{NotificationID: id, Duplicate: true}, nil
	}

	status := ActionNone
	if in.ActionRequired {
		status = ActionOpen
	}
	delivered := 0
	for _, userID := range recipients {
		inserted, err := tx.InsertRecipient(ctx, id, userID, status)
		if err != nil {
			return DispatchResult{}, fmt.Errorf("insert recipient: %w", err)
		}
		if inserted {
			delivered++
		}
	}
	if d.recorder != nil {
		d.recorder.NotificationDispatched(in.Type, delivered)
	}
	return DispatchResult{NotificationID: id, Recipients: delivered}, nil
}

// CompleteActions moves every OPEN action item of the plan to DONE.
func (d *Dispatcher) CompleteActions(ctx context.Context, tx TxStore, planID int64) error {
	_, err := tx.CompleteActions(ctx, planID)
	return err
}

func uniqueNonZero(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
