package evaluation

import (
	"context"
	"time"

	"kpieval/internal/domain/notifications"
)

// Reader is implemented by both the pool-bound and the tx-bound store.
// Missing rows are reported as apperr not-found errors.
type Reader interface {
	CycleByPublicID(ctx context.Context, publicID string) (Cycle, error)
	Cycle(ctx context.Context, id int64) (Cycle, error)
	CycleActivities(ctx context.Context, cycleID int64) ([]CycleActivity, error)
	Assignment(ctx context.Context, id int64) (Assignment, error)
	Plan(ctx context.Context, id int64) (Plan, error)
	PlanItems(ctx context.Context, planID int64) ([]KpiItem, error)
	PlanEvents(ctx context.Context, planID int64) ([]ConfirmEvent, error)
	Scores(ctx context.Context, assignmentID int64) ([]Score, error)
}

type StoreAPI interface {
	Reader
	// InTx runs fn in one transaction, retrying the whole of fn on
	// serialization failures.
	InTx(ctx context.Context, fn func(TxStore) error) error
}

// TxStore locks in the order cycle, assignment, plan.
type TxStore interface {
	Reader

	LockCycle(ctx context.Context, id int64, exclusive bool) (Cycle, error)
	LockAssignment(ctx context.Context, id int64) (Assignment, error)
	LockPlan(ctx context.Context, id int64) (Plan, error)

	CreateCycle(ctx context.Context, c Cycle) (Cycle, error)
	InsertActivity(ctx context.Context, a CycleActivity) (CycleActivity, error)
	UpdateActivity(ctx context.Context, a CycleActivity) error
	CloseCycle(ctx context.Context, cycleID int64, at time.Time) error

	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	UpdateAssignment(ctx context.Context, a Assignment) error
	CountPlans(ctx context.Context, assignmentID int64) (int, error)
	DeleteAssignment(ctx context.Context, id int64) error

	MaxPlanVersion(ctx context.Context, assignmentID int64) (int, error)
	CreatePlan(ctx context.Context, p Plan) (Plan, error)
	UpdatePlan(ctx context.Context, p Plan) error
	ArchiveActivePlans(ctx context.Context, assignmentID, exceptPlanID int64, at time.Time) (int64, error)
	InsertItem(ctx context.Context, item KpiItem) (KpiItem, error)

	UpsertScore(ctx context.Context, assignmentID int64, s Score, scoredBy int64, at time.Time) error
	InsertEvent(ctx context.Context, e ConfirmEvent) (ConfirmEvent, error)

	Notifications() notifications.TxStore
}
