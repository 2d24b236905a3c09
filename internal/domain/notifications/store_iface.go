package notifications

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListForUser(ctx context.Context, userID int64, unreadOnly bool, limit, offset int) ([]Item, error)
	CountForUser(ctx context.Context, userID int64, unreadOnly bool) (int, error)
	MarkRead(ctx context.Context, userID, recipientID int64, at time.Time) (bool, error)
	RecipientExists(ctx context.Context, userID, recipientID int64) (bool, error)
	MarkAllRead(ctx context.Context, userID int64, at time.Time) (int64, error)
}

// TxStore is the write side used by the Dispatcher. Implementations must be
// bound to the caller's transaction.
type TxStore interface {
	UserIDsByEmployeeIDs(ctx context.Context, employeeIDs []int64) (map[int64]int64, error)
	InsertNotification(ctx context.Context, n Notification) (id int64, created bool, err error)
	InsertRecipient(ctx context.Context, notificationID, userID int64, actionStatus string) (bool, error)
	CompleteActions(ctx context.Context, planID int64) (int64, error)
}
