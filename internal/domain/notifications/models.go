package notifications

import "time"

// Notification is the shared body of a message; each addressee gets its own
// recipient row. Zero IDs are stored as NULL.
type Notification struct {
	ID           int64
	Type         string
	ActorID      int64
	CycleID      int64
	PlanID       int64
	AssignmentID int64
	EventID      int64
	DedupeKey    string
	Title        string
	Body         string
	Meta         map[string]any
	CreatedAt    time.Time
}

// Item is one notification as seen by one recipient.
type Item struct {
	ID             int64          `json:"id"`
	NotificationID int64          `json:"notificationId"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	ActorID        int64          `json:"actorId,omitempty"`
	CycleID        int64          `json:"cycleId,omitempty"`
	PlanID         int64          `json:"planId,omitempty"`
	AssignmentID   int64          `json:"assignmentId,omitempty"`
	EventID        int64          `json:"eventId,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
	ActionStatus   string         `json:"actionStatus"`
	ReadAt         *time.Time     `json:"readAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Dispatch describes a notification to fan out inside the caller's
// transaction. Recipients are addressed by employee and resolved to users.
type Dispatch struct {
	Type                 string
	ActorID              int64
	CycleID              int64
	PlanID               int64
	AssignmentID         int64
	EventID              int64
	DedupeKey            string
	RecipientEmployeeIDs []int64
	// Required turns an unresolvable recipient into an integrity error
	// instead of a logged skip.
	Required bool
	// ActionRequired opens an action item for each recipient.
	ActionRequired bool
	Title          string
	Body           string
	Meta           map[string]any
}

type DispatchResult struct {
	NotificationID int64
	Recipients     int
	Duplicate      bool
	Skipped        bool
}
