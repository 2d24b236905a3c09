package evaluation

import "time"

type Cycle struct {
	ID            int64      `json:"-"`
	PublicID      string     `json:"id"`
	Name          string     `json:"name"`
	Year          int        `json:"year"`
	Round         int        `json:"round"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       time.Time  `json:"endDate"`
	KpiDefineMode string     `json:"kpiDefineMode"`
	ClosedAt      *time.Time `json:"closedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

func (c Cycle) IsClosed() bool {
	return c.ClosedAt != nil
}

type CycleActivity struct {
	ID      int64      `json:"id"`
	CycleID int64      `json:"-"`
	Type    string     `json:"type"`
	Enabled bool       `json:"enabled"`
	StartAt *time.Time `json:"startAt,omitempty"`
	EndAt   *time.Time `json:"endAt,omitempty"`
}

type Gates struct {
	Define   bool `json:"DEFINE"`
	Evaluate bool `json:"EVALUATE"`
	Summary  bool `json:"SUMMARY"`
}

type CycleView struct {
	Cycle      Cycle           `json:"cycle"`
	Activities []CycleActivity `json:"activities"`
	Gates      Gates           `json:"gates"`
}

type Assignment struct {
	ID              int64      `json:"id"`
	CycleID         int64      `json:"-"`
	EvaluatorID     int64      `json:"evaluatorId"`
	EvaluateeID     int64      `json:"evaluateeId"`
	WeightPercent   float64    `json:"weightPercent"`
	CurrentPlanID   *int64     `json:"currentPlanId"`
	EvaluatedPlanID *int64     `json:"evaluatedPlanId"`
	EvalStatus      string     `json:"evalStatus"`
	NeedsReEval     bool       `json:"needsReEval"`
	SubmittedAt     *time.Time `json:"submittedAt,omitempty"`
	SubmittedByID   *int64     `json:"submittedById,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Plan struct {
	ID                   int64      `json:"id"`
	AssignmentID         int64      `json:"assignmentId"`
	Version              int        `json:"version"`
	Status               string     `json:"status"`
	ConfirmStatus        string     `json:"confirmStatus"`
	ConfirmTarget        string     `json:"confirmTarget,omitempty"`
	ConfirmRequestedAt   *time.Time `json:"confirmRequestedAt,omitempty"`
	ConfirmRequestedByID *int64     `json:"confirmRequestedById,omitempty"`
	ConfirmedAt          *time.Time `json:"confirmedAt,omitempty"`
	ConfirmedByID        *int64     `json:"confirmedById,omitempty"`
	RejectedAt           *time.Time `json:"rejectedAt,omitempty"`
	RejectedByID         *int64     `json:"rejectedById,omitempty"`
	RejectReason         string     `json:"rejectReason,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

type KpiItem struct {
	ID        int64   `json:"id"`
	PlanID    int64   `json:"planId"`
	ParentID  *int64  `json:"parentId,omitempty"`
	Title     string  `json:"title"`
	Weight    float64 `json:"weight"`
	MaxScore  float64 `json:"maxScore"`
	SortOrder int     `json:"sortOrder"`
}

type PlanView struct {
	Plan  Plan      `json:"plan"`
	Items []KpiItem `json:"items"`
}

type Score struct {
	ItemID int64   `json:"itemId"`
	PlanID int64   `json:"planId"`
	Score  float64 `json:"score"`
	Note   string  `json:"note,omitempty"`
}

// ConfirmEvent is one append-only entry of a plan's confirmation history.
type ConfirmEvent struct {
	ID         int64     `json:"id"`
	PlanID     int64     `json:"planId"`
	Type       string    `json:"type"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Target     string    `json:"target,omitempty"`
	ActorID    int64     `json:"actorId"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type TransitionResult struct {
	EventID       int64  `json:"eventId"`
	PlanID        int64  `json:"planId"`
	ConfirmStatus string `json:"confirmStatus"`
}

type NewCycle struct {
	Name          string
	Year          int
	Round         int
	StartDate     time.Time
	EndDate       time.Time
	KpiDefineMode string
}

type ActivityInput struct {
	Type    string
	Enabled bool
	StartAt *time.Time
	EndAt   *time.Time
}

type NewAssignment struct {
	EvaluatorID   int64
	EvaluateeID   int64
	WeightPercent float64
}

type NewItem struct {
	ParentIndex *int
	Title       string
	Weight      float64
	MaxScore    float64
}

type ScoreInput struct {
	ItemID int64
	Score  float64
	Note   string
}
