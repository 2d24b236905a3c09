package evaluation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/notifications"
)

// Recorder observes workflow outcomes. err is nil on success.
type Recorder interface {
	RecordTransition(event string, err error)
}

type Service struct {
	store    StoreAPI
	notify   *notifications.Dispatcher
	now      func() time.Time
	recorder Recorder
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

func NewService(store StoreAPI, notify *notifications.Dispatcher, opts ...Option) *Service {
	s := &Service{store: store, notify: notify, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.notify == nil {
		s.notify = notifications.NewDispatcher(nil)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

func (s *Service) record(event string, err error) {
	if s.recorder != nil {
		s.recorder.RecordTransition(event, err)
	}
}

func requireUser(u auth.UserContext) error {
	if u.UserID == 0 {
		return apperr.Unauthenticated()
	}
	return nil
}

func requireAdmin(u auth.UserContext) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if !u.IsAdmin {
		return errAdminOnly
	}
	return nil
}

func isUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func (s *Service) gates(ctx context.Context, r Reader, cycleID int64) ([]CycleActivity, Gates, error) {
	activities, err := r.CycleActivities(ctx, cycleID)
	if err != nil {
		return nil, Gates{}, err
	}
	return activities, GatesFor(activities, s.clock()), nil
}

// assignmentScope is an assignment with its cycle and the gate state at load
// time. Plan is set when the caller asked for one.
type assignmentScope struct {
	Cycle      Cycle
	Gates      Gates
	Assignment Assignment
	Plan       *Plan
}

func (s *Service) loadAssignment(ctx context.Context, r Reader, assignmentID int64) (assignmentScope, error) {
	a, err := r.Assignment(ctx, assignmentID)
	if err != nil {
		return assignmentScope{}, err
	}
	c, err := r.Cycle(ctx, a.CycleID)
	if err != nil {
		return assignmentScope{}, err
	}
	_, g, err := s.gates(ctx, r, c.ID)
	if err != nil {
		return assignmentScope{}, err
	}
	return assignmentScope{Cycle: c, Gates: g, Assignment: a}, nil
}

// lockAssignment reloads the scope under row locks: cycle shared, then the
// assignment, then planID when non-zero.
func (s *Service) lockAssignment(ctx context.Context, tx TxStore, cycleID, assignmentID, planID int64) (assignmentScope, error) {
	c, err := tx.LockCycle(ctx, cycleID, false)
	if err != nil {
		return assignmentScope{}, err
	}
	a, err := tx.LockAssignment(ctx, assignmentID)
	if err != nil {
		return assignmentScope{}, err
	}
	sc := assignmentScope{Cycle: c, Assignment: a}
	if planID != 0 {
		p, err := tx.LockPlan(ctx, planID)
		if err != nil {
			return assignmentScope{}, err
		}
		sc.Plan = &p
	}
	if _, sc.Gates, err = s.gates(ctx, tx, c.ID); err != nil {
		return assignmentScope{}, err
	}
	return sc, nil
}

// Cycles

func (s *Service) CreateCycle(ctx context.Context, u auth.UserContext, in NewCycle) (CycleView, error) {
	if err := requireAdmin(u); err != nil {
		return CycleView{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Round == 0 {
		in.Round = 1
	}
	switch {
	case in.Name == "":
		return CycleView{}, invalid("name is required")
	case in.Year <= 0 || in.Round < 0:
		return CycleView{}, invalid("year and round must be positive")
	case in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate):
		return CycleView{}, invalid("endDate must not be before startDate")
	case !ValidDefineMode(in.KpiDefineMode):
		return CycleView{}, invalid("kpiDefineMode is invalid")
	}

	var view CycleView
	err := s.store.InTx(ctx, func(tx TxStore) error {
		c, err := tx.CreateCycle(ctx, Cycle{
			PublicID:      uuid.NewString(),
			Name:          in.Name,
			Year:          in.Year,
			Round:         in.Round,
			StartDate:     in.StartDate,
			EndDate:       in.EndDate,
			KpiDefineMode: in.KpiDefineMode,
		})
		if err != nil {
			return err
		}
		view = CycleView{Cycle: c}
		for _, gate := range GateTypes {
			act, err := tx.InsertActivity(ctx, CycleActivity{CycleID: c.ID, Type: gate})
			if err != nil {
				return err
			}
			view.Activities = append(view.Activities, act)
		}
		return nil
	})
	if err != nil {
		return CycleView{}, err
	}
	return view, nil
}

func (s *Service) GetCycle(ctx context.Context, u auth.UserContext, publicID string) (CycleView, error) {
	if err := requireUser(u); err != nil {
		return CycleView{}, err
	}
	c, err := s.store.CycleByPublicID(ctx, publicID)
	if err != nil {
		return CycleView{}, err
	}
	acts, g, err := s.gates(ctx, s.store, c.ID)
	if err != nil {
		return CycleView{}, err
	}
	return CycleView{Cycle: c, Activities: acts, Gates: g}, nil
}

// Gates answers which phases of the cycle are open right now.
func (s *Service) Gates(ctx context.Context, u auth.UserContext, publicID string) (Gates, error) {
	view, err := s.GetCycle(ctx, u, publicID)
	if err != nil {
		return Gates{}, err
	}
	return view.Gates, nil
}

// UpsertActivity edits the lowest-id row of the type, creating it if the
// cycle has none.
func (s *Service) UpsertActivity(ctx context.Context, u auth.UserContext, publicID string, in ActivityInput) (CycleActivity, error) {
	if err := requireAdmin(u); err != nil {
		return CycleActivity{}, err
	}
	if !ValidGateType(in.Type) {
		return CycleActivity{}, invalid("type must be DEFINE, EVALUATE or SUMMARY")
	}
	if in.StartAt != nil && in.EndAt != nil && in.EndAt.Before(*in.StartAt) {
		return CycleActivity{}, invalid("endAt must not be before startAt")
	}
	c, err := s.store.CycleByPublicID(ctx, publicID)
	if err != nil {
		return CycleActivity{}, err
	}

	var out CycleActivity
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := tx.LockCycle(ctx, c.ID, true)
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return errCycleClosed
		}
		acts, err := tx.CycleActivities(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, a := range acts {
			if a.Type != in.Type {
				continue
			}
			a.Enabled, a.StartAt, a.EndAt = in.Enabled, in.StartAt, in.EndAt
			out = a
			return tx.UpdateActivity(ctx, a)
		}
		out, err = tx.InsertActivity(ctx, CycleActivity{CycleID: c.ID, Type: in.Type, Enabled: in.Enabled, StartAt: in.StartAt, EndAt: in.EndAt})
		return err
	})
	if err != nil {
		return CycleActivity{}, err
	}
	return out, nil
}

// CloseCycle takes the cycle row exclusively, so it serializes against every
// in-flight transition holding it shared.
func (s *Service) CloseCycle(ctx context.Context, u auth.UserContext, publicID string) (CycleView, error) {
	if err := requireAdmin(u); err != nil {
		return CycleView{}, err
	}
	c, err := s.store.CycleByPublicID(ctx, publicID)
	if err != nil {
		return CycleView{}, err
	}
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := tx.LockCycle(ctx, c.ID, true)
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return errCycleClosed
		}
		return tx.CloseCycle(ctx, c.ID, s.clock())
	})
	s.record("CLOSE_CYCLE", err)
	if err != nil {
		return CycleView{}, err
	}
	return s.GetCycle(ctx, u, publicID)
}

// Assignments

func (s *Service) CreateAssignment(ctx context.Context, u auth.UserContext, publicID string, in NewAssignment) (Assignment, error) {
	if err := requireAdmin(u); err != nil {
		return Assignment{}, err
	}
	if in.WeightPercent == 0 {
		in.WeightPercent = 100
	}
	switch {
	case in.EvaluatorID <= 0 || in.EvaluateeID <= 0:
		return Assignment{}, invalid("evaluatorId and evaluateeId are required")
	case in.EvaluatorID == in.EvaluateeID:
		return Assignment{}, errSelfAssignment
	case in.WeightPercent < 0 || in.WeightPercent > 100:
		return Assignment{}, invalid("weightPercent must be between 0 and 100")
	}
	c, err := s.store.CycleByPublicID(ctx, publicID)
	if err != nil {
		return Assignment{}, err
	}

	var out Assignment
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := tx.LockCycle(ctx, c.ID, false)
		if err != nil {
			return err
		}
		if locked.IsClosed() {
			return errCycleClosed
		}
		out, err = tx.CreateAssignment(ctx, Assignment{
			CycleID:       c.ID,
			EvaluatorID:   in.EvaluatorID,
			EvaluateeID:   in.EvaluateeID,
			WeightPercent: in.WeightPercent,
			EvalStatus:    EvalNotStarted,
		})
		return err
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}

func (s *Service) GetAssignment(ctx context.Context, u auth.UserContext, assignmentID int64) (Assignment, error) {
	if err := requireUser(u); err != nil {
		return Assignment{}, err
	}
	a, err := s.store.Assignment(ctx, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if !IsParticipant(u, a) {
		return Assignment{}, errNotParticipant
	}
	return a, nil
}

func (s *Service) DeleteAssignment(ctx context.Context, u auth.UserContext, assignmentID int64) error {
	if err := requireAdmin(u); err != nil {
		return err
	}
	return s.store.InTx(ctx, func(tx TxStore) error {
		if _, err := tx.LockAssignment(ctx, assignmentID); err != nil {
			return err
		}
		n, err := tx.CountPlans(ctx, assignmentID)
		if err != nil {
			return err
		}
		if n > 0 {
			return errAssignmentInUse
		}
		return tx.DeleteAssignment(ctx, assignmentID)
	})
}

// Plans

func checkPlanAuthoring(u auth.UserContext, sc assignmentScope) error {
	if err := RequireGate(sc.Gates, GateDefine); err != nil {
		return err
	}
	if sc.Cycle.IsClosed() {
		return errCycleClosed
	}
	if !IsDefineOwner(u, sc.Cycle, sc.Assignment) {
		return apperr.Forbidden("only the plan owner can author plans")
	}
	if sc.Assignment.EvalStatus == EvalSubmitted {
		return errAlreadySubmitted
	}
	return nil
}

func validateItems(items []NewItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			return invalid("item title is required")
		}
		if item.Weight < 0 || item.MaxScore < 0 {
			return invalid("item weight and maxScore must not be negative")
		}
		if item.ParentIndex != nil && (*item.ParentIndex < 0 || *item.ParentIndex >= i) {
			return invalid("item parentIndex must refer to an earlier item")
		}
	}
	return nil
}

// CreatePlan opens the next plan version in DRAFT. Without items, the items
// of the current plan are carried over.
func (s *Service) CreatePlan(ctx context.Context, u auth.UserContext, assignmentID int64, items []NewItem) (PlanView, error) {
	if err := requireUser(u); err != nil {
		return PlanView{}, err
	}
	if err := validateItems(items); err != nil {
		return PlanView{}, err
	}
	sc, err := s.loadAssignment(ctx, s.store, assignmentID)
	if err != nil {
		return PlanView{}, err
	}
	if err := checkPlanAuthoring(u, sc); err != nil {
		return PlanView{}, err
	}

	var view PlanView
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := s.lockAssignment(ctx, tx, sc.Cycle.ID, assignmentID, 0)
		if err != nil {
			return err
		}
		if err := checkPlanAuthoring(u, locked); err != nil {
			return err
		}
		version, err := tx.MaxPlanVersion(ctx, assignmentID)
		if err != nil {
			return err
		}
		plan, err := tx.CreatePlan(ctx, Plan{
			AssignmentID:  assignmentID,
			Version:       version + 1,
			Status:        PlanDraft,
			ConfirmStatus: ConfirmDraft,
		})
		if err != nil {
			return err
		}
		view.Plan = plan

		if len(items) == 0 && locked.Assignment.CurrentPlanID != nil {
			view.Items, err = copyItems(ctx, tx, *locked.Assignment.CurrentPlanID, plan.ID)
			return err
		}
		view.Items, err = insertItems(ctx, tx, plan.ID, items)
		return err
	})
	if err != nil {
		return PlanView{}, err
	}
	return view, nil
}

func insertItems(ctx context.Context, tx TxStore, planID int64, items []NewItem) ([]KpiItem, error) {
	out := make([]KpiItem, 0, len(items))
	for i, in := range items {
		maxScore := in.MaxScore
		if maxScore == 0 {
			maxScore = 5
		}
		item := KpiItem{PlanID: planID, Title: strings.TrimSpace(in.Title), Weight: in.Weight, MaxScore: maxScore, SortOrder: i}
		if in.ParentIndex != nil {
			item.ParentID = int64Ptr(out[*in.ParentIndex].ID)
		}
		created, err := tx.InsertItem(ctx, item)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

// copyItems relies on parents having lower ids than their children.
func copyItems(ctx context.Context, tx TxStore, fromPlanID, toPlanID int64) ([]KpiItem, error) {
	src, err := tx.PlanItems(ctx, fromPlanID)
	if err != nil {
		return nil, err
	}
	byID := make([]KpiItem, len(src))
	copy(byID, src)
	sortItemsByID(byID)

	mapped := make(map[int64]int64, len(byID))
	out := make([]KpiItem, 0, len(byID))
	for _, item := range byID {
		oldID := item.ID
		item.ID = 0
		item.PlanID = toPlanID
		if item.ParentID != nil {
			item.ParentID = int64Ptr(mapped[*item.ParentID])
		}
		created, err := tx.InsertItem(ctx, item)
		if err != nil {
			return nil, err
		}
		mapped[oldID] = created.ID
		out = append(out, created)
	}
	sortItems(out)
	return out, nil
}

func (s *Service) GetPlan(ctx context.Context, u auth.UserContext, planID int64) (PlanView, error) {
	if err := requireUser(u); err != nil {
		return PlanView{}, err
	}
	p, err := s.store.Plan(ctx, planID)
	if err != nil {
		return PlanView{}, err
	}
	a, err := s.store.Assignment(ctx, p.AssignmentID)
	if err != nil {
		return PlanView{}, err
	}
	if !IsParticipant(u, a) {
		return PlanView{}, errNotParticipant
	}
	items, err := s.store.PlanItems(ctx, planID)
	if err != nil {
		return PlanView{}, err
	}
	return PlanView{Plan: p, Items: items}, nil
}

func (s *Service) ListPlanEvents(ctx context.Context, u auth.UserContext, planID int64) ([]ConfirmEvent, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	p, err := s.store.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	a, err := s.store.Assignment(ctx, p.AssignmentID)
	if err != nil {
		return nil, err
	}
	if !IsParticipant(u, a) {
		return nil, errNotParticipant
	}
	return s.store.PlanEvents(ctx, planID)
}

// Scores

func checkScoring(u auth.UserContext, sc assignmentScope) error {
	if err := RequireGate(sc.Gates, GateEvaluate); err != nil {
		return err
	}
	if sc.Cycle.IsClosed() {
		return errCycleClosed
	}
	if !IsEvaluator(u, sc.Assignment) {
		return apperr.Forbidden("only the evaluator can score")
	}
	return CheckScoring(sc.Assignment, sc.Plan)
}

// SaveScores records scores against the current plan and marks the
// evaluation as in progress on that plan.
func (s *Service) SaveScores(ctx context.Context, u auth.UserContext, assignmentID int64, inputs []ScoreInput) (Assignment, error) {
	if err := requireUser(u); err != nil {
		return Assignment{}, err
	}
	if len(inputs) == 0 {
		return Assignment{}, invalid("scores are required")
	}
	sc, err := s.loadAssignment(ctx, s.store, assignmentID)
	if err != nil {
		return Assignment{}, err
	}
	if sc.Assignment.CurrentPlanID != nil {
		p, err := s.store.Plan(ctx, *sc.Assignment.CurrentPlanID)
		if err != nil {
			return Assignment{}, err
		}
		sc.Plan = &p
	}
	if err := checkScoring(u, sc); err != nil {
		return Assignment{}, err
	}

	var out Assignment
	err = s.store.InTx(ctx, func(tx TxStore) error {
		locked, err := s.lockAssignment(ctx, tx, sc.Cycle.ID, assignmentID, *sc.Assignment.CurrentPlanID)
		if err != nil {
			return err
		}
		if locked.Assignment.CurrentPlanID == nil || *locked.Assignment.CurrentPlanID != locked.Plan.ID {
			return errPlanMismatch
		}
		if err := checkScoring(u, locked); err != nil {
			return err
		}
		items, err := tx.PlanItems(ctx, locked.Plan.ID)
		if err != nil {
			return err
		}
		maxByItem := make(map[int64]float64, len(items))
		for _, item := range items {
			maxByItem[item.ID] = item.MaxScore
		}
		now := s.clock()
		for _, in := range inputs {
			maxScore, ok := maxByItem[in.ItemID]
			if !ok {
				return errUnknownScoredItem
			}
			if in.Score < 0 || (maxScore > 0 && in.Score > maxScore) {
				return invalid("score must be between 0 and the item maxScore")
			}
			score := Score{ItemID: in.ItemID, PlanID: locked.Plan.ID, Score: in.Score, Note: strings.TrimSpace(in.Note)}
			if err := tx.UpsertScore(ctx, assignmentID, score, u.UserID, now); err != nil {
				return err
			}
		}
		out = AfterScoring(locked.Assignment, locked.Plan.ID, now)
		return tx.UpdateAssignment(ctx, out)
	})
	if err != nil {
		return Assignment{}, err
	}
	return out, nil
}
