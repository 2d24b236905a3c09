package evaluation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"kpieval/internal/domain/apperr"
	"kpieval/internal/platform/db"
)

const cycleColumns = `id, public_id::text, name, year, round, start_date, end_date, kpi_define_mode, closed_at, created_at`

const assignmentColumns = `id, cycle_id, evaluator_id, evaluatee_id, weight_percent, current_plan_id, evaluated_plan_id,
  eval_status, needs_re_eval, submitted_at, submitted_by_id, created_at, updated_at`

const planColumns = `id, assignment_id, version, status, confirm_status, COALESCE(confirm_target, ''),
  confirm_requested_at, confirm_requested_by_id, confirmed_at, confirmed_by_id,
  rejected_at, rejected_by_id, COALESCE(reject_reason, ''), created_at, updated_at`

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what)
	}
	return err
}

func scanCycle(row pgx.Row) (Cycle, error) {
	var c Cycle
	err := row.Scan(&c.ID, &c.PublicID, &c.Name, &c.Year, &c.Round, &c.StartDate, &c.EndDate, &c.KpiDefineMode, &c.ClosedAt, &c.CreatedAt)
	return c, notFound(err, "cycle")
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(&a.ID, &a.CycleID, &a.EvaluatorID, &a.EvaluateeID, &a.WeightPercent, &a.CurrentPlanID, &a.EvaluatedPlanID,
		&a.EvalStatus, &a.NeedsReEval, &a.SubmittedAt, &a.SubmittedByID, &a.CreatedAt, &a.UpdatedAt)
	return a, notFound(err, "assignment")
}

func scanPlan(row pgx.Row) (Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.AssignmentID, &p.Version, &p.Status, &p.ConfirmStatus, &p.ConfirmTarget,
		&p.ConfirmRequestedAt, &p.ConfirmRequestedByID, &p.ConfirmedAt, &p.ConfirmedByID,
		&p.RejectedAt, &p.RejectedByID, &p.RejectReason, &p.CreatedAt, &p.UpdatedAt)
	return p, notFound(err, "plan")
}

func (s *Store) CycleByPublicID(ctx context.Context, publicID string) (Cycle, error) {
	// Non-UUID input cannot match; avoid a cast error from Postgres.
	if !isUUID(publicID) {
		return Cycle{}, apperr.NotFound("cycle")
	}
	return scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM evaluation_cycles WHERE public_id = $1::uuid", publicID))
}

func (s *Store) Cycle(ctx context.Context, id int64) (Cycle, error) {
	return scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM evaluation_cycles WHERE id = $1", id))
}

func (s *Store) LockCycle(ctx context.Context, id int64, exclusive bool) (Cycle, error) {
	lock := " FOR SHARE"
	if exclusive {
		lock = " FOR UPDATE"
	}
	return scanCycle(s.DB.QueryRow(ctx, "SELECT "+cycleColumns+" FROM evaluation_cycles WHERE id = $1"+lock, id))
}

func (s *Store) CycleActivities(ctx context.Context, cycleID int64) ([]CycleActivity, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, cycle_id, type, enabled, start_at, end_at
    FROM cycle_activities
    WHERE cycle_id = $1
    ORDER BY id
  `, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleActivity
	for rows.Next() {
		var a CycleActivity
		if err := rows.Scan(&a.ID, &a.CycleID, &a.Type, &a.Enabled, &a.StartAt, &a.EndAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CreateCycle(ctx context.Context, c Cycle) (Cycle, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO evaluation_cycles (public_id, name, year, round, start_date, end_date, kpi_define_mode)
    VALUES ($1::uuid,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at
  `, c.PublicID, c.Name, c.Year, c.Round, c.StartDate, c.EndDate, c.KpiDefineMode).Scan(&c.ID, &c.CreatedAt)
	return c, err
}

func (s *Store) InsertActivity(ctx context.Context, a CycleActivity) (CycleActivity, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO cycle_activities (cycle_id, type, enabled, start_at, end_at)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id
  `, a.CycleID, a.Type, a.Enabled, a.StartAt, a.EndAt).Scan(&a.ID)
	return a, err
}

func (s *Store) UpdateActivity(ctx context.Context, a CycleActivity) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE cycle_activities SET enabled = $2, start_at = $3, end_at = $4, updated_at = now()
    WHERE id = $1
  `, a.ID, a.Enabled, a.StartAt, a.EndAt)
	return err
}

// CloseCycle shuts DEFINE and EVALUATE, opens SUMMARY without bounds and
// stamps closed_at.
func (s *Store) CloseCycle(ctx context.Context, cycleID int64, at time.Time) error {
	if _, err := s.DB.Exec(ctx, `
    UPDATE cycle_activities SET enabled = false, updated_at = now()
    WHERE cycle_id = $1 AND type IN ($2, $3)
  `, cycleID, GateDefine, GateEvaluate); err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, `
    UPDATE cycle_activities SET enabled = true, start_at = NULL, end_at = NULL, updated_at = now()
    WHERE cycle_id = $1 AND type = $2
  `, cycleID, GateSummary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.InsertActivity(ctx, CycleActivity{CycleID: cycleID, Type: GateSummary, Enabled: true}); err != nil {
			return err
		}
	}
	_, err = s.DB.Exec(ctx, "UPDATE evaluation_cycles SET closed_at = $2 WHERE id = $1", cycleID, at)
	return err
}

func (s *Store) Assignment(ctx context.Context, id int64) (Assignment, error) {
	return scanAssignment(s.DB.QueryRow(ctx, "SELECT "+assignmentColumns+" FROM evaluation_assignments WHERE id = $1", id))
}

func (s *Store) LockAssignment(ctx context.Context, id int64) (Assignment, error) {
	return scanAssignment(s.DB.QueryRow(ctx, "SELECT "+assignmentColumns+" FROM evaluation_assignments WHERE id = $1 FOR UPDATE", id))
}

func (s *Store) CreateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO evaluation_assignments (cycle_id, evaluator_id, evaluatee_id, weight_percent, eval_status)
    VALUES ($1,$2,$3,$4,$5)
    RETURNING id, created_at, updated_at
  `, a.CycleID, a.EvaluatorID, a.EvaluateeID, a.WeightPercent, a.EvalStatus).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Assignment{}, errDuplicateAssign
	}
	if db.IsForeignKeyViolation(err) {
		return Assignment{}, invalid("unknown employee")
	}
	return a, err
}

func (s *Store) UpdateAssignment(ctx context.Context, a Assignment) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE evaluation_assignments
    SET current_plan_id = $2, evaluated_plan_id = $3, eval_status = $4, needs_re_eval = $5,
        submitted_at = $6, submitted_by_id = $7, updated_at = $8
    WHERE id = $1
  `, a.ID, a.CurrentPlanID, a.EvaluatedPlanID, a.EvalStatus, a.NeedsReEval, a.SubmittedAt, a.SubmittedByID, a.UpdatedAt)
	return err
}

func (s *Store) CountPlans(ctx context.Context, assignmentID int64) (int, error) {
	var total int
	err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM kpi_plans WHERE assignment_id = $1", assignmentID).Scan(&total)
	return total, err
}

func (s *Store) DeleteAssignment(ctx context.Context, id int64) error {
	if _, err := s.DB.Exec(ctx, "DELETE FROM kpi_scores WHERE assignment_id = $1", id); err != nil {
		return err
	}
	tag, err := s.DB.Exec(ctx, "DELETE FROM evaluation_assignments WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("assignment")
	}
	return nil
}

func (s *Store) Plan(ctx context.Context, id int64) (Plan, error) {
	return scanPlan(s.DB.QueryRow(ctx, "SELECT "+planColumns+" FROM kpi_plans WHERE id = $1", id))
}

func (s *Store) LockPlan(ctx context.Context, id int64) (Plan, error) {
	return scanPlan(s.DB.QueryRow(ctx, "SELECT "+planColumns+" FROM kpi_plans WHERE id = $1 FOR UPDATE", id))
}

func (s *Store) MaxPlanVersion(ctx context.Context, assignmentID int64) (int, error) {
	var version int
	err := s.DB.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM kpi_plans WHERE assignment_id = $1", assignmentID).Scan(&version)
	return version, err
}

func (s *Store) CreatePlan(ctx context.Context, p Plan) (Plan, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_plans (assignment_id, version, status, confirm_status)
    VALUES ($1,$2,$3,$4)
    RETURNING id, created_at, updated_at
  `, p.AssignmentID, p.Version, p.Status, p.ConfirmStatus).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return Plan{}, apperr.Conflict("duplicate_version", "plan version already exists")
	}
	return p, err
}

func (s *Store) UpdatePlan(ctx context.Context, p Plan) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE kpi_plans
    SET status = $2, confirm_status = $3, confirm_target = $4,
        confirm_requested_at = $5, confirm_requested_by_id = $6,
        confirmed_at = $7, confirmed_by_id = $8,
        rejected_at = $9, rejected_by_id = $10, reject_reason = $11,
        updated_at = $12
    WHERE id = $1
  `, p.ID, p.Status, p.ConfirmStatus, nullIfEmpty(p.ConfirmTarget),
		p.ConfirmRequestedAt, p.ConfirmRequestedByID,
		p.ConfirmedAt, p.ConfirmedByID,
		p.RejectedAt, p.RejectedByID, nullIfEmpty(p.RejectReason),
		p.UpdatedAt)
	return err
}

func (s *Store) ArchiveActivePlans(ctx context.Context, assignmentID, exceptPlanID int64, at time.Time) (int64, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE kpi_plans SET status = $3, updated_at = $4
    WHERE assignment_id = $1 AND id <> $2 AND status = $5
  `, assignmentID, exceptPlanID, PlanArchived, at, PlanActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) PlanItems(ctx context.Context, planID int64) ([]KpiItem, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, plan_id, parent_id, title, weight, max_score, sort_order
    FROM kpi_items
    WHERE plan_id = $1
    ORDER BY sort_order, id
  `, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KpiItem
	for rows.Next() {
		var item KpiItem
		if err := rows.Scan(&item.ID, &item.PlanID, &item.ParentID, &item.Title, &item.Weight, &item.MaxScore, &item.SortOrder); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) InsertItem(ctx context.Context, item KpiItem) (KpiItem, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_items (plan_id, parent_id, title, weight, max_score, sort_order)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id
  `, item.PlanID, item.ParentID, item.Title, item.Weight, item.MaxScore, item.SortOrder).Scan(&item.ID)
	return item, err
}

func (s *Store) Scores(ctx context.Context, assignmentID int64) ([]Score, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT item_id, plan_id, score, COALESCE(note, '')
    FROM kpi_scores
    WHERE assignment_id = $1
    ORDER BY item_id
  `, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Score
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.ItemID, &sc.PlanID, &sc.Score, &sc.Note); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) UpsertScore(ctx context.Context, assignmentID int64, sc Score, scoredBy int64, at time.Time) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO kpi_scores (assignment_id, item_id, plan_id, score, note, scored_by_id, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    ON CONFLICT (assignment_id, item_id) DO UPDATE
      SET plan_id = EXCLUDED.plan_id,
          score = EXCLUDED.score,
          note = EXCLUDED.note,
          scored_by_id = EXCLUDED.scored_by_id,
          updated_at = EXCLUDED.updated_at
  `, assignmentID, sc.ItemID, sc.PlanID, sc.Score, nullIfEmpty(sc.Note), scoredBy, at)
	return err
}

// InsertEvent keeps the database clock for created_at so history order
// follows commit order within a plan.
func (s *Store) InsertEvent(ctx context.Context, e ConfirmEvent) (ConfirmEvent, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_plan_confirm_events (plan_id, type, from_status, to_status, target, actor_id, note)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING id, created_at
  `, e.PlanID, e.Type, e.FromStatus, e.ToStatus, nullIfEmpty(e.Target), e.ActorID, nullIfEmpty(e.Note)).Scan(&e.ID, &e.CreatedAt)
	return e, err
}

func (s *Store) PlanEvents(ctx context.Context, planID int64) ([]ConfirmEvent, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, plan_id, type, from_status, to_status, COALESCE(target, ''), actor_id, COALESCE(note, ''), created_at
    FROM kpi_plan_confirm_events
    WHERE plan_id = $1
    ORDER BY created_at, id
  `, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConfirmEvent
	for rows.Next() {
		var e ConfirmEvent
		if err := rows.Scan(&e.ID, &e.PlanID, &e.Type, &e.FromStatus, &e.ToStatus, &e.Target, &e.ActorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
