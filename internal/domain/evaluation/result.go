package evaluation

import (
	"cmp"
	"context"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"kpieval/internal/domain/auth"
)

type ResultItem struct {
	KpiItem
	Leaf  bool     `json:"leaf"`
	Score *float64 `json:"score"`
	Note  string   `json:"note,omitempty"`
}

// Result is the evaluation of one assignment. Scores and the total are
// withheld (Visible=false) from the evaluatee until SUMMARY opens.
type Result struct {
	Cycle      Cycle        `json:"cycle"`
	Assignment Assignment   `json:"assignment"`
	PlanID     *int64       `json:"planId"`
	Visible    bool         `json:"visible"`
	Items      []ResultItem `json:"items"`
	TotalScore *float64     `json:"totalScore"`
}

func (s *Service) Result(ctx context.Context, u auth.UserContext, assignmentID int64) (Result, error) {
	if err := requireUser(u); err != nil {
		return Result{}, err
	}
	sc, err := s.loadAssignment(ctx, s.store, assignmentID)
	if err != nil {
		return Result{}, err
	}
	a := sc.Assignment
	if !IsParticipant(u, a) {
		return Result{}, errNotParticipant
	}

	res := Result{
		Cycle:      sc.Cycle,
		Assignment: a,
		Visible:    IsEvaluator(u, a) || sc.Gates.Summary,
	}
	planID := a.EvaluatedPlanID
	if planID == nil {
		planID = a.CurrentPlanID
	}
	if planID == nil {
		return res, nil
	}
	res.PlanID = planID

	var items []KpiItem
	var scores []Score
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.store.PlanItems(gctx, *planID)
		return err
	})
	if res.Visible {
		g.Go(func() error {
			var err error
			scores, err = s.store.Scores(gctx, assignmentID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res.Items, res.TotalScore = scoreItems(items, scores, *planID)
	return res, nil
}

// scoreItems attaches scores recorded against planID and computes the
// weighted total over scored leaf items, as a percentage.
func scoreItems(items []KpiItem, scores []Score, planID int64) ([]ResultItem, *float64) {
	hasChildren := make(map[int64]bool, len(items))
	for _, item := range items {
		if item.ParentID != nil {
			hasChildren[*item.ParentID] = true
		}
	}
	byItem := make(map[int64]Score, len(scores))
	for _, sc := range scores {
		if sc.PlanID == planID {
			byItem[sc.ItemID] = sc
		}
	}

	out := make([]ResultItem, 0, len(items))
	var weighted, weights float64
	for _, item := range items {
		row := ResultItem{KpiItem: item, Leaf: !hasChildren[item.ID]}
		if sc, ok := byItem[item.ID]; ok {
			score := sc.Score
			row.Score = &score
			row.Note = sc.Note
			if row.Leaf && item.MaxScore > 0 && item.Weight > 0 {
				weighted += score / item.MaxScore * item.Weight
				weights += item.Weight
			}
		}
		out = append(out, row)
	}
	if weights == 0 {
		return out, nil
	}
	total := math.Round(weighted/weights*10000) / 100
	return out, &total
}

func sortItems(items []KpiItem) {
	slices.SortFunc(items, func(a, b KpiItem) int {
		if c := cmp.Compare(a.SortOrder, b.SortOrder); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortItemsByID(items []KpiItem) {
	slices.SortFunc(items, func(a, b KpiItem) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
