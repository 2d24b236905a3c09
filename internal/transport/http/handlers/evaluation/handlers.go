package evaluationhandler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"kpieval/internal/domain/auth"
	"kpieval/internal/domain/evaluation"
	"kpieval/internal/transport/http/api"
	"kpieval/internal/transport/http/middleware"
	"kpieval/internal/transport/http/shared"
)

type Handler struct {
	Service *evaluation.Service
}

func NewHandler(service *evaluation.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/cycles", func(r chi.Router) {
		r.With(middleware.RequireAdmin).Post("/", h.handleCreateCycle)
		r.Get("/{cycleID}", h.handleGetCycle)
		r.Get("/{cycleID}/gates", h.handleGates)
		r.With(middleware.RequireAdmin).Put("/{cycleID}/activities/{type}", h.handleUpsertActivity)
		r.With(middleware.RequireAdmin).Post("/{cycleID}/close", h.handleCloseCycle)
		r.With(middleware.RequireAdmin).Post("/{cycleID}/assignments", h.handleCreateAssignment)
	})
	r.Route("/assignments/{assignmentID}", func(r chi.Router) {
		r.Get("/", h.handleGetAssignment)
		r.With(middleware.RequireAdmin).Delete("/", h.handleDeleteAssignment)
		r.Post("/plans", h.handleCreatePlan)
		r.Put("/scores", h.handleSaveScores)
		r.Post("/submit", h.handleSubmit)
		r.Get("/result", h.handleResult)
		r.Get("/result.pdf", h.handleResultPDF)
	})
	r.Route("/plans/{planID}", func(r chi.Router) {
		r.Get("/", h.handleGetPlan)
		r.Get("/events", h.handleListEvents)
		r.Post("/request", h.handleRequest)
		r.Post("/confirm", h.handleConfirm)
		r.Post("/reject", h.handleReject)
		r.Post("/cancel", h.handleCancel)
	})
}

func currentUser(w http.ResponseWriter, r *http.Request) (auth.UserContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthenticated", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return user, ok
}

// Cycles

type cycleRequest struct {
	Name          string `json:"name"`
	Year          int    `json:"year"`
	Round         int    `json:"round"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	KpiDefineMode string `json:"kpiDefineMode"`
}

func (h *Handler) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload cycleRequest
	if !shared.DecodeJSON(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name, "is required")
	if payload.Year <= 0 {
		v.Add("year", "must be positive")
	}
	if payload.Round < 0 {
		v.Add("round", "must not be negative")
	}
	start, _ := v.Date("startDate", payload.StartDate)
	end, _ := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	v.Required("kpiDefineMode", payload.KpiDefineMode, "is required")
	v.Enum("kpiDefineMode", payload.KpiDefineMode, []string{evaluation.ModeEvaluatorDefines, evaluation.ModeEvaluateeDefines}, "is not a known mode")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	view, err := h.Service.CreateCycle(r.Context(), user, evaluation.NewCycle{
		Name:          payload.Name,
		Year:          payload.Year,
		Round:         payload.Round,
		StartDate:     start,
		EndDate:       end,
		KpiDefineMode: payload.KpiDefineMode,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	view, err := h.Service.GetCycle(r.Context(), user, chi.URLParam(r, "cycleID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGates(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	gates, err := h.Service.Gates(r.Context(), user, chi.URLParam(r, "cycleID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, gates, middleware.GetRequestID(r.Context()))
}

type activityRequest struct {
	Enabled bool    `json:"enabled"`
	StartAt *string `json:"startAt"`
	EndAt   *string `json:"endAt"`
}

func (h *Handler) handleUpsertActivity(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload activityRequest
	if !shared.DecodeJSON(w, r, &payload, false) {
		return
	}
	gate := strings.ToUpper(chi.URLParam(r, "type"))
	v := shared.NewValidator()
	v.Enum("type", gate, evaluation.GateTypes, "must be DEFINE, EVALUATE or SUMMARY")
	startAt := v.OptionalTime("startAt", payload.StartAt)
	endAt := v.OptionalEnd("endAt", payload.EndAt)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	act, err := h.Service.UpsertActivity(r.Context(), user, chi.URLParam(r, "cycleID"), evaluation.ActivityInput{
		Type:    gate,
		Enabled: payload.Enabled,
		StartAt: startAt,
		EndAt:   endAt,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, act, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCloseCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	view, err := h.Service.CloseCycle(r.Context(), user, chi.URLParam(r, "cycleID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

// Assignments

type assignmentRequest struct {
	EvaluatorID   int64   `json:"evaluatorId"`
	EvaluateeID   int64   `json:"evaluateeId"`
	WeightPercent float64 `json:"weightPercent"`
}

func (h *Handler) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var payload assignmentRequest
	if !shared.DecodeJSON(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	v.Positive("evaluatorId", payload.EvaluatorID)
	v.Positive("evaluateeId", payload.EvaluateeID)
	if payload.WeightPercent < 0 || payload.WeightPercent > 100 {
		v.Add("weightPercent", "must be between 0 and 100")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	a, err := h.Service.CreateAssignment(r.Context(), user, chi.URLParam(r, "cycleID"), evaluation.NewAssignment{
		EvaluatorID:   payload.EvaluatorID,
		EvaluateeID:   payload.EvaluateeID,
		WeightPercent: payload.WeightPercent,
	})
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	a, err := h.Service.GetAssignment(r.Context(), user, assignmentID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	if err := h.Service.DeleteAssignment(r.Context(), user, assignmentID); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

// Plans

type itemRequest struct {
	ParentIndex *int    `json:"parentIndex"`
	Title       string  `json:"title"`
	Weight      float64 `json:"weight"`
	MaxScore    float64 `json:"maxScore"`
}

type planRequest struct {
	Items []itemRequest `json:"items"`
}

func (h *Handler) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var payload planRequest
	if !shared.DecodeJSON(w, r, &payload, true) {
		return
	}
	items := make([]evaluation.NewItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		items = append(items, evaluation.NewItem{
			ParentIndex: item.ParentIndex,
			Title:       item.Title,
			Weight:      item.Weight,
			MaxScore:    item.MaxScore,
		})
	}

	view, err := h.Service.CreatePlan(r.Context(), user, assignmentID, items)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	planID, ok := shared.PathID(w, r, "planID")
	if !ok {
		return
	}
	view, err := h.Service.GetPlan(r.Context(), user, planID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, view, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	planID, ok := shared.PathID(w, r, "planID")
	if !ok {
		return
	}
	events, err := h.Service.ListPlanEvents(r.Context(), user, planID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if events == nil {
		events = []evaluation.ConfirmEvent{}
	}
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

// Confirmation workflow

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.RequestConfirm)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.ConfirmPlan)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.CancelRequest)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	var payload rejectRequest
	if !shared.DecodeJSON(w, r, &payload, true) {
		return
	}
	h.transition(w, r, func(ctx context.Context, u auth.UserContext, planID int64) (evaluation.TransitionResult, error) {
		return h.Service.RejectPlan(ctx, u, planID, payload.Reason)
	})
}

type transitionFunc func(ctx context.Context, u auth.UserContext, planID int64) (evaluation.TransitionResult, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, run transitionFunc) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	planID, ok := shared.PathID(w, r, "planID")
	if !ok {
		return
	}
	res, err := run(r.Context(), user, planID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

// Scoring and results

type scoreRequest struct {
	Scores []struct {
		ItemID int64   `json:"itemId"`
		Score  float64 `json:"score"`
		Note   string  `json:"note"`
	} `json:"scores"`
}

func (h *Handler) handleSaveScores(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	var payload scoreRequest
	if !shared.DecodeJSON(w, r, &payload, false) {
		return
	}
	v := shared.NewValidator()
	if len(payload.Scores) == 0 {
		v.Add("scores", "must not be empty")
	}
	inputs := make([]evaluation.ScoreInput, 0, len(payload.Scores))
	for i, s := range payload.Scores {
		if s.ItemID <= 0 {
			v.Add(fmt.Sprintf("scores[%d].itemId", i), "must be a positive id")
		}
		inputs = append(inputs, evaluation.ScoreInput{ItemID: s.ItemID, Score: s.Score, Note: s.Note})
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	a, err := h.Service.SaveScores(r.Context(), user, assignmentID, inputs)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	a, err := h.Service.SubmitEvaluation(r.Context(), user, assignmentID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	res, err := h.Service.Result(r.Context(), user, assignmentID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResultPDF(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	assignmentID, ok := shared.PathID(w, r, "assignmentID")
	if !ok {
		return
	}
	res, err := h.Service.Result(r.Context(), user, assignmentID)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	var buf bytes.Buffer
	if err := evaluation.WriteResultPDF(&buf, res); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"kpi-result-%d.pdf\"", assignmentID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
