package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridpulse/backend/services/generation-service/internal/energy"
	"gridpulse/backend/services/generation-service/internal/models"
)

// PlanStore reads and writes daily plans.
type PlanStore interface {
	Upsert(ctx context.Context, plan *models.Plan) error
	Get(ctx context.Context, plantID uuid.UUID, day time.Time) (*models.Plan, error)
}

// PlanHandlers serves plan upsert and lookup.
type PlanHandlers struct {
	access PlantAuthorizer
	plans  PlanStore
	logger *zap.Logger
}

// NewPlanHandlers returns handler.
func NewPlanHandlers(access PlantAuthorizer, plans PlanStore, logger *zap.Logger) *PlanHandlers {
	return &PlanHandlers{access: access, plans: plans, logger: logger}
}

type planInput struct {
	PlantID   string            `json:"plant_id"`
	Day       string            `json:"day"`
	HourlyMWh []decimal.Decimal `json:"hourly_mwh"`
}

// Get handles GET /api/plans?plant_id=&day=.
func (h *PlanHandlers) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	plantID, err := parseUUID(query.Get("plant_id"), "plant_id")
	if err != nil {
		writeFailure(w, h.logger, "get plan", err)
		return
	}
	day, err := parseDayParam(query.Get("day"), "day")
	if err != nil {
		writeFailure(w, h.logger, "get plan", err)
		return
	}
	if _, err := h.access.Authorize(r.Context(), session, plantID); err != nil {
		writeFailure(w, h.logger, "get plan", err)
		return
	}

	plan, err := h.plans.Get(r.Context(), plantID, day)
	if err != nil {
		writeFailure(w, h.logger, "get plan", err)
		return
	}
	writeJSON(w, http.StatusOK, planResponse(plan))
}

// Put handles PUT /api/plans. The stored plan for the day is replaced as a whole.
func (h *PlanHandlers) Put(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	var input planInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	plantID, err := parseUUID(input.PlantID, "plant_id")
	if err != nil {
		writeFailure(w, h.logger, "upsert plan", err)
		return
	}
	day, err := parseDayParam(input.Day, "day")
	if err != nil {
		writeFailure(w, h.logger, "upsert plan", err)
		return
	}
	if _, err := h.access.Authorize(r.Context(), session, plantID); err != nil {
		writeFailure(w, h.logger, "upsert plan", err)
		return
	}

	plan := &models.Plan{PlantID: plantID, Day: day, HourlyMWh: input.HourlyMWh}
	if err := h.plans.Upsert(r.Context(), plan); err != nil {
		writeFailure(w, h.logger, "upsert plan", err)
		return
	}
	h.logger.Info("plan stored",
		zap.String("plant_id", plantID.String()),
		zap.String("day", input.Day),
		zap.String("caller_id", session.CallerID.String()),
	)
	writeJSON(w, http.StatusOK, planResponse(plan))
}

func planResponse(plan *models.Plan) map[string]any {
	return map[string]any{
		"plant_id":   plan.PlantID,
		"day":        plan.Day.Format(energy.DayLayout),
		"hourly_mwh": plan.HourlyMWh,
		"updated_at": plan.UpdatedAt,
	}
}
