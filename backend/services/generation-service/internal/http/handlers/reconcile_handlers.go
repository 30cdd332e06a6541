package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gridpulse/backend/libs/auth"
	"gridpulse/backend/services/generation-service/internal/energy"
	"gridpulse/backend/services/generation-service/internal/metrics"
	"gridpulse/backend/services/generation-service/internal/models"
	"gridpulse/backend/services/generation-service/internal/reconcile"
)

// PlantAuthorizer checks a session may access a plant.
type PlantAuthorizer interface {
	Authorize(ctx context.Context, session auth.Session, plantID uuid.UUID) (*models.Plant, error)
}

// Reconciler computes plan-vs-actual reports.
type Reconciler interface {
	ReconcileDay(ctx context.Context, plantID uuid.UUID, day time.Time) (reconcile.DayReport, error)
	ReconcileRange(ctx context.Context, plantID uuid.UUID, start, end time.Time) (reconcile.RangeReport, error)
}

// ReconcileHandlers serves reconciliation reports.
type ReconcileHandlers struct {
	access PlantAuthorizer
	engine Reconciler
	logger *zap.Logger
}

// NewReconcileHandlers returns handler.
func NewReconcileHandlers(access PlantAuthorizer, engine Reconciler, logger *zap.Logger) *ReconcileHandlers {
	return &ReconcileHandlers{access: access, engine: engine, logger: logger}
}

// Day handles GET /api/reconciliation/day?plant_id=&day=YYYY-MM-DD.
func (h *ReconcileHandlers) Day(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	plantID, err := parseUUID(query.Get("plant_id"), "plant_id")
	if err != nil {
		h.fail(w, "day", err)
		return
	}
	day, err := parseDayParam(query.Get("day"), "day")
	if err != nil {
		h.fail(w, "day", err)
		return
	}
	if _, err := h.access.Authorize(r.Context(), session, plantID); err != nil {
		h.fail(w, "day", err)
		return
	}

	report, err := h.engine.ReconcileDay(r.Context(), plantID, day)
	if err != nil {
		h.fail(w, "day", err)
		return
	}
	metrics.ReconcileRequests.WithLabelValues("day", "ok").Inc()
	writeJSON(w, http.StatusOK, report)
}

// Range handles GET /api/reconciliation/range?plant_id=&start=&end=.
// end defaults to start, which yields a single day.
func (h *ReconcileHandlers) Range(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	plantID, err := parseUUID(query.Get("plant_id"), "plant_id")
	if err != nil {
		h.fail(w, "range", err)
		return
	}
	start, err := parseDayParam(query.Get("start"), "start")
	if err != nil {
		h.fail(w, "range", err)
		return
	}
	end := start
	if raw := query.Get("end"); raw != "" {
		if end, err = parseDayParam(raw, "end"); err != nil {
			h.fail(w, "range", err)
			return
		}
	}
	if _, _, err := reconcile.NormalizeRange(start, end); err != nil {
		h.fail(w, "range", err)
		return
	}
	if _, err := h.access.Authorize(r.Context(), session, plantID); err != nil {
		h.fail(w, "range", err)
		return
	}

	report, err := h.engine.ReconcileRange(r.Context(), plantID, start, end)
	if err != nil {
		h.fail(w, "range", err)
		return
	}
	metrics.ReconcileRequests.WithLabelValues("range", "ok").Inc()
	writeJSON(w, http.StatusOK, report)
}

func (h *ReconcileHandlers) fail(w http.ResponseWriter, view string, err error) {
	var validation *reconcile.ValidationError
	result := "error"
	if errors.As(err, &validation) {
		result = "invalid"
	}
	metrics.ReconcileRequests.WithLabelValues(view, result).Inc()
	writeFailure(w, h.logger, "reconcile "+view, err)
}

func parseDayParam(value, field string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &reconcile.ValidationError{Field: field, Reason: "is required"}
	}
	day, err := energy.ParseDay(value)
	if err != nil {
		return time.Time{}, &reconcile.ValidationError{Field: field, Reason: err.Error()}
	}
	return day, nil
}
