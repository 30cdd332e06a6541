// Package reconcile compares committed hourly plans with measured generation.
//
// All aggregate arithmetic is done in float64 after leaving the decimal
// storage representation. Results are display grade, not settlement grade.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/energy"
	"gridpulse/backend/services/generation-service/internal/models"
)

// MaxRangeDays caps the width of a range request.
const MaxRangeDays = 31

const day = 24 * time.Hour

// PlanStore reads stored plans.
type PlanStore interface {
	ListRange(ctx context.Context, plantID uuid.UUID, startDay, endDay time.Time) ([]models.Plan, error)
}

// ActualStore aggregates measured energy per UTC hour.
type ActualStore interface {
	HourlyActual(ctx context.Context, plantID uuid.UUID, start, end time.Time) (map[time.Time]energy.HourlyEnergy, error)
}

// ValidationError rejects a request before any store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Engine is stateless; it holds only its stores.
type Engine struct {
	plans   PlanStore
	actuals ActualStore
}

// NewEngine returns engine.
func NewEngine(plans PlanStore, actuals ActualStore) *Engine {
	return &Engine{plans: plans, actuals: actuals}
}

// ReconcileDay builds the 24 hour grid of the UTC day containing d.
func (e *Engine) ReconcileDay(ctx context.Context, plantID uuid.UUID, d time.Time) (DayReport, error) {
	start := energy.DayStart(d)
	rows, err := e.grid(ctx, plantID, start, start.Add(day))
	if err != nil {
		return DayReport{}, err
	}
	return DayReport{
		PlantID: plantID,
		Day:     start.Format(energy.DayLayout),
		Rows:    rows,
		Summary: Summarize(rows),
	}, nil
}

// ReconcileRange builds the hour grid of [start, end) after normalizing the
// range. A range wider than MaxRangeDays is rejected.
func (e *Engine) ReconcileRange(ctx context.Context, plantID uuid.UUID, start, end time.Time) (RangeReport, error) {
	start, end, err := NormalizeRange(start, end)
	if err != nil {
		return RangeReport{}, err
	}
	rows, err := e.grid(ctx, plantID, start, end)
	if err != nil {
		return RangeReport{}, err
	}
	return RangeReport{
		PlantID: plantID,
		Start:   start.Format(energy.DayLayout),
		End:     end.Format(energy.DayLayout),
		Rows:    rows,
		Summary: Summarize(rows),
	}, nil
}

// NormalizeRange truncates both bounds to UTC days. An end on or before start
// yields exactly one day.
func NormalizeRange(start, end time.Time) (time.Time, time.Time, error) {
	start = energy.DayStart(start)
	end = energy.DayStart(end)
	if !end.After(start) {
		end = start.Add(day)
	}
	if days := int(end.Sub(start) / day); days > MaxRangeDays {
		return time.Time{}, time.Time{}, &ValidationError{
			Field:  "range",
			Reason: fmt.Sprintf("%d days requested, at most %d allowed", days, MaxRangeDays),
		}
	}
	return start, end, nil
}

func (e *Engine) grid(ctx context.Context, plantID uuid.UUID, start, end time.Time) ([]Row, error) {
	plans, err := e.plans.ListRange(ctx, plantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	actuals, err := e.actuals.HourlyActual(ctx, plantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load actuals: %w", err)
	}

	byDay := make(map[time.Time][]decimal.Decimal, len(plans))
	for _, plan := range plans {
		byDay[energy.DayStart(plan.Day)] = plan.HourlyMWh
	}

	rows := make([]Row, 0, int(end.Sub(start)/time.Hour))
	for hour := start; hour.Before(end); hour = hour.Add(time.Hour) {
		row := Row{HourStart: hour}
		if hourly, ok := byDay[energy.DayStart(hour)]; ok && hour.Hour() < len(hourly) {
			plan := hourly[hour.Hour()].InexactFloat64()
			row.PlanMWh = &plan
		}
		if bucket, ok := actuals[hour]; ok && bucket.SampleCount > 0 {
			actual := bucket.EnergyMWh
			row.ActualMWh = &actual
			row.SampleCount = bucket.SampleCount
		}
		row.derive()
		rows = append(rows, row)
	}
	return rows, nil
}

// Summarize computes totals over rows. Each total is present only when at
// least one hour contributed to it. MAPE is Σ|actual-plan| / Σplan over hours
// with a positive plan and a measured actual.
func Summarize(rows []Row) Summary {
	var (
		summary      Summary
		totalPlan    float64
		totalActual  float64
		hasPlan      bool
		hasActual    bool
		absDeviation float64
		positivePlan float64
	)
	for _, row := range rows {
		if row.PlanMWh != nil {
			totalPlan += *row.PlanMWh
			hasPlan = true
		}
		if row.ActualMWh != nil {
			totalActual += *row.ActualMWh
			hasActual = true
		}
		if row.PlanMWh != nil && row.ActualMWh != nil && *row.PlanMWh > 0 {
			absDeviation += math.Abs(*row.ActualMWh - *row.PlanMWh)
			positivePlan += *row.PlanMWh
		}
	}
	if hasPlan {
		summary.TotalPlanMWh = &totalPlan
	}
	if hasActual {
		summary.TotalActualMWh = &totalActual
	}
	if hasPlan && hasActual {
		deviation := totalActual - totalPlan
		summary.TotalDeviationMWh = &deviation
	}
	if positivePlan > 0 {
		mape := absDeviation / positivePlan
		summary.MAPE = &mape
	}
	return summary
}
