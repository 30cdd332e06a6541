package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/energy"
	"gridpulse/backend/services/generation-service/internal/models"
)

var (
	// ErrPlanNotFound is returned when no plan exists for the plant and day.
	ErrPlanNotFound = errors.New("plan not found")
	// ErrInvalidPlan is returned for plans that do not carry 24 hourly values.
	ErrInvalidPlan = errors.New("invalid plan")
)

// PlanRepository stores daily hourly plans keyed by plant and day.
type PlanRepository struct {
	db *sql.DB
}

// NewPlanRepository returns repository.
func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Upsert writes the whole plan for its day, replacing any previous one.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.Plan) error {
	if len(plan.HourlyMWh) != models.HoursPerDay {
		return fmt.Errorf("%w: expected %d hourly values, got %d", ErrInvalidPlan, models.HoursPerDay, len(plan.HourlyMWh))
	}
	for i, value := range plan.HourlyMWh {
		if value.IsNegative() {
			return fmt.Errorf("%w: hour %d is negative", ErrInvalidPlan, i)
		}
	}
	payload, err := json.Marshal(plan.HourlyMWh)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO plans (plant_id, plan_day, hourly_mwh, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (plant_id, plan_day) DO UPDATE SET
			hourly_mwh = EXCLUDED.hourly_mwh,
			updated_at = NOW()
		RETURNING updated_at
	`
	plan.Day = energy.DayStart(plan.Day)
	return r.db.QueryRowContext(ctx, query, plan.PlantID, plan.Day, string(payload)).Scan(&plan.UpdatedAt)
}

// Get returns the plan of plantID for the UTC day containing day.
func (r *PlanRepository) Get(ctx context.Context, plantID uuid.UUID, day time.Time) (*models.Plan, error) {
	const query = `
		SELECT plant_id, plan_day, hourly_mwh, updated_at
		FROM plans
		WHERE plant_id = $1 AND plan_day = $2
	`
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, plantID, energy.DayStart(day)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// ListRange returns plans for days in [startDay, endDay) ordered by day.
func (r *PlanRepository) ListRange(ctx context.Context, plantID uuid.UUID, startDay, endDay time.Time) ([]models.Plan, error) {
	const query = `
		SELECT plant_id, plan_day, hourly_mwh, updated_at
		FROM plans
		WHERE plant_id = $1 AND plan_day >= $2 AND plan_day < $3
		ORDER BY plan_day
	`
	rows, err := r.db.QueryContext(ctx, query, plantID, energy.DayStart(startDay), energy.DayStart(endDay))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Plan
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *plan)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (*models.Plan, error) {
	var (
		plan    models.Plan
		payload []byte
	)
	if err := row.Scan(&plan.PlantID, &plan.Day, &payload, &plan.UpdatedAt); err != nil {
		return nil, err
	}
	var hourly []decimal.Decimal
	if err := json.Unmarshal(payload, &hourly); err != nil {
		return nil, fmt.Errorf("decode hourly plan: %w", err)
	}
	if len(hourly) != models.HoursPerDay {
		return nil, fmt.Errorf("%w: stored plan has %d hourly values", ErrInvalidPlan, len(hourly))
	}
	plan.Day = energy.DayStart(plan.Day)
	plan.HourlyMWh = hourly
	return &plan, nil
}
