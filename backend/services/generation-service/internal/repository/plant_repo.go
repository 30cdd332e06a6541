package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/models"
)

// ErrPlantNotFound is returned when a plant id is unknown.
var ErrPlantNotFound = errors.New("plant not found")

// PlantRepository reads the plant registry.
type PlantRepository struct {
	db *sql.DB
}

// NewPlantRepository returns repository.
func NewPlantRepository(db *sql.DB) *PlantRepository {
	return &PlantRepository{db: db}
}

// Get loads one plant.
func (r *PlantRepository) Get(ctx context.Context, id uuid.UUID) (*models.Plant, error) {
	const query = `
		SELECT id, tenant_id, name, installed_capacity_mw
		FROM plants
		WHERE id = $1
	`
	var plant models.Plant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&plant.ID,
		&plant.TenantID,
		&plant.Name,
		&plant.InstalledCapacityMW,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plant, nil
}

// ListAll returns every plant, assigned or not.
func (r *PlantRepository) ListAll(ctx context.Context) ([]models.Plant, error) {
	const query = `
		SELECT id, tenant_id, name, installed_capacity_mw
		FROM plants
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlants(rows)
}

// ListByTenant returns plants owned by tenantID.
func (r *PlantRepository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Plant, error) {
	const query = `
		SELECT id, tenant_id, name, installed_capacity_mw
		FROM plants
		WHERE tenant_id = $1
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPlants(rows)
}

// LatestPerPlant returns the tenant's plants each with its newest reading.
// Plants without readings are included with empty latest fields.
func (r *PlantRepository) LatestPerPlant(ctx context.Context, tenantID uuid.UUID) ([]models.PlantReading, error) {
	const query = `
		SELECT p.id, p.name, p.installed_capacity_mw, m.power_kw, m.recorded_at
		FROM plants p
		LEFT JOIN LATERAL (
			SELECT power_kw, recorded_at
			FROM measurements
			WHERE plant_id = p.id
			ORDER BY recorded_at DESC
			LIMIT 1
		) m ON TRUE
		WHERE p.tenant_id = $1
		ORDER BY p.name
	`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PlantReading
	for rows.Next() {
		var (
			reading    models.PlantReading
			power      decimal.NullDecimal
			recordedAt sql.NullTime
		)
		if err := rows.Scan(&reading.PlantID, &reading.PlantName, &reading.InstalledCapacityMW, &power, &recordedAt); err != nil {
			return nil, err
		}
		if power.Valid {
			value := power.Decimal
			reading.LatestPower = &value
		}
		if recordedAt.Valid {
			at := recordedAt.Time.UTC()
			reading.LatestAt = &at
		}
		result = append(result, reading)
	}
	return result, rows.Err()
}

func scanPlants(rows *sql.Rows) ([]models.Plant, error) {
	var result []models.Plant
	for rows.Next() {
		var plant models.Plant
		if err := rows.Scan(&plant.ID, &plant.TenantID, &plant.Name, &plant.InstalledCapacityMW); err != nil {
			return nil, err
		}
		result = append(result, plant)
	}
	return result, rows.Err()
}
