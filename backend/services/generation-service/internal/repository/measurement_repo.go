package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/energy"
	"gridpulse/backend/services/generation-service/internal/models"
)

// MeasurementRepository is the append-only log of power readings.
type MeasurementRepository struct {
	db       *sql.DB
	interval time.Duration
}

// NewMeasurementRepository returns repository. interval is the sampling
// cadence each stored reading stands for when energy is aggregated.
func NewMeasurementRepository(db *sql.DB, interval time.Duration) *MeasurementRepository {
	return &MeasurementRepository{db: db, interval: interval}
}

// Append stores a reading stamped with the database clock.
func (r *MeasurementRepository) Append(ctx context.Context, plantID uuid.UUID, powerKW decimal.Decimal) (models.Measurement, error) {
	const query = `
		INSERT INTO measurements (plant_id, power_kw, recorded_at)
		VALUES ($1, $2, NOW())
		RETURNING id, recorded_at
	`
	measurement := models.Measurement{PlantID: plantID, PowerKW: powerKW}
	err := r.db.QueryRowContext(ctx, query, plantID, powerKW).Scan(&measurement.ID, &measurement.RecordedAt)
	if err != nil {
		return models.Measurement{}, err
	}
	measurement.RecordedAt = measurement.RecordedAt.UTC()
	return measurement, nil
}

// ListRange returns readings of a plant in [start, end) ordered by time.
func (r *MeasurementRepository) ListRange(ctx context.Context, plantID uuid.UUID, start, end time.Time) ([]models.Measurement, error) {
	const query = `
		SELECT id, plant_id, power_kw, recorded_at
		FROM measurements
		WHERE plant_id = $1 AND recorded_at >= $2 AND recorded_at < $3
		ORDER BY recorded_at
	`
	rows, err := r.db.QueryContext(ctx, query, plantID, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Measurement
	for rows.Next() {
		var m models.Measurement
		if err := rows.Scan(&m.ID, &m.PlantID, &m.PowerKW, &m.RecordedAt); err != nil {
			return nil, err
		}
		m.RecordedAt = m.RecordedAt.UTC()
		result = append(result, m)
	}
	return result, rows.Err()
}

// HourlyActual aggregates readings in [start, end) into energy per UTC hour.
// Hours without readings are absent from the result.
func (r *MeasurementRepository) HourlyActual(ctx context.Context, plantID uuid.UUID, start, end time.Time) (map[time.Time]energy.HourlyEnergy, error) {
	samples, err := r.ListRange(ctx, plantID, start, end)
	if err != nil {
		return nil, err
	}
	return energy.BucketHourly(samples, r.interval), nil
}
