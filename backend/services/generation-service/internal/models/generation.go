package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HoursPerDay is the fixed length of a daily plan.
const HoursPerDay = 24

// Plant is the subset of the plant registry this service reads.
type Plant struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	TenantID            uuid.NullUUID   `db:"tenant_id" json:"tenant_id"`
	Name                string          `db:"name" json:"name"`
	InstalledCapacityMW decimal.Decimal `db:"installed_capacity_mw" json:"installed_capacity_mw"`
}

// Measurement is a single power reading. Immutable once stored.
type Measurement struct {
	ID         int64           `db:"id" json:"id"`
	PlantID    uuid.UUID       `db:"plant_id" json:"plant_id"`
	PowerKW    decimal.Decimal `db:"power_kw" json:"power_kw"`
	RecordedAt time.Time       `db:"recorded_at" json:"timestamp"`
}

// Plan holds the committed hourly energy for one plant on one UTC day.
type Plan struct {
	PlantID   uuid.UUID         `db:"plant_id" json:"plant_id"`
	Day       time.Time         `db:"plan_day" json:"day"`
	HourlyMWh []decimal.Decimal `db:"hourly_mwh" json:"hourly_mwh"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// PlantReading is a plant together with its latest reading, if any.
type PlantReading struct {
	PlantID             uuid.UUID        `json:"plant_id"`
	PlantName           string           `json:"plant_name"`
	InstalledCapacityMW decimal.Decimal  `json:"installed_capacity_mw"`
	LatestPower         *decimal.Decimal `json:"latest_power_mw"`
	LatestAt            *time.Time       `json:"latest_time"`
}

// PortfolioSnapshot aggregates the latest readings of a tenant's plants.
type PortfolioSnapshot struct {
	TenantID   uuid.UUID       `json:"tenant_id"`
	Plants     []PlantReading  `json:"plants"`
	TotalMW    decimal.Decimal `json:"portfolio_total_mw"`
	CapacityMW decimal.Decimal `json:"portfolio_capacity_mw"`
	Ratio      *float64        `json:"portfolio_ratio"`
}
