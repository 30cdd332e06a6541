package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerationEvent is published to the hub after a reading is stored.
// It is never persisted.
type GenerationEvent struct {
	TenantID  uuid.UUID       `json:"tenant_id"`
	PlantID   uuid.UUID       `json:"plant_id"`
	PlantName string          `json:"plant_name"`
	PowerMW   decimal.Decimal `json:"power_mw"`
	Timestamp time.Time       `json:"timestamp"`
}
