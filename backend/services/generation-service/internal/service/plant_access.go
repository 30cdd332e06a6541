package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"gridpulse/backend/libs/auth"
	"gridpulse/backend/services/generation-service/internal/models"
)

// PlantLookup loads a plant by id.
type PlantLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Plant, error)
}

// PlantAccess decides whether a request session may read or write a plant.
type PlantAccess struct {
	plants PlantLookup
}

// NewPlantAccess returns access checker.
func NewPlantAccess(plants PlantLookup) *PlantAccess {
	return &PlantAccess{plants: plants}
}

// Authorize loads the plant and checks it belongs to the session's effective
// tenant. Privileged callers may access any plant.
func (a *PlantAccess) Authorize(ctx context.Context, session auth.Session, plantID uuid.UUID) (*models.Plant, error) {
	plant, err := a.plants.Get(ctx, plantID)
	if err != nil {
		return nil, err
	}
	if plant.TenantID.Valid && plant.TenantID.UUID == session.EffectiveTenantID {
		return plant, nil
	}
	if session.Privileged() {
		return plant, nil
	}
	return nil, fmt.Errorf("%w: plant %s belongs to another tenant", auth.ErrForbidden, plantID)
}
