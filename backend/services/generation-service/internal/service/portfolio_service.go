package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridpulse/backend/services/generation-service/internal/metrics"
	"gridpulse/backend/services/generation-service/internal/models"
	redisstore "gridpulse/backend/services/generation-service/internal/redis"
)

// PlantReader is the part of the plant registry the portfolio needs.
type PlantReader interface {
	ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Plant, error)
	LatestPerPlant(ctx context.Context, tenantID uuid.UUID) ([]models.PlantReading, error)
}

// LatestCache returns cached latest readings by plant.
type LatestCache interface {
	GetMany(ctx context.Context, plantIDs []uuid.UUID) (map[uuid.UUID]redisstore.LatestReading, error)
}

// PortfolioService builds tenant portfolio snapshots.
type PortfolioService struct {
	plants PlantReader
	cache  LatestCache
	logger *zap.Logger
}

// NewPortfolioService returns service instance. cache may be nil.
func NewPortfolioService(plants PlantReader, cache LatestCache, logger *zap.Logger) *PortfolioService {
	return &PortfolioService{
		plants: plants,
		cache:  cache,
		logger: logger,
	}
}

// Snapshot returns the latest reading of every plant of the tenant plus
// portfolio totals. Cached readings are used when every plant has one,
// otherwise the database is queried.
func (s *PortfolioService) Snapshot(ctx context.Context, tenantID uuid.UUID) (models.PortfolioSnapshot, error) {
	readings, err := s.latest(ctx, tenantID)
	if err != nil {
		return models.PortfolioSnapshot{}, err
	}
	return Aggregate(tenantID, readings), nil
}

func (s *PortfolioService) latest(ctx context.Context, tenantID uuid.UUID) ([]models.PlantReading, error) {
	if s.cache != nil {
		if readings, ok := s.fromCache(ctx, tenantID); ok {
			return readings, nil
		}
		metrics.LatestCacheMisses.Inc()
	}
	return s.plants.LatestPerPlant(ctx, tenantID)
}

func (s *PortfolioService) fromCache(ctx context.Context, tenantID uuid.UUID) ([]models.PlantReading, bool) {
	plants, err := s.plants.ListByTenant(ctx, tenantID)
	if err != nil {
		s.logger.Warn("list tenant plants failed", zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return nil, false
	}
	ids := make([]uuid.UUID, len(plants))
	for i, plant := range plants {
		ids[i] = plant.ID
	}
	cached, err := s.cache.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("latest reading cache unavailable", zap.Error(err))
		return nil, false
	}

	readings := make([]models.PlantReading, 0, len(plants))
	for _, plant := range plants {
		entry, ok := cached[plant.ID]
		if !ok {
			return nil, false
		}
		power := entry.PowerKW
		at := entry.RecordedAt.UTC()
		readings = append(readings, models.PlantReading{
			PlantID:             plant.ID,
			PlantName:           plant.Name,
			InstalledCapacityMW: plant.InstalledCapacityMW,
			LatestPower:         &power,
			LatestAt:            &at,
		})
	}
	return readings, true
}

// Aggregate sums latest power and installed capacity. The ratio is left
// empty when the portfolio has no capacity.
func Aggregate(tenantID uuid.UUID, readings []models.PlantReading) models.PortfolioSnapshot {
	snapshot := models.PortfolioSnapshot{
		TenantID:   tenantID,
		Plants:     readings,
		TotalMW:    decimal.Zero,
		CapacityMW: decimal.Zero,
	}
	if snapshot.Plants == nil {
		snapshot.Plants = []models.PlantReading{}
	}
	for _, reading := range readings {
		snapshot.CapacityMW = snapshot.CapacityMW.Add(reading.InstalledCapacityMW)
		if reading.LatestPower != nil {
			snapshot.TotalMW = snapshot.TotalMW.Add(*reading.LatestPower)
		}
	}
	if snapshot.CapacityMW.IsPositive() {
		ratio := snapshot.TotalMW.InexactFloat64() / snapshot.CapacityMW.InexactFloat64()
		snapshot.Ratio = &ratio
	}
	return snapshot
}

