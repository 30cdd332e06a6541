package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gridpulse/backend/services/generation-service/internal/metrics"
	"gridpulse/backend/services/generation-service/internal/models"
	redisstore "gridpulse/backend/services/generation-service/internal/redis"
)

// PlantSource lists every known plant.
type PlantSource interface {
	ListAll(ctx context.Context) ([]models.Plant, error)
}

// MeasurementAppender persists a reading.
type MeasurementAppender interface {
	Append(ctx context.Context, plantID uuid.UUID, powerKW decimal.Decimal) (models.Measurement, error)
}

// Publisher receives stored readings for live fan-out.
type Publisher interface {
	Publish(event models.GenerationEvent)
}

// LatestWriter caches the newest reading of a plant.
type LatestWriter interface {
	Save(ctx context.Context, reading redisstore.LatestReading) error
}

// Config tunes the sampling loop.
type Config struct {
	Interval time.Duration
	Workers  int
}

// Producer appends one reading per plant on every tick.
type Producer struct {
	plants  PlantSource
	store   MeasurementAppender
	hub     Publisher
	latest  LatestWriter
	sampler Sampler
	cfg     Config
	logger  *zap.Logger
}

// New builds producer. latest may be nil.
func New(plants PlantSource, store MeasurementAppender, hub Publisher, latest LatestWriter, sampler Sampler, cfg Config, logger *zap.Logger) *Producer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Producer{
		plants:  plants,
		store:   store,
		hub:     hub,
		latest:  latest,
		sampler: sampler,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run samples immediately and then on every interval until ctx is done.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer started", zap.Duration("interval", p.cfg.Interval), zap.Int("workers", p.cfg.Workers))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.RunCycle(ctx); err != nil {
			p.logger.Error("sampling cycle skipped", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("producer stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunCycle samples every plant once. A failure for one plant is logged and
// does not affect the others; only failing to list plants is returned.
func (p *Producer) RunCycle(ctx context.Context) error {
	started := time.Now()
	defer func() {
		metrics.ProducerCycleDuration.Observe(time.Since(started).Seconds())
	}()

	plants, err := p.plants.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list plants: %w", err)
	}
	if len(plants) == 0 {
		p.logger.Warn("no plants registered, nothing to sample")
		return nil
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, plant := range plants {
		g.Go(func() error {
			p.samplePlant(ctx, plant)
			return nil
		})
	}
	return g.Wait()
}

func (p *Producer) samplePlant(ctx context.Context, plant models.Plant) {
	logger := p.logger.With(zap.String("plant_id", plant.ID.String()), zap.String("plant_name", plant.Name))

	power, ok := p.sampler.Sample(plant)
	if !ok {
		metrics.ProducerSamples.WithLabelValues("invalid_capacity").Inc()
		logger.Error("cannot sample plant", zap.String("installed_capacity_mw", plant.InstalledCapacityMW.String()))
		return
	}

	measurement, err := p.store.Append(ctx, plant.ID, power)
	if err != nil {
		metrics.ProducerSamples.WithLabelValues("store_failed").Inc()
		logger.Error("failed to store reading", zap.Error(err))
		return
	}
	metrics.ProducerSamples.WithLabelValues("stored").Inc()
	logger.Debug("reading stored", zap.String("power", power.StringFixed(2)))

	if p.latest != nil {
		reading := redisstore.LatestReading{
			PlantID:    plant.ID,
			PowerKW:    measurement.PowerKW,
			RecordedAt: measurement.RecordedAt,
		}
		if err := p.latest.Save(ctx, reading); err != nil {
			logger.Warn("failed to cache latest reading", zap.Error(err))
		}
	}

	if !plant.TenantID.Valid {
		return
	}
	p.hub.Publish(models.GenerationEvent{
		TenantID:  plant.TenantID.UUID,
		PlantID:   plant.ID,
		PlantName: plant.Name,
		PowerMW:   measurement.PowerKW,
		Timestamp: measurement.RecordedAt,
	})
}
