package producer

import (
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"gridpulse/backend/services/generation-service/internal/models"
)

// Sampler produces a synthetic reading for a plant. ok is false when the
// plant cannot be sampled.
type Sampler interface {
	Sample(plant models.Plant) (power decimal.Decimal, ok bool)
}

// UniformSampler draws capacity × U(MinFactor, MaxFactor), clamped to
// [0, capacity].
type UniformSampler struct {
	MinFactor float64
	MaxFactor float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniformSampler returns a sampler seeded from the runtime source.
func NewUniformSampler(minFactor, maxFactor float64) *UniformSampler {
	return &UniformSampler{
		MinFactor: minFactor,
		MaxFactor: maxFactor,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Sample implements Sampler.
func (s *UniformSampler) Sample(plant models.Plant) (decimal.Decimal, bool) {
	capacity := plant.InstalledCapacityMW.InexactFloat64()
	if capacity <= 0 {
		return decimal.Decimal{}, false
	}

	s.mu.Lock()
	factor := s.MinFactor + s.rng.Float64()*(s.MaxFactor-s.MinFactor)
	s.mu.Unlock()

	power := decimal.NewFromFloat(capacity * factor).Round(3)
	if power.GreaterThan(plant.InstalledCapacityMW) {
		power = plant.InstalledCapacityMW
	}
	if power.IsNegative() {
		power = decimal.Zero
	}
	return power, true
}
