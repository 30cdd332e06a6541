package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// LatestReading is the newest reading of one plant, cached for snapshots.
type LatestReading struct {
	PlantID    uuid.UUID       `json:"plant_id"`
	PowerKW    decimal.Decimal `json:"power_kw"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Client is the subset of go-redis commands the store uses. *redis.Client
// satisfies it.
type Client interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
}

// LatestStore caches per-plant latest readings.
type LatestStore struct {
	client Client
	ttl    time.Duration
}

// NewLatestStore returns redis-backed store. Entries expire after ttl so a
// plant that stops reporting falls back to the database.
func NewLatestStore(client Client, ttl time.Duration) *LatestStore {
	return &LatestStore{client: client, ttl: ttl}
}

func (s *LatestStore) key(plantID uuid.UUID) string {
	return fmt.Sprintf("generation:latest:%s", plantID)
}

// Save caches reading, overwriting the previous one for the plant.
func (s *LatestStore) Save(ctx context.Context, reading LatestReading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(reading.PlantID), data, s.ttl).Err()
}

// GetMany returns cached readings for the given plants. Plants without a
// cached entry are absent from the result.
func (s *LatestStore) GetMany(ctx context.Context, plantIDs []uuid.UUID) (map[uuid.UUID]LatestReading, error) {
	result := make(map[uuid.UUID]LatestReading, len(plantIDs))
	if len(plantIDs) == 0 {
		return result, nil
	}

	keys := make([]string, len(plantIDs))
	for i, id := range plantIDs {
		keys[i] = s.key(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var reading LatestReading
		if err := json.Unmarshal([]byte(raw), &reading); err != nil {
			return nil, fmt.Errorf("decode latest reading: %w", err)
		}
		result[reading.PlantID] = reading
	}
	return result, nil
}
