package energy

import (
	"fmt"
	"time"

	"gridpulse/backend/services/generation-service/internal/models"
)

// DayLayout is the wire format of calendar days.
const DayLayout = "2006-01-02"

// HourlyEnergy is the aggregated actual energy of one UTC hour.
type HourlyEnergy struct {
	EnergyMWh   float64
	SampleCount int
}

// HourStart truncates t to the start of its UTC hour.
func HourStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// DayStart returns midnight UTC of the day containing t.
func DayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses YYYY-MM-DD as a UTC day.
func ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}

// BucketHourly sums power × interval hours per UTC hour.
// Every sample is assumed to stand for one sampling interval of constant output.
func BucketHourly(samples []models.Measurement, interval time.Duration) map[time.Time]HourlyEnergy {
	hours := interval.Hours()
	buckets := make(map[time.Time]HourlyEnergy)
	for _, sample := range samples {
		key := HourStart(sample.RecordedAt)
		bucket := buckets[key]
		bucket.EnergyMWh += sample.PowerKW.InexactFloat64() * hours
		bucket.SampleCount++
		buckets[key] = bucket
	}
	return buckets
}
