package reconcile

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Row is one hour of the reconciliation grid. Deviation fields are set only
// when both plan and actual are present; the ratio also needs a positive plan.
type Row struct {
	HourStart      time.Time
	PlanMWh        *float64
	ActualMWh      *float64
	DeviationMWh   *float64
	DeviationRatio *float64
	SampleCount    int
}

// HourIndex is the hour of day of HourStart in UTC.
func (r Row) HourIndex() int {
	return r.HourStart.UTC().Hour()
}

func (r *Row) derive() {
	r.DeviationMWh = nil
	r.DeviationRatio = nil
	if r.PlanMWh == nil || r.ActualMWh == nil {
		return
	}
	deviation := *r.ActualMWh - *r.PlanMWh
	r.DeviationMWh = &deviation
	if *r.PlanMWh > 0 {
		ratio := deviation / *r.PlanMWh
		r.DeviationRatio = &ratio
	}
}

// MarshalJSON writes the row with its derived hour index.
func (r Row) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		HourIndex      int       `json:"hour_index"`
		HourStart      time.Time `json:"hour_start"`
		PlanMWh        *float64  `json:"plan_mwh"`
		ActualMWh      *float64  `json:"actual_mwh"`
		DeviationMWh   *float64  `json:"deviation_mwh"`
		DeviationRatio *float64  `json:"deviation_ratio"`
		SampleCount    int       `json:"sample_count"`
	}{
		HourIndex:      r.HourIndex(),
		HourStart:      r.HourStart.UTC(),
		PlanMWh:        r.PlanMWh,
		ActualMWh:      r.ActualMWh,
		DeviationMWh:   r.DeviationMWh,
		DeviationRatio: r.DeviationRatio,
		SampleCount:    r.SampleCount,
	})
}

// Summary holds per-call aggregates. Nothing here is stored.
type Summary struct {
	TotalPlanMWh      *float64 `json:"total_plan_mwh"`
	TotalActualMWh    *float64 `json:"total_actual_mwh"`
	TotalDeviationMWh *float64 `json:"total_deviation_mwh"`
	MAPE              *float64 `json:"mape"`
}

// DayReport is the reconciliation of one plant for one UTC day.
type DayReport struct {
	PlantID uuid.UUID `json:"plant_id"`
	Day     string    `json:"day"`
	Rows    []Row     `json:"rows"`
	Summary
}

// RangeReport is the reconciliation of one plant for [Start, End).
type RangeReport struct {
	PlantID uuid.UUID `json:"plant_id"`
	Start   string    `json:"start"`
	End     string    `json:"end"`
	Rows    []Row     `json:"rows"`
	Summary
}
