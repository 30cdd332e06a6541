package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"gridpulse/backend/libs/auth"
	"gridpulse/backend/services/generation-service/internal/models"
	"gridpulse/backend/services/generation-service/internal/reconcile"
	"gridpulse/backend/services/generation-service/internal/repository"
)

type fakeAccess struct {
	allowed map[uuid.UUID]bool
	calls   int
}

func (f *fakeAccess) Authorize(_ context.Context, _ auth.Session, plantID uuid.UUID) (*models.Plant, error) {
	f.calls++
	allowed, known := f.allowed[plantID]
	if !known {
		return nil, repository.ErrPlantNotFound
	}
	if !allowed {
		return nil, auth.ErrForbidden
	}
	return &models.Plant{ID: plantID}, nil
}

type fakeReconciler struct {
	dayCalls   int
	rangeCalls int
	err        error
}

func (f *fakeReconciler) ReconcileDay(_ context.Context, plantID uuid.UUID, day time.Time) (reconcile.DayReport, error) {
	f.dayCalls++
	if f.err != nil {
		return reconcile.DayReport{}, f.err
	}
	rows := make([]reconcile.Row, 24)
	for i := range rows {
		rows[i].HourStart = day.Add(time.Duration(i) * time.Hour)
	}
	return reconcile.DayReport{PlantID: plantID, Day: day.Format("2006-01-02"), Rows: rows}, nil
}

func (f *fakeReconciler) ReconcileRange(_ context.Context, plantID uuid.UUID, start, end time.Time) (reconcile.RangeReport, error) {
	f.rangeCalls++
	start, end, err := reconcile.NormalizeRange(start, end)
	if err != nil {
		return reconcile.RangeReport{}, err
	}
	return reconcile.RangeReport{PlantID: plantID, Start: start.Format("2006-01-02"), End: end.Format("2006-01-02")}, nil
}

type memoryPlans struct {
	plans map[string]models.Plan
}

func (m *memoryPlans) key(plantID uuid.UUID, day time.Time) string {
	return plantID.String() + day.UTC().Format("2006-01-02")
}

func (m *memoryPlans) Upsert(_ context.Context, plan *models.Plan) error {
	if len(plan.HourlyMWh) != models.HoursPerDay {
		return repository.ErrInvalidPlan
	}
	plan.UpdatedAt = time.Now().UTC()
	m.plans[m.key(plan.PlantID, plan.Day)] = *plan
	return nil
}

func (m *memoryPlans) Get(_ context.Context, plantID uuid.UUID, day time.Time) (*models.Plan, error) {
	plan, ok := m.plans[m.key(plantID, day)]
	if !ok {
		return nil, repository.ErrPlanNotFound
	}
	return &plan, nil
}

func withSession(req *http.Request) *http.Request {
	tenant := uuid.New()
	session := auth.Session{Identity: auth.Identity{CallerID: uuid.New(), TenantID: tenant}, EffectiveTenantID: tenant}
	return req.WithContext(auth.WithSession(req.Context(), session))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestReconcileDayHandler(t *testing.T) {
	plantID := uuid.New()
	access := &fakeAccess{allowed: map[uuid.UUID]bool{plantID: true}}
	engine := &fakeReconciler{}
	h := NewReconcileHandlers(access, engine, zap.NewNop())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/reconciliation/day?plant_id="+plantID.String()+"&day=2025-07-01", nil))
	rec := httptest.NewRecorder()
	h.Day(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	rows, _ := body["rows"].([]any)
	if len(rows) != 24 {
		t.Fatalf("expected 24 rows, got %d", len(rows))
	}
	if body["day"] != "2025-07-01" {
		t.Fatalf("unexpected day %v", body["day"])
	}
	if _, ok := body["mape"]; !ok {
		t.Fatalf("expected summary fields flattened into report: %v", body)
	}
}

func TestReconcileDayHandlerErrors(t *testing.T) {
	allowed, foreign := uuid.New(), uuid.New()
	access := &fakeAccess{allowed: map[uuid.UUID]bool{allowed: true, foreign: false}}

	cases := []struct {
		name   string
		query  string
		engine *fakeReconciler
		status int
	}{
		{name: "missing plant", query: "day=2025-07-01", engine: &fakeReconciler{}, status: http.StatusBadRequest},
		{name: "bad plant", query: "plant_id=nope&day=2025-07-01", engine: &fakeReconciler{}, status: http.StatusBadRequest},
		{name: "bad day", query: "plant_id=" + allowed.String() + "&day=07/01/2025", engine: &fakeReconciler{}, status: http.StatusBadRequest},
		{name: "foreign plant", query: "plant_id=" + foreign.String() + "&day=2025-07-01", engine: &fakeReconciler{}, status: http.StatusForbidden},
		{name: "unknown plant", query: "plant_id=" + uuid.New().String() + "&day=2025-07-01", engine: &fakeReconciler{}, status: http.StatusNotFound},
		{name: "store failure", query: "plant_id=" + allowed.String() + "&day=2025-07-01", engine: &fakeReconciler{err: errors.New("db down")}, status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewReconcileHandlers(access, tc.engine, zap.NewNop())
			rec := httptest.NewRecorder()
			h.Day(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/reconciliation/day?"+tc.query, nil)))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestReconcileHandlerRequiresSession(t *testing.T) {
	h := NewReconcileHandlers(&fakeAccess{}, &fakeReconciler{}, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Day(rec, httptest.NewRequest(http.MethodGet, "/api/reconciliation/day", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestReconcileRangeHandler(t *testing.T) {
	plantID := uuid.New()
	access := &fakeAccess{allowed: map[uuid.UUID]bool{plantID: true}}
	engine := &fakeReconciler{}
	h := NewReconcileHandlers(access, engine, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Range(rec, withSession(httptest.NewRequest(http.MethodGet,
		"/api/reconciliation/range?plant_id="+plantID.String()+"&start=2025-07-01&end=2025-07-01", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["start"] != "2025-07-01" || body["end"] != "2025-07-02" {
		t.Fatalf("expected single day range, got %v..%v", body["start"], body["end"])
	}

	access.calls = 0
	rec = httptest.NewRecorder()
	h.Range(rec, withSession(httptest.NewRequest(http.MethodGet,
		"/api/reconciliation/range?plant_id="+plantID.String()+"&start=2025-07-01&end=2025-08-10", nil)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for 40 day range, got %d", rec.Code)
	}
	if access.calls != 0 || engine.rangeCalls != 1 {
		t.Fatalf("wide range must be rejected before store access, access=%d engine=%d", access.calls, engine.rangeCalls)
	}
}

func TestPlanHandlersUpsertThenGet(t *testing.T) {
	plantID := uuid.New()
	access := &fakeAccess{allowed: map[uuid.UUID]bool{plantID: true}}
	store := &memoryPlans{plans: map[string]models.Plan{}}
	h := NewPlanHandlers(access, store, zap.NewNop())

	put := func(value string) int {
		values := make([]string, 24)
		for i := range values {
			values[i] = value
		}
		body := `{"plant_id":"` + plantID.String() + `","day":"2025-07-01","hourly_mwh":[` + strings.Join(values, ",") + `]}`
		rec := httptest.NewRecorder()
		h.Put(rec, withSession(httptest.NewRequest(http.MethodPut, "/api/plans", strings.NewReader(body))))
		return rec.Code
	}

	if code := put("5"); code != http.StatusOK {
		t.Fatalf("first upsert: %d", code)
	}
	if code := put("10.0"); code != http.StatusOK {
		t.Fatalf("second upsert: %d", code)
	}

	rec := httptest.NewRecorder()
	h.Get(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/plans?plant_id="+plantID.String()+"&day=2025-07-01", nil)))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: %d %s", rec.Code, rec.Body.String())
	}

	var got struct {
		HourlyMWh []decimal.Decimal `json:"hourly_mwh"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.HourlyMWh) != 24 {
		t.Fatalf("expected 24 values, got %d", len(got.HourlyMWh))
	}
	for i, value := range got.HourlyMWh {
		if !value.Equal(decimal.NewFromInt(10)) {
			t.Fatalf("hour %d: expected last write 10, got %s", i, value)
		}
	}
}

func TestPlanHandlersRejectShortPlan(t *testing.T) {
	plantID := uuid.New()
	h := NewPlanHandlers(&fakeAccess{allowed: map[uuid.UUID]bool{plantID: true}}, &memoryPlans{plans: map[string]models.Plan{}}, zap.NewNop())

	body := `{"plant_id":"` + plantID.String() + `","day":"2025-07-01","hourly_mwh":[1,2,3]}`
	rec := httptest.NewRecorder()
	h.Put(rec, withSession(httptest.NewRequest(http.MethodPut, "/api/plans", strings.NewReader(body))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Get(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/plans?plant_id="+plantID.String()+"&day=2025-07-02", nil)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing plan, got %d", rec.Code)
	}
}

type staticSnapshots struct{}

func (staticSnapshots) Snapshot(_ context.Context, tenantID uuid.UUID) (models.PortfolioSnapshot, error) {
	return models.PortfolioSnapshot{TenantID: tenantID, Plants: []models.PlantReading{}, TotalMW: decimal.Zero, CapacityMW: decimal.Zero}, nil
}

func TestPortfolioHandlerUsesEffectiveTenant(t *testing.T) {
	h := NewPortfolioHandler(staticSnapshots{}, zap.NewNop())

	caller, target := uuid.New(), uuid.New()
	session := auth.Session{Identity: auth.Identity{TenantID: caller, Role: auth.RoleAdmin}, EffectiveTenantID: target}
	req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
	req = req.WithContext(auth.WithSession(req.Context(), session))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["tenant_id"] != target.String() {
		t.Fatalf("expected snapshot for impersonated tenant, got %v", body["tenant_id"])
	}
}
