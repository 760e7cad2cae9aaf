package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/internal/service/retry"
	"MacroPull/internal/service/validate"
	"MacroPull/pkg/clock"
	applogger "MacroPull/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string, string) {}
func (nopMetrics) RecordRetry(string)                 {}
func (nopMetrics) RecordDegraded(string)              {}
func (nopMetrics) RecordPersist(bool)                 {}
func (nopMetrics) RecordIngest(bool)                  {}
func (nopMetrics) ObserveIngestDuration(time.Duration) {}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type fetchCall struct {
	series string
	date   string
}

type fakeProvider struct {
	name string
	fn   func(series string, date time.Time) models.Outcome

	mu    sync.Mutex
	calls []fetchCall
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) FetchValue(_ context.Context, series string, date time.Time) models.Outcome {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{series: series, date: date.Format("2006-01-02")})
	p.mu.Unlock()
	return p.fn(series, date)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakeProvider) dateFor(series string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.calls {
		if c.series == series {
			return c.date
		}
	}
	return ""
}

type fakeStore struct {
	mu          sync.Mutex
	recs        map[string]models.DailyIndicatorRecord
	failUpserts int
	upserts     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[string]models.DailyIndicatorRecord)}
}

func (s *fakeStore) Upsert(_ context.Context, rec *models.DailyIndicatorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failUpserts > 0 {
		s.failUpserts--
		return errors.New("store unavailable")
	}
	s.recs[rec.Date] = *rec
	return nil
}

func (s *fakeStore) Get(_ context.Context, date string) (*models.DailyIndicatorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.recs[date]; ok {
		cp := rec
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) ListDates(_ context.Context, from, to string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for d := range s.recs {
		if d >= from && d <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishRecord(_ context.Context, rec *models.DailyIndicatorRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, rec.Date)
	return nil
}

// healthyValues is a full set of in-range indicator readings.
var healthyValues = map[string]float64{
	models.FieldInterestRate: 5.33,
	models.FieldVIX:          12.44,
	models.FieldDXY:          105.1,
	models.FieldTreasury2Y:   4.71,
	models.FieldTreasury10Y:  4.36,
	models.FieldICEBofaBBB:   5.6,
	models.FieldGDPGrowth:    2.8,
	models.FieldCPI:          308.417,
}

const priorCPIValue = 300.536

func healthyFetch(series string, date time.Time) models.Outcome {
	if series == models.FieldCPI && date.Year() == 2023 {
		return models.Ok(priorCPIValue)
	}
	if v, ok := healthyValues[series]; ok {
		return models.Ok(v)
	}
	return models.Absent("unmapped")
}

func newTestIngestor(t *testing.T, store *fakeStore, primary, market, crossCheck *fakeProvider, pub *fakePublisher) *Ingestor {
	t.Helper()
	engine := validate.NewEngine(validate.DefaultRules(), 50)
	clk := clock.NewFake(time.Date(2024, 7, 3, 22, 0, 0, 0, time.UTC))
	opts := IngestOptions{
		CrossCheckTolerance: 0.05,
		PersistPolicy:       retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Second},
	}
	var cc drepo.Provider
	if crossCheck != nil {
		cc = crossCheck
	}
	var publisher drepo.Publisher
	if pub != nil {
		publisher = pub
	}
	return NewIngestor(primary, market, cc, store, publisher, engine, clk, nopMetrics{}, testLogger(t), opts)
}

var wednesday = time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)

func TestIngestNonTradingDay(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	saturday := time.Date(2024, 7, 6, 0, 0, 0, 0, time.UTC)
	res := ing.IngestDate(context.Background(), saturday)
	if res.Success {
		t.Fatalf("expected failure for non-trading date")
	}
	if primary.callCount() != 0 || market.callCount() != 0 {
		t.Fatalf("non-trading date must not reach providers")
	}
	if store.count() != 0 {
		t.Fatalf("nothing should be persisted")
	}
}

func TestIngestHappyPath(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("expected success, errors: %v", res.Errors)
	}

	rec, err := store.Get(context.Background(), "2024-07-03")
	if err != nil || rec == nil {
		t.Fatalf("record not persisted: %v", err)
	}
	if !rec.YieldCurveSpread.Valid || math.Abs(rec.YieldCurveSpread.Float64-(-0.35)) > 1e-9 {
		t.Fatalf("unexpected spread: %+v", rec.YieldCurveSpread)
	}
	if !rec.CPIYoY.Valid || math.Abs(rec.CPIYoY.Float64-2.62) > 0.005 {
		t.Fatalf("unexpected cpi_yoy: %+v", rec.CPIYoY)
	}
	if rec.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}

	// Market quotes are fetched for the target date, primary series at
	// the publication lag.
	if got := market.dateFor(models.FieldVIX); got != "2024-07-03" {
		t.Fatalf("vix fetched for %s", got)
	}
	if got := primary.dateFor(models.FieldTreasury10Y); got != "2024-07-02" {
		t.Fatalf("treasury_10y fetched for %s", got)
	}
}

func TestIngestValidationBlocksPersist(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: func(series string, date time.Time) models.Outcome {
		if series == models.FieldVIX {
			return models.Ok(500) // far outside the plausible range
		}
		return healthyFetch(series, date)
	}}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if res.Success {
		t.Fatalf("expected validation failure")
	}
	if store.count() != 0 {
		t.Fatalf("invalid record must not persist")
	}
	found := false
	for _, e := range res.Errors {
		if strings.Contains(e, models.FieldVIX) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a vix error, got %v", res.Errors)
	}
}

func TestIngestMissingRequiredFieldFails(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: func(series string, date time.Time) models.Outcome {
		if series == models.FieldTreasury10Y {
			return models.Degraded("retry budget exhausted")
		}
		return healthyFetch(series, date)
	}}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if res.Success {
		t.Fatalf("expected failure on missing required field")
	}
	if store.count() != 0 {
		t.Fatalf("record must not persist")
	}
	// The degradation surfaces as a warning alongside the error.
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a degradation warning")
	}
}

func TestIngestDegradedOptionalFieldStillSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: func(series string, date time.Time) models.Outcome {
		if series == models.FieldGDPGrowth {
			return models.Degraded("quota gone")
		}
		return healthyFetch(series, date)
	}}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("optional field degradation must not block, errors: %v", res.Errors)
	}
	rec, _ := store.Get(context.Background(), "2024-07-03")
	if rec.GDPGrowth.Valid {
		t.Fatalf("degraded field must persist as absent")
	}
	if len(res.Warnings) == 0 {
		t.Fatalf("expected a degradation warning")
	}
}

func TestIngestPersistRetriesThenSucceeds(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	store.failUpserts = 2
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("expected success after retries, errors: %v", res.Errors)
	}
	if store.upserts != 3 {
		t.Fatalf("expected 3 upsert attempts, got %d", store.upserts)
	}
}

func TestIngestPersistExhaustionFails(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	store.failUpserts = 10
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if res.Success {
		t.Fatalf("expected failure when the store stays down")
	}
	if store.count() != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestIngestCrossCheckDivergenceWarns(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	crossCheck := &fakeProvider{name: "alphavantage", fn: func(series string, date time.Time) models.Outcome {
		if series == models.FieldInterestRate {
			return models.Ok(4.00) // ~25% off the primary's 5.33
		}
		return healthyFetch(series, date)
	}}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, crossCheck, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("divergence must not block, errors: %v", res.Errors)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "cross-check divergence") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a divergence warning, got %v", res.Warnings)
	}
}

func TestIngestCrossCheckDegradedSkipsSilently(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	crossCheck := &fakeProvider{name: "alphavantage", fn: func(string, time.Time) models.Outcome {
		return models.Degraded("daily quota exhausted")
	}}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, crossCheck, nil)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("expected success, errors: %v", res.Errors)
	}
	for _, w := range res.Warnings {
		if strings.Contains(w, "cross-check") {
			t.Fatalf("exhausted cross-check must be silent, got %q", w)
		}
	}
}

func TestIngestPublishFailureIsWarning(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("broker down")}
	ing := newTestIngestor(t, store, primary, market, nil, pub)

	res := ing.IngestDate(context.Background(), wednesday)
	if !res.Success {
		t.Fatalf("publish failure must not fail the ingest, errors: %v", res.Errors)
	}
	if store.count() != 1 {
		t.Fatalf("record must persist regardless of publish")
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "publish") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a publish warning, got %v", res.Warnings)
	}
}

func TestIngestRerunIsIdempotent(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	store := newFakeStore()
	ing := newTestIngestor(t, store, primary, market, nil, nil)

	for i := 0; i < 2; i++ {
		if res := ing.IngestDate(context.Background(), wednesday); !res.Success {
			t.Fatalf("run %d failed: %v", i, res.Errors)
		}
	}
	if store.count() != 1 {
		t.Fatalf("re-running a date must not duplicate records, got %d", store.count())
	}
}
