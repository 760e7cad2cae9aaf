package usecase

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/internal/service/derive"
	"MacroPull/internal/service/retry"
	"MacroPull/internal/service/validate"
	"MacroPull/pkg/calendar"
	"MacroPull/pkg/clock"
	applogger "MacroPull/pkg/logger"
)

// fredSeries are sourced from the primary provider at a one-business-day
// publication lag; marketSeries are quoted same-day by the market data
// provider.
var fredSeries = []string{
	models.FieldInterestRate,
	models.FieldTreasury2Y,
	models.FieldTreasury10Y,
	models.FieldICEBofaBBB,
	models.FieldGDPGrowth,
	models.FieldCPI,
}

var marketSeries = []string{
	models.FieldVIX,
	models.FieldDXY,
}

// crossCheckSeries are independently re-fetched from the secondary
// source when one is configured. Divergence warns, never blocks.
var crossCheckSeries = []string{
	models.FieldInterestRate,
	models.FieldTreasury2Y,
	models.FieldTreasury10Y,
}

const priorCPIKey = "prior_cpi"

// IngestOptions tunes a single-date ingestion.
type IngestOptions struct {
	CrossCheckTolerance float64 // relative divergence above which a warning is raised
	PersistPolicy       retry.Policy
}

// Ingestor runs the single-date pipeline: fan out fetches, assemble,
// derive, validate, persist, publish. One call produces at most one
// persisted record.
type Ingestor struct {
	primary    drepo.Provider
	market     drepo.Provider
	crossCheck drepo.Provider // optional
	store      drepo.RecordStore
	publisher  drepo.Publisher // optional
	engine     *validate.Engine
	clk        clock.Clock
	metrics    drepo.Metrics
	l          *applogger.Logger
	opts       IngestOptions
}

func NewIngestor(
	primary, market, crossCheck drepo.Provider,
	store drepo.RecordStore,
	publisher drepo.Publisher,
	engine *validate.Engine,
	clk clock.Clock,
	metrics drepo.Metrics,
	l *applogger.Logger,
	opts IngestOptions,
) *Ingestor {
	return &Ingestor{
		primary:    primary,
		market:     market,
		crossCheck: crossCheck,
		store:      store,
		publisher:  publisher,
		engine:     engine,
		clk:        clk,
		metrics:    metrics,
		l:          l,
		opts:       opts,
	}
}

// IngestDate runs the pipeline for one target date. Non-trading dates
// fail immediately without touching any provider. Degraded fetches and
// cross-check divergence surface as warnings; validation errors and
// persistence failure make the result unsuccessful.
func (in *Ingestor) IngestDate(ctx context.Context, date time.Time) models.IngestResult {
	day := calendar.FormatDate(date)
	res := models.IngestResult{Date: day}
	started := in.clk.Now()
	defer func() {
		in.metrics.ObserveIngestDuration(in.clk.Now().Sub(started))
		in.metrics.RecordIngest(res.Success)
	}()

	if !calendar.IsTradingDay(date) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s is not a trading day", day))
		in.l.Warn("ingest refused for non-trading date", applogger.String("date", day))
		return res
	}

	outcomes := in.fanOut(ctx, date)

	rec := in.assemble(day, date, outcomes, &res)

	prev, err := in.store.Get(ctx, calendar.FormatDate(calendar.PreviousTradingDay(date)))
	if err != nil {
		// Anomaly detection is best-effort; validation still runs.
		res.Warnings = append(res.Warnings, fmt.Sprintf("previous record unavailable: %v", err))
		prev = nil
	}

	vres := in.engine.Validate(rec, prev)
	for _, is := range vres.Warnings() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %s", is.Field, is.Message))
	}
	if !vres.Valid() {
		for _, is := range vres.Errors() {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", is.Field, is.Message))
		}
		in.l.Error("record rejected by validation",
			applogger.String("date", day),
			applogger.Int("errors", len(vres.Errors())),
		)
		return res
	}

	if err := in.persist(ctx, rec); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("persist: %v", err))
		in.l.Error("persist failed after retries",
			applogger.String("date", day),
			applogger.Error(err),
		)
		return res
	}

	in.crossValidate(ctx, date, rec, &res)

	if in.publisher != nil {
		if err := in.publisher.PublishRecord(ctx, rec); err != nil {
			// Downstream notification is best-effort; the record is
			// already durable.
			res.Warnings = append(res.Warnings, fmt.Sprintf("publish: %v", err))
			in.l.Warn("publish failed", applogger.String("date", day), applogger.Error(err))
		}
	}

	res.Success = true
	in.l.Info("date ingested",
		applogger.String("date", day),
		applogger.Int("warnings", len(res.Warnings)),
	)
	return res
}

type fetchTask struct {
	key      string // outcome map key
	series   string
	provider drepo.Provider
	date     time.Time
}

// fanOut issues all per-date fetches concurrently. Adapters bound their
// own latency, so the slowest single fetch bounds the whole fan-out.
func (in *Ingestor) fanOut(ctx context.Context, date time.Time) map[string]models.Outcome {
	lagDate := calendar.PreviousBusinessDay(date)

	tasks := make([]fetchTask, 0, len(fredSeries)+len(marketSeries)+1)
	for _, s := range fredSeries {
		tasks = append(tasks, fetchTask{key: s, series: s, provider: in.primary, date: lagDate})
	}
	for _, s := range marketSeries {
		tasks = append(tasks, fetchTask{key: s, series: s, provider: in.market, date: date})
	}
	// Prior-year CPI anchors the year-over-year derivation.
	tasks = append(tasks, fetchTask{
		key:      priorCPIKey,
		series:   models.FieldCPI,
		provider: in.primary,
		date:     calendar.BusinessDayYearAgo(lagDate),
	})

	outcomes := make(map[string]models.Outcome, len(tasks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task fetchTask) {
			defer wg.Done()
			out := task.provider.FetchValue(ctx, task.series, task.date)
			mu.Lock()
			outcomes[task.key] = out
			mu.Unlock()
		}(task)
	}
	wg.Wait()
	return outcomes
}

// assemble builds the candidate record from fetch outcomes and computes
// the derived fields. Degraded outcomes become warnings and absent
// values; validation decides whether the gaps are acceptable.
func (in *Ingestor) assemble(day string, date time.Time, outcomes map[string]models.Outcome, res *models.IngestResult) *models.DailyIndicatorRecord {
	rec := &models.DailyIndicatorRecord{Date: day}
	for _, s := range append(append([]string{}, fredSeries...), marketSeries...) {
		out := outcomes[s]
		if out.Kind == models.OutcomeDegraded {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: provider degraded: %s", s, out.Reason))
		}
		rec.SetField(s, out.ToValue())
	}

	rec.YieldCurveSpread = derive.YieldCurveSpread(rec.Treasury10Y, rec.Treasury2Y)
	rec.CPIYoY = derive.YearOverYear(rec.CPI, outcomes[priorCPIKey].ToValue())
	return rec
}

func (in *Ingestor) persist(ctx context.Context, rec *models.DailyIndicatorRecord) error {
	err := retry.Do(ctx, in.clk, in.opts.PersistPolicy, func() error {
		rec.UpdatedAt = in.clk.Now().UTC()
		err := in.store.Upsert(ctx, rec)
		in.metrics.RecordPersist(err == nil)
		return err
	})
	return err
}

// crossValidate re-fetches a few series from the secondary source and
// warns on divergence beyond the tolerance. The secondary's quota
// exhaustion silently skips the check.
func (in *Ingestor) crossValidate(ctx context.Context, date time.Time, rec *models.DailyIndicatorRecord, res *models.IngestResult) {
	if in.crossCheck == nil || in.opts.CrossCheckTolerance <= 0 {
		return
	}
	lagDate := calendar.PreviousBusinessDay(date)
	for _, s := range crossCheckSeries {
		primaryVal := rec.Field(s)
		if !primaryVal.Valid {
			continue
		}
		out := in.crossCheck.FetchValue(ctx, s, lagDate)
		if !out.IsOk() {
			continue
		}
		if diverges(primaryVal.Float64, out.Value, in.opts.CrossCheckTolerance) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"%s: cross-check divergence: primary %g vs secondary %g", s, primaryVal.Float64, out.Value))
			in.l.Warn("cross-check divergence",
				applogger.String("date", rec.Date),
				applogger.String("series", s),
				applogger.Float64("primary", primaryVal.Float64),
				applogger.Float64("secondary", out.Value),
			)
		}
	}
}

// diverges reports whether two readings differ by more than tol,
// relative to the larger magnitude.
func diverges(a, b, tol float64) bool {
	denom := math.Max(math.Abs(a), math.Abs(b))
	if denom == 0 {
		return false
	}
	return math.Abs(a-b)/denom > tol
}
