package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/pkg/clock"
)

type fakeCycler struct {
	mu      sync.Mutex
	keys    int
	indices []int
}

func (c *fakeCycler) KeyCount() int { return c.keys }

func (c *fakeCycler) SetKeyIndex(i int) {
	c.mu.Lock()
	c.indices = append(c.indices, i)
	c.mu.Unlock()
}

func newTestBackfiller(t *testing.T, store *fakeStore, primary *fakeProvider, cycler *fakeCycler, opts BackfillOptions) (*Backfiller, *clock.Fake) {
	t.Helper()
	market := &fakeProvider{name: "yahoo", fn: healthyFetch}
	ing := newTestIngestor(t, store, primary, market, nil, nil)
	clk := clock.NewFake(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	var cyc drepo.CredentialCycler
	if cycler != nil {
		cyc = cycler
	}
	return NewBackfiller(ing, cyc, store, clk, testLogger(t), opts), clk
}

func TestBackfillPartialFailure(t *testing.T) {
	// 2024-07-02 gets an out-of-range reading; the run must continue.
	primary := &fakeProvider{name: "fred", fn: func(series string, date time.Time) models.Outcome {
		if series == models.FieldTreasury10Y && date.Format("2006-01-02") == "2024-07-01" {
			// lag date of target 2024-07-02
			return models.Ok(99)
		}
		return healthyFetch(series, date)
	}}
	store := newFakeStore()
	bf, _ := newTestBackfiller(t, store, primary, nil, BackfillOptions{})

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	sum, err := bf.RunRange(context.Background(), start, end)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.TradingDays != 3 {
		t.Fatalf("expected 3 trading days, got %d", sum.TradingDays)
	}
	if sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("expected 2 ok / 1 failed, got %d / %d", sum.Succeeded, sum.Failed)
	}
	if len(sum.Errors) != 1 || !strings.Contains(sum.Errors[0], "2024-07-02") {
		t.Fatalf("expected the failing date in errors, got %v", sum.Errors)
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 persisted records, got %d", store.count())
	}
}

func TestBackfillRotationAndPacing(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	store := newFakeStore()
	cycler := &fakeCycler{keys: 3}
	bf, clk := newTestBackfiller(t, store, primary, cycler, BackfillOptions{
		RequestsPerKey: 2,
		CyclePause:     10 * time.Minute,
		PerDateDelay:   2 * time.Second,
		ProgressEvery:  25,
	})

	// 2024-07-01..12 holds 9 trading days (July 4 and weekends skipped).
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 12, 0, 0, 0, 0, time.UTC)
	sum, err := bf.RunRange(context.Background(), start, end)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.TradingDays != 9 || sum.Succeeded != 9 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	wantIndices := []int{1, 2, 0, 1}
	if len(cycler.indices) != len(wantIndices) {
		t.Fatalf("expected %d rotations, got %v", len(wantIndices), cycler.indices)
	}
	for i, want := range wantIndices {
		if cycler.indices[i] != want {
			t.Fatalf("rotation %d: expected index %d, got %d", i, want, cycler.indices[i])
		}
	}

	var delays, pauses int
	for _, d := range clk.Sleeps {
		switch d {
		case 2 * time.Second:
			delays++
		case 10 * time.Minute:
			pauses++
		}
	}
	if delays != 8 {
		t.Fatalf("expected 8 per-date delays, got %d (%v)", delays, clk.Sleeps)
	}
	if pauses != 1 {
		t.Fatalf("expected 1 cycle pause, got %d", pauses)
	}
}

func TestBackfillGapsProcessesOnlyMissing(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	store := newFakeStore()
	store.recs["2024-07-01"] = models.DailyIndicatorRecord{Date: "2024-07-01"}
	store.recs["2024-07-03"] = models.DailyIndicatorRecord{Date: "2024-07-03"}
	bf, _ := newTestBackfiller(t, store, primary, nil, BackfillOptions{})

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 5, 0, 0, 0, 0, time.UTC)
	sum, err := bf.RunGaps(context.Background(), start, end)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Trading days in range: 7/1, 7/2, 7/3, 7/5 (7/4 is a holiday).
	if sum.TradingDays != 2 || sum.Succeeded != 2 {
		t.Fatalf("expected exactly the 2 gaps, got %+v", sum)
	}
	for _, d := range []string{"2024-07-02", "2024-07-05"} {
		if rec, _ := store.Get(context.Background(), d); rec == nil {
			t.Fatalf("gap %s not filled", d)
		}
	}
}

func TestBackfillFindMissingDates(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	store := newFakeStore()
	store.recs["2024-07-02"] = models.DailyIndicatorRecord{Date: "2024-07-02"}
	bf, _ := newTestBackfiller(t, store, primary, nil, BackfillOptions{})

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	missing, err := bf.FindMissingDates(context.Background(), start, end)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing dates, got %v", missing)
	}
	if missing[0].Format("2006-01-02") != "2024-07-01" || missing[1].Format("2006-01-02") != "2024-07-03" {
		t.Fatalf("unexpected missing dates: %v", missing)
	}
}

func TestBackfillCancelledContext(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	store := newFakeStore()
	bf, _ := newTestBackfiller(t, store, primary, nil, BackfillOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	sum, err := bf.RunRange(ctx, start, end)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
	if sum.Succeeded != 0 {
		t.Fatalf("nothing should have run, got %+v", sum)
	}
}

func TestBackfillSingleKeyNeverRotates(t *testing.T) {
	primary := &fakeProvider{name: "fred", fn: healthyFetch}
	store := newFakeStore()
	cycler := &fakeCycler{keys: 1}
	bf, _ := newTestBackfiller(t, store, primary, cycler, BackfillOptions{RequestsPerKey: 1})

	start := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC)
	if _, err := bf.RunRange(context.Background(), start, end); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cycler.indices) != 0 {
		t.Fatalf("single credential must never rotate, got %v", cycler.indices)
	}
}
