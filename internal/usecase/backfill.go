package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/pkg/calendar"
	"MacroPull/pkg/clock"
	applogger "MacroPull/pkg/logger"
)

// BackfillOptions tunes the historical range controller.
type BackfillOptions struct {
	// RequestsPerKey is how many dates are processed on one credential
	// before rotating to the next.
	RequestsPerKey int
	// CyclePause is the cool-off after every credential has taken a
	// full turn, letting upstream quota windows recover.
	CyclePause time.Duration
	// PerDateDelay paces consecutive dates.
	PerDateDelay time.Duration
	// ProgressEvery controls progress log cadence, in dates.
	ProgressEvery int
}

// Backfiller drives the single-date pipeline across a historical range:
// strictly sequential dates, paced, rotating credentials to stretch
// quota. Individual date failures are recorded and skipped; only
// context cancellation aborts the run.
type Backfiller struct {
	ingestor *Ingestor
	cycler   drepo.CredentialCycler // optional
	store    drepo.RecordStore
	clk      clock.Clock
	l        *applogger.Logger
	opts     BackfillOptions
}

func NewBackfiller(ingestor *Ingestor, cycler drepo.CredentialCycler, store drepo.RecordStore, clk clock.Clock, l *applogger.Logger, opts BackfillOptions) *Backfiller {
	return &Backfiller{
		ingestor: ingestor,
		cycler:   cycler,
		store:    store,
		clk:      clk,
		l:        l,
		opts:     opts,
	}
}

// RunRange backfills every trading day in [start, end].
func (b *Backfiller) RunRange(ctx context.Context, start, end time.Time) (*models.BackfillSummary, error) {
	return b.run(ctx, start, end, calendar.TradingDaysBetween(start, end))
}

// RunGaps backfills only the trading days in [start, end] that have no
// stored record yet.
func (b *Backfiller) RunGaps(ctx context.Context, start, end time.Time) (*models.BackfillSummary, error) {
	missing, err := b.FindMissingDates(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return b.run(ctx, start, end, missing)
}

// FindMissingDates diffs the expected trading-day sequence against the
// dates already present in the store.
func (b *Backfiller) FindMissingDates(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	expected := calendar.TradingDaysBetween(start, end)
	existing, err := b.store.ListDates(ctx, calendar.FormatDate(start), calendar.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("list stored dates: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, d := range existing {
		have[d] = struct{}{}
	}
	var missing []time.Time
	for _, d := range expected {
		if _, ok := have[calendar.FormatDate(d)]; !ok {
			missing = append(missing, d)
		}
	}
	return missing, nil
}

func (b *Backfiller) run(ctx context.Context, start, end time.Time, dates []time.Time) (*models.BackfillSummary, error) {
	progress := models.BackfillProgress{Total: len(dates)}
	b.l.Info("backfill starting",
		applogger.String("start", calendar.FormatDate(start)),
		applogger.String("end", calendar.FormatDate(end)),
		applogger.Int("trading_days", progress.Total),
	)

	sinceRotation := 0
	for i, d := range dates {
		if err := ctx.Err(); err != nil {
			return b.summary(start, end, &progress), err
		}

		res := b.ingestor.IngestDate(ctx, d)
		progress.Processed++
		if res.Success {
			progress.Succeeded++
		} else {
			progress.Failed++
			progress.Errors = append(progress.Errors,
				fmt.Sprintf("%s: %s", res.Date, strings.Join(res.Errors, "; ")))
		}

		if b.opts.ProgressEvery > 0 && progress.Processed%b.opts.ProgressEvery == 0 {
			b.l.Info("backfill progress",
				applogger.Int("processed", progress.Processed),
				applogger.Int("total", progress.Total),
				applogger.Int("failed", progress.Failed),
				applogger.Int("credential", progress.CredentialIndex),
			)
		}

		last := i == len(dates)-1
		if err := b.pace(ctx, &progress, &sinceRotation, last); err != nil {
			return b.summary(start, end, &progress), err
		}
	}

	summary := b.summary(start, end, &progress)
	b.l.Info("backfill finished",
		applogger.Int("succeeded", summary.Succeeded),
		applogger.Int("failed", summary.Failed),
	)
	return summary, nil
}

// pace applies the per-date delay and drives credential rotation: after
// RequestsPerKey dates the next credential takes over, and once every
// credential has had a turn the run pauses for CyclePause.
func (b *Backfiller) pace(ctx context.Context, progress *models.BackfillProgress, sinceRotation *int, last bool) error {
	if last {
		return nil
	}

	*sinceRotation++
	if b.cycler != nil && b.cycler.KeyCount() > 1 && *sinceRotation >= b.opts.RequestsPerKey {
		*sinceRotation = 0
		progress.CredentialIndex = (progress.CredentialIndex + 1) % b.cycler.KeyCount()
		b.cycler.SetKeyIndex(progress.CredentialIndex)
		b.l.Info("rotating credential", applogger.Int("credential", progress.CredentialIndex))
		if progress.CredentialIndex == 0 && b.opts.CyclePause > 0 {
			b.l.Info("credential cycle complete, pausing",
				applogger.Duration("pause", b.opts.CyclePause))
			if err := b.clk.Sleep(ctx, b.opts.CyclePause); err != nil {
				return err
			}
		}
	}

	if b.opts.PerDateDelay > 0 {
		if err := b.clk.Sleep(ctx, b.opts.PerDateDelay); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backfiller) summary(start, end time.Time, p *models.BackfillProgress) *models.BackfillSummary {
	return &models.BackfillSummary{
		Start:       calendar.FormatDate(start),
		End:         calendar.FormatDate(end),
		TradingDays: p.Total,
		Succeeded:   p.Succeeded,
		Failed:      p.Failed,
		Errors:      p.Errors,
	}
}
