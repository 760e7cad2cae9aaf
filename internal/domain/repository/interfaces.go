package repository

import (
	"context"
	"time"

	"MacroPull/internal/domain/models"
)

// Provider is the uniform capability every upstream data source is
// wrapped behind: fetch one named series' value for one date. Absent is
// a normal outcome and must never be conflated with a hard failure;
// adapters handle their own retries, rate limits and degradation.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// FetchValue returns the value of a series for a date, or Absent /
	// Degraded. Total latency is bounded: rate-limit waits and retries
	// are individually capped inside the adapter.
	FetchValue(ctx context.Context, series string, date time.Time) models.Outcome
}

// Resettable is implemented by adapters whose degraded state survives
// until explicit operator action (the quota-scarce cross-validation
// provider).
type Resettable interface {
	Reset()
}

// CredentialCycler is implemented by adapters that can rotate among
// multiple equivalent credentials. The backfill controller drives the
// rotation to sustain throughput beyond a single credential's quota.
type CredentialCycler interface {
	KeyCount() int
	SetKeyIndex(i int)
}

// RecordStore is the persistent time-series store boundary. Each date's
// record is independent; Upsert replaces the full record atomically.
type RecordStore interface {
	// Upsert writes one full record keyed by date. Re-writing the same
	// date is idempotent: at most one logical version survives.
	Upsert(ctx context.Context, rec *models.DailyIndicatorRecord) error

	// Get returns the record for a date, or nil when none exists.
	Get(ctx context.Context, date string) (*models.DailyIndicatorRecord, error)

	// ListDates enumerates existing record keys in [from, to] for gap
	// detection against the expected trading-day sequence.
	ListDates(ctx context.Context, from, to string) ([]string, error)
}

// Publisher emits persisted records to downstream consumers.
type Publisher interface {
	PublishRecord(ctx context.Context, rec *models.DailyIndicatorRecord) error
}

// Metrics records ingestion observability counters.
type Metrics interface {
	RecordFetch(provider, series, outcome string)
	RecordRetry(provider string)
	RecordDegraded(provider string)
	RecordPersist(success bool)
	RecordIngest(success bool)
	ObserveIngestDuration(d time.Duration)
}
