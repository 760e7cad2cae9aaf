package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/internal/service/ratelimit"
	"MacroPull/internal/service/retry"
	"MacroPull/pkg/cache"
	"MacroPull/pkg/calendar"
	"MacroPull/pkg/clock"
	"MacroPull/pkg/httpclient"
	applogger "MacroPull/pkg/logger"
)

const providerName = "fred"

// seriesIDs maps canonical indicator names to FRED series identifiers.
// Indicators not listed here are structurally unavailable from FRED.
var seriesIDs = map[string]string{
	models.FieldInterestRate: "FEDFUNDS",
	models.FieldTreasury2Y:   "DGS2",
	models.FieldTreasury10Y:  "DGS10",
	models.FieldICEBofaBBB:   "BAMLC0A4CBBB",
	models.FieldGDPGrowth:    "A191RL1Q225SBEA",
	models.FieldCPI:          "CPIAUCSL",
}

// Options configures the FRED adapter.
type Options struct {
	BaseURL           string
	APIKeys           []string
	Policy            retry.Policy
	DefaultRetryAfter time.Duration
	CacheTTL          time.Duration
}

// Client is the proactively rate-limited FRED adapter. The shared
// window limiter is injected by the composition root so one quota
// budget governs all series fetched within a date's fan-out.
type Client struct {
	opts    Options
	http    *httpclient.Client
	limiter *ratelimit.WindowLimiter
	clk     clock.Clock
	metrics drepo.Metrics
	l       *applogger.Logger
	fetches cache.Store // optional cross-run fetch cache

	mu       sync.Mutex
	keyIndex int
}

func New(opts Options, httpc *httpclient.Client, limiter *ratelimit.WindowLimiter, clk clock.Clock, metrics drepo.Metrics, l *applogger.Logger) *Client {
	return &Client{
		opts:    opts,
		http:    httpc,
		limiter: limiter,
		clk:     clk,
		metrics: metrics,
		l:       l,
	}
}

// SetFetchCache wires an optional response cache consulted before any
// quota is spent.
func (c *Client) SetFetchCache(s cache.Store) { c.fetches = s }

func (c *Client) Name() string { return providerName }

// KeyCount reports how many equivalent credentials are configured.
func (c *Client) KeyCount() int { return len(c.opts.APIKeys) }

// SetKeyIndex switches the active credential. The backfill controller
// rotates keys to sustain throughput past a single key's quota.
func (c *Client) SetKeyIndex(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.opts.APIKeys); n > 0 {
		c.keyIndex = ((i % n) + n) % n
	}
}

func (c *Client) currentKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.opts.APIKeys) == 0 {
		return ""
	}
	return c.opts.APIKeys[c.keyIndex]
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

// FetchValue retrieves one series' value for one date. The quota window
// is checked before the call goes out; transient failures retry with
// backoff and a 429 honors the server-supplied delay. Retry exhaustion
// degrades to a tagged outcome, never an unhandled failure.
func (c *Client) FetchValue(ctx context.Context, series string, date time.Time) models.Outcome {
	seriesID, ok := seriesIDs[series]
	if !ok {
		out := models.Absent("series not available from FRED")
		c.metrics.RecordFetch(providerName, series, string(out.Kind))
		return out
	}

	day := calendar.FormatDate(date)
	cacheKey := fmt.Sprintf("%s:%s:%s", providerName, series, day)
	if c.fetches != nil {
		var v float64
		if err := c.fetches.Get(ctx, cacheKey, &v); err == nil {
			c.metrics.RecordFetch(providerName, series, string(models.OutcomeOk))
			return models.Ok(v)
		}
	}

	var out models.Outcome
	err := retry.Do(ctx, c.clk, c.opts.Policy, func() error {
		if err := c.limiter.Acquire(ctx); err != nil {
			return retry.Permanent(err)
		}
		var err error
		out, err = c.fetchOnce(ctx, seriesID, day)
		if err != nil {
			c.metrics.RecordRetry(providerName)
			c.l.Warn("fred fetch retrying",
				applogger.String("provider", providerName),
				applogger.String("series", series),
				applogger.String("date", day),
				applogger.Error(err),
			)
		}
		return err
	})
	if err != nil {
		c.metrics.RecordDegraded(providerName)
		c.l.Error("fred retry budget exhausted",
			applogger.String("provider", providerName),
			applogger.String("series", series),
			applogger.String("date", day),
			applogger.Error(err),
		)
		out = models.Degraded(fmt.Sprintf("retry budget exhausted: %v", err))
	}

	if out.IsOk() && c.fetches != nil {
		_ = c.fetches.Set(ctx, cacheKey, out.Value, c.opts.CacheTTL)
	}
	c.metrics.RecordFetch(providerName, series, string(out.Kind))
	return out
}

func (c *Client) fetchOnce(ctx context.Context, seriesID, day string) (models.Outcome, error) {
	resp, err := c.http.Get(ctx, &httpclient.RequestOptions{
		URL: c.opts.BaseURL + "/series/observations",
		QueryParams: map[string]string{
			"series_id":         seriesID,
			"api_key":           c.currentKey(),
			"file_type":         "json",
			"observation_start": day,
			"observation_end":   day,
		},
	})
	if err != nil {
		return models.Outcome{}, fmt.Errorf("fred request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.Outcome{}, &retry.AfterError{
			After: c.retryAfter(resp),
			Err:   errors.New("fred rate limit rejection"),
		}
	case resp.StatusCode >= 500:
		return models.Outcome{}, fmt.Errorf("fred server error: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.Outcome{}, retry.Permanent(fmt.Errorf("fred request rejected: status %d", resp.StatusCode))
	}

	var body observationsResponse
	if err := decodeJSON(resp, &body); err != nil {
		return models.Outcome{}, fmt.Errorf("fred decode: %w", err)
	}
	for _, obs := range body.Observations {
		if obs.Date != day {
			continue
		}
		// FRED reports missing observations as ".".
		if obs.Value == "." || obs.Value == "" {
			return models.Absent("observation not published"), nil
		}
		v, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			return models.Outcome{}, retry.Permanent(fmt.Errorf("fred value %q: %w", obs.Value, err))
		}
		return models.Ok(v), nil
	}
	return models.Absent("no observation for date"), nil
}

func decodeJSON(resp *http.Response, dest interface{}) error {
	return json.NewDecoder(resp.Body).Decode(dest)
}

func (c *Client) retryAfter(resp *http.Response) time.Duration {
	if s := resp.Header.Get("Retry-After"); s != "" {
		if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return c.opts.DefaultRetryAfter
}
