package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	"MacroPull/internal/service/retry"
	"MacroPull/pkg/calendar"
	"MacroPull/pkg/clock"
	"MacroPull/pkg/httpclient"
	applogger "MacroPull/pkg/logger"
)

const providerName = "alphavantage"

// functions maps canonical indicator names to Alpha Vantage economic
// indicator endpoints. The maturity parameter disambiguates treasury
// tenors behind the shared TREASURY_YIELD function.
var functions = map[string]struct {
	name     string
	maturity string
}{
	models.FieldInterestRate: {name: "FEDERAL_FUNDS_RATE"},
	models.FieldTreasury2Y:   {name: "TREASURY_YIELD", maturity: "2year"},
	models.FieldTreasury10Y:  {name: "TREASURY_YIELD", maturity: "10year"},
	models.FieldCPI:          {name: "CPI"},
}

// Options configures the Alpha Vantage adapter.
type Options struct {
	BaseURL    string
	APIKey     string
	DailyQuota int
	Policy     retry.Policy
}

// Client is the secondary, quota-scarce source used to cross-check
// primary values. The free tier allows only a handful of calls per day,
// so quota exhaustion flips a sticky unavailable flag: every later
// fetch short-circuits to a degraded outcome without spending network
// round trips, until Reset clears the flag for the next quota day.
type Client struct {
	opts    Options
	http    *httpclient.Client
	clk     clock.Clock
	metrics drepo.Metrics
	l       *applogger.Logger

	mu          sync.Mutex
	used        int
	unavailable bool
}

func New(opts Options, httpc *httpclient.Client, clk clock.Clock, metrics drepo.Metrics, l *applogger.Logger) *Client {
	return &Client{
		opts:    opts,
		http:    httpc,
		clk:     clk,
		metrics: metrics,
		l:       l,
	}
}

func (c *Client) Name() string { return providerName }

// Reset clears the quota counter and the unavailable flag. Callers
// invoke it when the provider's daily quota window rolls over.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.used = 0
	c.unavailable = false
}

// Used reports how many quota slots have been consumed since the last
// Reset.
func (c *Client) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

func (c *Client) takeSlot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unavailable || c.used >= c.opts.DailyQuota {
		c.unavailable = true
		return false
	}
	c.used++
	return true
}

func (c *Client) markUnavailable() {
	c.mu.Lock()
	c.unavailable = true
	c.mu.Unlock()
}

type indicatorResponse struct {
	Data []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"data"`
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// FetchValue retrieves one series' value for one date from the
// cross-check source. Unsupported series and exhausted quota are
// expected states, not failures.
func (c *Client) FetchValue(ctx context.Context, series string, date time.Time) models.Outcome {
	fn, ok := functions[series]
	if !ok {
		out := models.Absent("series not available from Alpha Vantage")
		c.l.Debug("alphavantage series unmapped, primary source is authoritative",
			applogger.String("provider", providerName),
			applogger.String("series", series),
		)
		c.metrics.RecordFetch(providerName, series, string(out.Kind))
		return out
	}

	day := calendar.FormatDate(date)
	if !c.takeSlot() {
		out := models.Degraded("daily quota exhausted")
		c.metrics.RecordFetch(providerName, series, string(out.Kind))
		return out
	}

	var out models.Outcome
	err := retry.Do(ctx, c.clk, c.opts.Policy, func() error {
		var err error
		out, err = c.fetchOnce(ctx, fn.name, fn.maturity, day)
		if err != nil {
			c.metrics.RecordRetry(providerName)
			c.l.Warn("alphavantage fetch retrying",
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
		out = models.Degraded(fmt.Sprintf("retry budget exhausted: %v", err))
	}
	c.metrics.RecordFetch(providerName, series, string(out.Kind))
	return out
}

func (c *Client) fetchOnce(ctx context.Context, function, maturity, day string) (models.Outcome, error) {
	params := map[string]string{
		"function": function,
		"apikey":   c.opts.APIKey,
		"datatype": "json",
	}
	if maturity != "" {
		params["maturity"] = maturity
		params["interval"] = "daily"
	}
	resp, err := c.http.Get(ctx, &httpclient.RequestOptions{
		URL:         c.opts.BaseURL + "/query",
		QueryParams: params,
	})
	if err != nil {
		return models.Outcome{}, fmt.Errorf("alphavantage request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.markUnavailable()
		return models.Outcome{}, retry.Permanent(fmt.Errorf("alphavantage rate limit rejection"))
	case resp.StatusCode >= 500:
		return models.Outcome{}, fmt.Errorf("alphavantage server error: status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.Outcome{}, retry.Permanent(fmt.Errorf("alphavantage request rejected: status %d", resp.StatusCode))
	}

	var body indicatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Outcome{}, fmt.Errorf("alphavantage decode: %w", err)
	}
	// Quota exhaustion arrives as 200 with an explanatory note.
	if body.Note != "" || body.Information != "" {
		c.markUnavailable()
		c.l.Warn("alphavantage quota notice",
			applogger.String("provider", providerName),
			applogger.String("note", body.Note+body.Information),
		)
		return models.Outcome{}, retry.Permanent(fmt.Errorf("alphavantage quota notice"))
	}
	if len(body.Data) == 0 {
		return models.Absent("no data points"), nil
	}

	// Exact date when present; otherwise the latest point at or before
	// the target (monthly series like CPI report on the first of the
	// month).
	points := body.Data
	sort.Slice(points, func(i, j int) bool { return points[i].Date > points[j].Date })
	for _, p := range points {
		if p.Date > day {
			continue
		}
		if p.Value == "." || p.Value == "" {
			if p.Date == day {
				return models.Absent("observation not published"), nil
			}
			continue
		}
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return models.Outcome{}, retry.Permanent(fmt.Errorf("alphavantage value %q: %w", p.Value, err))
		}
		return models.Ok(v), nil
	}
	return models.Absent("no observation at or before date"), nil
}
