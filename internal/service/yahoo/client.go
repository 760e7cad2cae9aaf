package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"MacroPull/internal/domain/models"
	drepo "MacroPull/internal/domain/repository"
	svccache "MacroPull/internal/service/cache"
	"MacroPull/internal/service/retry"
	"MacroPull/pkg/clock"
	"MacroPull/pkg/httpclient"
	applogger "MacroPull/pkg/logger"
)

const (
	providerName = "yahoo"
	sessionKey   = "session"
)

// symbols maps canonical indicator names to Yahoo quote symbols.
var symbols = map[string]string{
	models.FieldVIX: "^VIX",
	models.FieldDXY: "DX-Y.NYB",
}

// Options configures the Yahoo adapter.
type Options struct {
	BaseURL  string // chart API host
	BootURL  string // public quote page used to obtain cookies + crumb
	CrumbTTL time.Duration
	Policy   retry.Policy
}

type session struct {
	crumb   string
	cookies []*http.Cookie
}

// Client fetches market quotes through Yahoo's chart API. The API is
// unauthenticated but gated on an ephemeral crumb token tied to session
// cookies; the adapter bootstraps that session lazily, caches it with a
// TTL, and refreshes it transparently when Yahoo rejects it.
type Client struct {
	opts     Options
	http     *httpclient.Client
	clk      clock.Clock
	metrics  drepo.Metrics
	l        *applogger.Logger
	sessions *svccache.TTLCache
}

func New(opts Options, httpc *httpclient.Client, clk clock.Clock, metrics drepo.Metrics, l *applogger.Logger) *Client {
	return &Client{
		opts:     opts,
		http:     httpc,
		clk:      clk,
		metrics:  metrics,
		l:        l,
		sessions: svccache.NewTTLCache(),
	}
}

func (c *Client) Name() string { return providerName }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchValue retrieves one symbol's daily close for one date. A stale
// session is re-bootstrapped once per attempt; bootstrap failure or
// retry exhaustion degrades to a tagged outcome.
func (c *Client) FetchValue(ctx context.Context, series string, date time.Time) models.Outcome {
	symbol, ok := symbols[series]
	if !ok {
		out := models.Absent("series not available from Yahoo")
		c.metrics.RecordFetch(providerName, series, string(out.Kind))
		return out
	}

	var out models.Outcome
	err := retry.Do(ctx, c.clk, c.opts.Policy, func() error {
		sess, err := c.session(ctx)
		if err != nil {
			return fmt.Errorf("session bootstrap: %w", err)
		}
		out, err = c.fetchOnce(ctx, sess, symbol, date)
		if err != nil {
			c.metrics.RecordRetry(providerName)
			c.l.Warn("yahoo fetch retrying",
				applogger.String("provider", providerName),
				applogger.String("series", series),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return err
	})
	if err != nil {
		c.metrics.RecordDegraded(providerName)
		c.l.Error("yahoo retry budget exhausted",
			applogger.String("provider", providerName),
			applogger.String("series", series),
			applogger.Error(err),
		)
		out = models.Degraded(fmt.Sprintf("retry budget exhausted: %v", err))
	}
	c.metrics.RecordFetch(providerName, series, string(out.Kind))
	return out
}

func (c *Client) fetchOnce(ctx context.Context, sess *session, symbol string, date time.Time) (models.Outcome, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	resp, err := c.http.Get(ctx, &httpclient.RequestOptions{
		URL:     c.opts.BaseURL + "/v8/finance/chart/" + symbol,
		Headers: map[string]string{"Cookie": cookieHeader(sess.cookies)},
		QueryParams: map[string]string{
			"period1":  strconv.FormatInt(day.Unix(), 10),
			"period2":  strconv.FormatInt(day.Add(24*time.Hour).Unix(), 10),
			"interval": "1d",
			"crumb":    sess.crumb,
		},
	})
	if err != nil {
		return models.Outcome{}, fmt.Errorf("yahoo request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Crumb no longer accepted. Drop the session so the next
		// attempt bootstraps a fresh one.
		c.sessions.Delete(sessionKey)
		return models.Outcome{}, fmt.Errorf("yahoo session rejected: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return models.Outcome{}, fmt.Errorf("yahoo server error: status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return models.Absent("symbol not found"), nil
	case resp.StatusCode != http.StatusOK:
		return models.Outcome{}, retry.Permanent(fmt.Errorf("yahoo request rejected: status %d", resp.StatusCode))
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Outcome{}, fmt.Errorf("yahoo decode: %w", err)
	}
	if body.Chart.Error != nil {
		return models.Outcome{}, retry.Permanent(fmt.Errorf("yahoo chart error: %s: %s",
			body.Chart.Error.Code, body.Chart.Error.Description))
	}
	if len(body.Chart.Result) == 0 || len(body.Chart.Result[0].Indicators.Quote) == 0 {
		return models.Absent("no quote data for date"), nil
	}

	result := body.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	target := day.Format("2006-01-02")
	for i, ts := range result.Timestamp {
		if i >= len(closes) {
			break
		}
		if time.Unix(ts, 0).UTC().Format("2006-01-02") != target {
			continue
		}
		if closes[i] == nil {
			return models.Absent("close not reported"), nil
		}
		return models.Ok(*closes[i]), nil
	}
	return models.Absent("no quote data for date"), nil
}

// session returns the cached session or bootstraps a new one.
func (c *Client) session(ctx context.Context) (*session, error) {
	if v, ok := c.sessions.Get(sessionKey); ok {
		return v.(*session), nil
	}
	sess, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	c.sessions.Set(sessionKey, sess, c.opts.CrumbTTL)
	c.l.Info("yahoo session established",
		applogger.String("provider", providerName),
		applogger.Int("cookies", len(sess.cookies)),
	)
	return sess, nil
}

// bootstrap loads the public quote page to collect session cookies and
// scrape the crumb, falling back to the getcrumb endpoint when no page
// pattern matches.
func (c *Client) bootstrap(ctx context.Context) (*session, error) {
	resp, err := c.http.Get(ctx, &httpclient.RequestOptions{URL: c.opts.BootURL})
	if err != nil {
		return nil, fmt.Errorf("boot page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("boot page: status %d", resp.StatusCode)
	}
	cookies := resp.Cookies()
	page, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("boot page read: %w", err)
	}

	if crumb, ok := extractCrumb(string(page)); ok {
		return &session{crumb: crumb, cookies: cookies}, nil
	}

	crumb, err := c.fetchCrumb(ctx, cookies)
	if err != nil {
		return nil, err
	}
	return &session{crumb: crumb, cookies: cookies}, nil
}

func (c *Client) fetchCrumb(ctx context.Context, cookies []*http.Cookie) (string, error) {
	resp, err := c.http.Get(ctx, &httpclient.RequestOptions{
		URL:     c.opts.BaseURL + "/v1/test/getcrumb",
		Headers: map[string]string{"Cookie": cookieHeader(cookies)},
	})
	if err != nil {
		return "", fmt.Errorf("getcrumb: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("getcrumb: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", fmt.Errorf("getcrumb read: %w", err)
	}
	crumb := strings.TrimSpace(string(b))
	if crumb == "" {
		return "", errors.New("getcrumb: empty crumb")
	}
	return crumb, nil
}

func cookieHeader(cookies []*http.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}
