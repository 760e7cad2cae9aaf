package fred

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"MacroPull/internal/domain/models"
	"MacroPull/internal/service/ratelimit"
	"MacroPull/internal/service/retry"
	"MacroPull/pkg/clock"
	"MacroPull/pkg/httpclient"
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

func newTestClient(t *testing.T, baseURL string, policy retry.Policy) (*Client, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2024, 7, 3, 12, 0, 0, 0, time.UTC))
	limiter := ratelimit.NewWindow(1000, time.Minute, clk)
	c := New(Options{
		BaseURL:           baseURL,
		APIKeys:           []string{"test-key"},
		Policy:            policy,
		DefaultRetryAfter: 20 * time.Second,
	}, httpclient.NewClient(), limiter, clk, nopMetrics{}, testLogger(t))
	return c, clk
}

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d
}

func TestFetchValueOk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("series_id"); got != "DGS10" {
			t.Errorf("unexpected series_id %q", got)
		}
		w.Write([]byte(`{"observations":[{"date":"2024-07-03","value":"4.36"}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, retry.Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second})
	out := c.FetchValue(context.Background(), models.FieldTreasury10Y, mustParse(t, "2024-07-03"))
	if !out.IsOk() || out.Value != 4.36 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestFetchValueNotPublished(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"observations":[{"date":"2024-07-03","value":"."}]}`))
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, retry.Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second})
	out := c.FetchValue(context.Background(), models.FieldTreasury2Y, mustParse(t, "2024-07-03"))
	if out.Kind != models.OutcomeAbsent {
		t.Fatalf("expected absent, got %+v", out)
	}
}

func TestFetchValueUnsupportedSeries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL, retry.Policy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Second})
	out := c.FetchValue(context.Background(), models.FieldVIX, mustParse(t, "2024-07-03"))
	if out.Kind != models.OutcomeAbsent {
		t.Fatalf("expected absent, got %+v", out)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("unsupported series must not hit the network")
	}
}

func TestFetchValueDegradesOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, clk := newTestClient(t, srv.URL, retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 4 * time.Second})
	out := c.FetchValue(context.Background(), models.FieldTreasury10Y, mustParse(t, "2024-07-03"))
	if out.Kind != models.OutcomeDegraded {
		t.Fatalf("expected degraded, got %+v", out)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(clk.Sleeps) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %v", clk.Sleeps)
	}
}

func TestFetchValueHonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"observations":[{"date":"2024-07-03","value":"5.33"}]}`))
	}))
	defer srv.Close()

	c, clk := newTestClient(t, srv.URL, retry.Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute})
	out := c.FetchValue(context.Background(), models.FieldInterestRate, mustParse(t, "2024-07-03"))
	if !out.IsOk() || out.Value != 5.33 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if len(clk.Sleeps) != 1 || clk.Sleeps[0] != 7*time.Second {
		t.Fatalf("expected 7s retry-after sleep, got %v", clk.Sleeps)
	}
}

func TestKeyRotation(t *testing.T) {
	c, _ := newTestClient(t, "http://unused", retry.DefaultPolicy())
	c.opts.APIKeys = []string{"a", "b", "c"}
	if c.KeyCount() != 3 {
		t.Fatalf("expected 3 keys")
	}
	c.SetKeyIndex(4)
	if got := c.currentKey(); got != "b" {
		t.Fatalf("expected wrap to b, got %q", got)
	}
}
