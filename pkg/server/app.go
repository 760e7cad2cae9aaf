package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"MacroPull/internal/usecase"
	"MacroPull/pkg/calendar"
	pkgch "MacroPull/pkg/clickhouse"
	"MacroPull/pkg/config"
	xhttp "MacroPull/pkg/http"
	pkgkafka "MacroPull/pkg/kafka"
	applogger "MacroPull/pkg/logger"
)

// Job describes one invocation: a single target date, or a historical
// range (optionally restricted to missing dates).
type Job struct {
	Date          time.Time
	BackfillStart time.Time
	BackfillEnd   time.Time
	FillGaps      bool
}

func (j Job) isBackfill() bool { return !j.BackfillStart.IsZero() }

// App ties the pipeline to the process lifecycle: it serves health and
// metrics while a run is in flight, reacts to signals, and releases
// infrastructure clients on the way out.
type App struct {
	cfg        *config.Config
	ingestor   *usecase.Ingestor
	backfiller *usecase.Backfiller
	chClient   *pkgch.Client
	producer   *pkgkafka.Producer // nil when kafka is disabled
	l          *applogger.Logger
	httpServer *xhttp.Server
}

func New(
	cfg *config.Config,
	ingestor *usecase.Ingestor,
	backfiller *usecase.Backfiller,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:        cfg,
		ingestor:   ingestor,
		backfiller: backfiller,
		chClient:   chClient,
		producer:   producer,
		l:          l,
	}
}

// Run executes the job and blocks until it finishes or a termination
// signal cancels it. A failed run returns a non-nil error so the exit
// code reflects it.
func (a *App) Run(job Job) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.cfg.Server.Enabled {
		a.httpServer = xhttp.NewServer(&healthHandler{chClient: a.chClient},
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithShutdownTimeout(a.cfg.Server.ShutdownTimeout),
		)
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	runErr := a.execute(ctx, job)
	a.shutdown()
	return runErr
}

func (a *App) execute(ctx context.Context, job Job) error {
	if job.isBackfill() {
		return a.runBackfill(ctx, job)
	}
	return a.runSingle(ctx, job.Date)
}

func (a *App) runSingle(ctx context.Context, date time.Time) error {
	a.l.Info("single-date run starting",
		applogger.String("date", calendar.FormatDate(date)))
	res := a.ingestor.IngestDate(ctx, date)
	if !res.Success {
		return fmt.Errorf("ingest %s failed: %s", res.Date, strings.Join(res.Errors, "; "))
	}
	return nil
}

func (a *App) runBackfill(ctx context.Context, job Job) error {
	run := a.backfiller.RunRange
	if job.FillGaps {
		run = a.backfiller.RunGaps
	}
	summary, err := run(ctx, job.BackfillStart, job.BackfillEnd)
	if err != nil {
		return fmt.Errorf("backfill aborted: %w", err)
	}
	if summary.Failed > 0 {
		return fmt.Errorf("backfill finished with %d/%d failed dates",
			summary.Failed, summary.TradingDays)
	}
	return nil
}

// shutdown releases clients. Best effort: a close error is logged, not
// propagated over the run's own result.
func (a *App) shutdown() {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Warn("http shutdown error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}

// healthHandler reports readiness of the storage backend.
type healthHandler struct {
	chClient *pkgch.Client
}

func (h *healthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error {
		if h.chClient != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			if err := h.chClient.Health(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
			}
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
}
