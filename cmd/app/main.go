package main

import (
	"flag"
	"log"
	"os"
	"time"

	"MacroPull/internal/di"
	"MacroPull/pkg/calendar"
	"MacroPull/pkg/config"
	"MacroPull/pkg/server"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dateStr := flag.String("date", "", "target date YYYY-MM-DD (default: most recent trading day)")
	backfillStart := flag.String("backfill-start", "", "backfill range start YYYY-MM-DD")
	backfillEnd := flag.String("backfill-end", "", "backfill range end YYYY-MM-DD (default: most recent trading day)")
	fillGaps := flag.Bool("fill-gaps", false, "backfill only dates missing from the store")
	pace := flag.Duration("pace", 0, "override per-date backfill delay")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	paceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "pace" {
			paceSet = true
		}
	})
	if paceSet {
		cfg.Backfill.PerDateDelay = *pace
	}

	job, err := buildJob(*dateStr, *backfillStart, *backfillEnd, *fillGaps)
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("env=%s db=%s.%s", cfg.Environment, cfg.ClickHouse.Database, cfg.ClickHouse.Table)

	if err := app.Run(job); err != nil {
		log.Printf("run failed: %v", err)
		os.Exit(1)
	}
}

func buildJob(dateStr, startStr, endStr string, fillGaps bool) (server.Job, error) {
	var job server.Job

	if startStr != "" {
		start, err := calendar.ParseDate(startStr)
		if err != nil {
			return job, err
		}
		end := calendar.MostRecentTradingDay(time.Now().UTC())
		if endStr != "" {
			if end, err = calendar.ParseDate(endStr); err != nil {
				return job, err
			}
		}
		job.BackfillStart = start
		job.BackfillEnd = end
		job.FillGaps = fillGaps
		return job, nil
	}

	if dateStr != "" {
		date, err := calendar.ParseDate(dateStr)
		if err != nil {
			return job, err
		}
		job.Date = date
		return job, nil
	}

	job.Date = calendar.MostRecentTradingDay(time.Now().UTC())
	return job, nil
}
