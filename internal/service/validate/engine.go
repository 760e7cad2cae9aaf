package validate

import (
	"fmt"
	"math"

	"MacroPull/internal/domain/models"
	"MacroPull/pkg/calendar"
)

// Engine evaluates a candidate record against the rule table. It is
// stateless: the same inputs always produce the same result.
type Engine struct {
	rules               []FieldRule
	anomalyThresholdPct float64
}

// NewEngine creates a validation engine. anomalyThresholdPct is the
// absolute day-over-day percentage change above which a warning is
// raised (warnings never block persistence).
func NewEngine(rules []FieldRule, anomalyThresholdPct float64) *Engine {
	return &Engine{rules: rules, anomalyThresholdPct: anomalyThresholdPct}
}

// Validate checks one assembled record, optionally against the
// immediately preceding day's record for anomaly detection.
func (e *Engine) Validate(rec, prev *models.DailyIndicatorRecord) models.ValidationResult {
	var res models.ValidationResult

	if _, err := calendar.ParseDate(rec.Date); err != nil {
		res.AddError("date", fmt.Sprintf("malformed date %q", rec.Date))
	}

	for _, rule := range e.rules {
		v := rec.Field(rule.Field)
		if !v.Valid {
			if rule.Required {
				res.AddError(rule.Field, "required field is missing")
			}
			continue
		}
		if math.IsNaN(v.Float64) || math.IsInf(v.Float64, 0) {
			res.AddError(rule.Field, "value is not a finite number")
			continue
		}
		if v.Float64 < rule.Min || v.Float64 > rule.Max {
			res.AddError(rule.Field, fmt.Sprintf(
				"value %g outside allowed range [%g, %g]", v.Float64, rule.Min, rule.Max))
		}
	}

	if prev != nil {
		e.detectAnomalies(rec, prev, &res)
	}
	return res
}

// detectAnomalies flags day-over-day swings above the threshold. A
// previous value of exactly zero is skipped rather than fabricating a
// division result.
func (e *Engine) detectAnomalies(rec, prev *models.DailyIndicatorRecord, res *models.ValidationResult) {
	for _, rule := range e.rules {
		cur := rec.Field(rule.Field)
		old := prev.Field(rule.Field)
		if !cur.Valid || !old.Valid {
			continue
		}
		if old.Float64 == 0 {
			continue
		}
		changePct := math.Abs((cur.Float64-old.Float64)/old.Float64) * 100
		if changePct > e.anomalyThresholdPct {
			res.AddWarning(rule.Field, fmt.Sprintf(
				"day-over-day change %.1f%% exceeds %.0f%% (prev %g, now %g)",
				changePct, e.anomalyThresholdPct, old.Float64, cur.Float64))
		}
	}
}
