package derive

import "MacroPull/internal/domain/models"

// Derived metrics are pure functions over optional values: no I/O, no
// state. Absent inputs yield absent outputs.

// YearOverYear computes the percentage change of a level-valued series
// against its value one year earlier: ((current - prior) / prior) * 100.
// The result is absent when either input is absent or the prior value
// is exactly zero.
func YearOverYear(current, prior models.Value) models.Value {
	if !current.Valid || !prior.Valid || prior.Float64 == 0 {
		return models.None()
	}
	return models.Some((current.Float64 - prior.Float64) / prior.Float64 * 100)
}

// YieldCurveSpread is the long-tenor yield minus the short-tenor yield.
// A negative spread (inverted curve) is a valid, meaningful signal, not
// an error.
func YieldCurveSpread(long, short models.Value) models.Value {
	if !long.Valid || !short.Valid {
		return models.None()
	}
	return models.Some(long.Float64 - short.Float64)
}
