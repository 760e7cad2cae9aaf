package validate

import "MacroPull/internal/domain/models"

// FieldRule is a declarative per-field contract: inclusive numeric
// range plus a required/optional flag. Rules are data so new indicators
// are added here without touching orchestration logic.
type FieldRule struct {
	Field    string
	Min      float64
	Max      float64
	Required bool
}

// DefaultRules covers every indicator in the daily record. Monthly and
// quarterly series (gdp_growth, cpi, cpi_yoy) are optional: they are
// legitimately absent on most trading days.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Field: models.FieldInterestRate, Min: 0, Max: 25, Required: true},
		{Field: models.FieldVIX, Min: 5, Max: 100, Required: true},
		{Field: models.FieldDXY, Min: 60, Max: 130, Required: true},
		{Field: models.FieldTreasury2Y, Min: 0, Max: 20, Required: true},
		{Field: models.FieldTreasury10Y, Min: 0, Max: 20, Required: true},
		{Field: models.FieldYieldCurveSpread, Min: -5, Max: 5, Required: true},
		{Field: models.FieldICEBofaBBB, Min: 0, Max: 15, Required: true},
		{Field: models.FieldGDPGrowth, Min: -40, Max: 40, Required: false},
		{Field: models.FieldCPI, Min: 0, Max: 500, Required: false},
		{Field: models.FieldCPIYoY, Min: -10, Max: 30, Required: false},
	}
}
