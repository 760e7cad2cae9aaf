package models

import (
	"encoding/json"
	"time"
)

// Indicator field names. These double as record keys in the store and
// as rule-table keys in the validation engine.
const (
	FieldInterestRate     = "interest_rate"
	FieldVIX              = "vix"
	FieldDXY              = "dxy"
	FieldTreasury2Y       = "treasury_2y"
	FieldTreasury10Y      = "treasury_10y"
	FieldYieldCurveSpread = "yield_curve_spread"
	FieldICEBofaBBB       = "ice_bofa_bbb"
	FieldGDPGrowth        = "gdp_growth"
	FieldCPI              = "cpi"
	FieldCPIYoY           = "cpi_yoy"
)

// Value is an optional indicator value. Absent values (series not yet
// published, provider degraded) are represented explicitly instead of
// with sentinel floats.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some wraps a present value.
func Some(v float64) Value { return Value{Float64: v, Valid: true} }

// None is the absent value.
func None() Value { return Value{} }

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Float64)
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = None()
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Some(f)
	return nil
}

// DailyIndicatorRecord is one trading day's reconciled macro snapshot.
// Date is the unique key; UpdatedAt is set at persist time. A persist
// always replaces the whole record.
type DailyIndicatorRecord struct {
	Date             string    `json:"date"`
	InterestRate     Value     `json:"interest_rate"`
	VIX              Value     `json:"vix"`
	DXY              Value     `json:"dxy"`
	Treasury2Y       Value     `json:"treasury_2y"`
	Treasury10Y      Value     `json:"treasury_10y"`
	YieldCurveSpread Value     `json:"yield_curve_spread"`
	ICEBofaBBB       Value     `json:"ice_bofa_bbb"`
	GDPGrowth        Value     `json:"gdp_growth"`
	CPI              Value     `json:"cpi"`
	CPIYoY           Value     `json:"cpi_yoy"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FieldNames lists all indicator fields in a stable order.
func FieldNames() []string {
	return []string{
		FieldInterestRate,
		FieldVIX,
		FieldDXY,
		FieldTreasury2Y,
		FieldTreasury10Y,
		FieldYieldCurveSpread,
		FieldICEBofaBBB,
		FieldGDPGrowth,
		FieldCPI,
		FieldCPIYoY,
	}
}

// Field returns the named indicator value.
func (r *DailyIndicatorRecord) Field(name string) Value {
	switch name {
	case FieldInterestRate:
		return r.InterestRate
	case FieldVIX:
		return r.VIX
	case FieldDXY:
		return r.DXY
	case FieldTreasury2Y:
		return r.Treasury2Y
	case FieldTreasury10Y:
		return r.Treasury10Y
	case FieldYieldCurveSpread:
		return r.YieldCurveSpread
	case FieldICEBofaBBB:
		return r.ICEBofaBBB
	case FieldGDPGrowth:
		return r.GDPGrowth
	case FieldCPI:
		return r.CPI
	case FieldCPIYoY:
		return r.CPIYoY
	}
	return None()
}

// SetField assigns the named indicator value. Unknown names are ignored.
func (r *DailyIndicatorRecord) SetField(name string, v Value) {
	switch name {
	case FieldInterestRate:
		r.InterestRate = v
	case FieldVIX:
		r.VIX = v
	case FieldDXY:
		r.DXY = v
	case FieldTreasury2Y:
		r.Treasury2Y = v
	case FieldTreasury10Y:
		r.Treasury10Y = v
	case FieldYieldCurveSpread:
		r.YieldCurveSpread = v
	case FieldICEBofaBBB:
		r.ICEBofaBBB = v
	case FieldGDPGrowth:
		r.GDPGrowth = v
	case FieldCPI:
		r.CPI = v
	case FieldCPIYoY:
		r.CPIYoY = v
	}
}
