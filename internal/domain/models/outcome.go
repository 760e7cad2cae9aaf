package models

// OutcomeKind tags the result of one provider fetch.
type OutcomeKind string

const (
	// OutcomeOk carries a value.
	OutcomeOk OutcomeKind = "ok"
	// OutcomeAbsent means the provider answered but has no value for
	// the date (series not yet published, series unsupported). This is
	// a normal result, not a failure.
	OutcomeAbsent OutcomeKind = "absent"
	// OutcomeDegraded means the provider stopped attempting calls
	// (retry budget exhausted, quota gone, hard denial).
	OutcomeDegraded OutcomeKind = "degraded"
)

// Outcome is the tagged result of a provider fetch. Callers switch on
// Kind rather than inspecting hidden adapter state, so a degraded
// provider can never pass for a healthy one.
type Outcome struct {
	Kind   OutcomeKind
	Value  float64
	Reason string
}

func Ok(v float64) Outcome { return Outcome{Kind: OutcomeOk, Value: v} }

func Absent(reason string) Outcome { return Outcome{Kind: OutcomeAbsent, Reason: reason} }

func Degraded(reason string) Outcome { return Outcome{Kind: OutcomeDegraded, Reason: reason} }

func (o Outcome) IsOk() bool { return o.Kind == OutcomeOk }

// ToValue converts the outcome to an optional record value. Absent and
// degraded both map to None; the distinction matters for logging and
// metrics, not for record assembly.
func (o Outcome) ToValue() Value {
	if o.Kind == OutcomeOk {
		return Some(o.Value)
	}
	return None()
}
