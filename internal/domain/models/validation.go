package models

// Severity distinguishes blocking validation errors from advisory
// warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// ValidationResult is the output of the validation engine. Only
// error-severity issues block persistence.
type ValidationResult struct {
	Issues []Issue `json:"issues"`
}

func (r *ValidationResult) AddError(field, msg string) {
	r.Issues = append(r.Issues, Issue{Field: field, Message: msg, Severity: SeverityError})
}

func (r *ValidationResult) AddWarning(field, msg string) {
	r.Issues = append(r.Issues, Issue{Field: field, Message: msg, Severity: SeverityWarning})
}

// Valid reports whether the record may be persisted.
func (r *ValidationResult) Valid() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the blocking issues.
func (r *ValidationResult) Errors() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			out = append(out, is)
		}
	}
	return out
}

// Warnings returns the advisory issues.
func (r *ValidationResult) Warnings() []Issue {
	var out []Issue
	for _, is := range r.Issues {
		if is.Severity == SeverityWarning {
			out = append(out, is)
		}
	}
	return out
}
